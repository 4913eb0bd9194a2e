// Package fixtures builds craftsmen and engagements for store tests.
//
// Factories write through the store interface, so the same fixtures serve
// the SQLite store and the SurrealDB repositories.
package fixtures
