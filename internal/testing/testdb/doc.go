// Package testdb creates throwaway SurrealDB namespaces with the embedded
// schema applied.
//
// Configure the server with TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER and
// TEST_DB_PASSWORD. Without TEST_DB_HOST every test using New is skipped, so
// the default unit run needs no database.
package testdb
