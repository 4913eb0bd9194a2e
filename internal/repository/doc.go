// Package repository implements the SurrealDB data access layer for Craftlink.
//
// Each repository struct handles the operations for one table: engagements,
// craftsman rating roll-ups, and notification inbox entries.
//
// # Repository Pattern
//
//   - Constructor function (NewXxxRepository) accepts a database connection
//   - SurrealQL queries with $variable parameters and type::record() ids
//   - Results are parsed from generic maps into model structs
//   - GetByID returns nil, nil when the record does not exist
//
// # Conditional Writes
//
// Engagement updates and deletes put their precondition in the WHERE clause
// of a single statement. An empty result is then disambiguated with a read:
//
//	e, err := repo.ConditionalUpdate(ctx, id, pre, patch)
//	switch {
//	case errors.Is(err, database.ErrNotFound):
//	case errors.Is(err, database.ErrPreconditionFailed):
//	}
//
// The sqlite subpackage implements the same contract on modernc.org/sqlite.
package repository
