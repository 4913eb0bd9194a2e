// Schema for the SurrealDB backend lives in migrations/*.surql and is embedded
// into the binary. Migrate applies every file in name order; each statement
// uses DEFINE ... IF NOT EXISTS so reapplying is harmless.
//
// Connect and migrate:
//
//	db := database.NewSurrealDB(cfg)
//	if err := db.Connect(ctx); err != nil {
//	    return err
//	}
//	if err := database.Migrate(ctx, db); err != nil {
//	    return err
//	}
//
// # Server Version
//
// SurrealDB 2.0 or newer is required (MinServerMajor). Conditional writes
// are UPDATE type::record($id) ... WHERE statements, and only 2.x servers
// leave a missing record missing instead of creating it. Connect reads the
// server version and fails with ErrConnection on older servers.
package database
