package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// MinServerMajor is the oldest SurrealDB major version the repositories
// support. Conditional writes rely on UPDATE type::record($id) ... WHERE
// never creating a missing record, which 1.x servers do not guarantee.
const MinServerMajor = 2

// SurrealDB is the Database implementation backed by a SurrealDB server
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB returns an unconnected client for cfg
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{config: cfg}
}

// Endpoint is the websocket URL the client dials
func (c Config) Endpoint() string {
	return fmt.Sprintf("ws://%s:%s", c.Host, c.Port)
}

// Connect signs in, selects the namespace and database, and rejects servers
// older than MinServerMajor
func (s *SurrealDB) Connect(ctx context.Context) error {
	db, err := surrealdb.FromEndpointURLString(ctx, s.config.Endpoint())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	fail := func(step string, err error) error {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: %s: %v", ErrConnection, step, err)
	}

	if _, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	}); err != nil {
		return fail("signin", err)
	}
	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		return fail("use", err)
	}

	v, err := db.Version(ctx)
	if err != nil {
		return fail("version", err)
	}
	if err := checkServerVersion(v.Version); err != nil {
		return fail("version", err)
	}

	s.db = db
	return nil
}

// Close closes the connection; closing an unconnected client is a no-op
func (s *SurrealDB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close(context.Background())
}

// Ping round-trips a version request
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query runs every statement in query and returns one
// {status, result} map per statement. A failed statement fails the call;
// unique index violations surface as ErrDuplicate.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classify(err.Error())
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	for _, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, classify(r.Error.Message)
			}
			return nil, ErrQuery
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}
	return output, nil
}

// QueryOne returns the first record of the first statement, or the
// statement's scalar result. An empty result set is ErrNotFound.
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	stmt, _ := results[0].(map[string]interface{})
	switch data := stmt["result"].(type) {
	case []interface{}:
		if len(data) == 0 {
			return nil, ErrNotFound
		}
		return data[0], nil
	default:
		return data, nil
	}
}

// Execute runs a mutation and discards its result
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// classify maps a server error message onto the package sentinels
func classify(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "already contains") || strings.Contains(lower, "unique") {
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	}
	return fmt.Errorf("%w: %s", ErrQuery, msg)
}

// checkServerVersion accepts "2.1.4", "v2.1.4" and "surrealdb-2.1.4"
func checkServerVersion(raw string) error {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "surrealdb-")
	v = strings.TrimPrefix(v, "v")
	majorStr, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return fmt.Errorf("unrecognised server version %q", raw)
	}
	if major < MinServerMajor {
		return fmt.Errorf("server version %s is older than %d.0", raw, MinServerMajor)
	}
	return nil
}
