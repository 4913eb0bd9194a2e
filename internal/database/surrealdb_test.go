package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckServerVersion(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"2.1.4", false},
		{"v2.0.0", false},
		{"surrealdb-2.2.1", false},
		{"3.0.0-beta", false},
		{"1.5.4", true},
		{"surrealdb-1.0.0", true},
		{"", true},
		{"nightly", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := checkServerVersion(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	dup := classify("Database index `notification_dedupe` already contains 'engagement.accepted:engagement:1'")
	assert.ErrorIs(t, dup, ErrDuplicate)
	assert.NotErrorIs(t, dup, ErrQuery)

	other := classify("Parse error: unexpected token")
	assert.ErrorIs(t, other, ErrQuery)
	assert.NotErrorIs(t, other, ErrDuplicate)
}

func TestSurrealDB_Unconnected(t *testing.T) {
	db := NewSurrealDB(Config{Host: "localhost", Port: "8000"})
	ctx := context.Background()

	assert.Equal(t, "ws://localhost:8000", db.config.Endpoint())
	require.NoError(t, db.Close())
	assert.ErrorIs(t, db.Ping(ctx), ErrConnection)
	assert.ErrorIs(t, db.Execute(ctx, "INFO FOR DB", nil), ErrConnection)

	_, err := db.QueryOne(ctx, "SELECT * FROM engagement", nil)
	assert.ErrorIs(t, err, ErrConnection)
}
