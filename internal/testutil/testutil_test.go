package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceDBName(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost:5432/postgres?sslmode=disable", "postgres://u:p@localhost:5432/other?sslmode=disable"},
		{"postgres://u@localhost:5432/", "postgres://u@localhost:5432/other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReplaceDBName(tt.dsn, "other"))
	}
}

func TestGetDatabaseConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_USER", "app")
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("DATABASE_PORT", "")
	t.Setenv("DATABASE_NAME", "")
	t.Setenv("DATABASE_SSLMODE", "disable")

	assert.Equal(t, "postgres://app@db.internal:5432/postgres?sslmode=disable", GetDatabaseConfig().URL)

	t.Setenv("DATABASE_URL", "postgres://x@y/z")
	assert.Equal(t, "postgres://x@y/z", GetDatabaseConfig().URL)
}
