// Package dbtest opens throwaway sqlite databases for repository tests.
package dbtest

import (
	"testing"

	"github.com/lk2023060901/signage-backend/internal/pkg/database"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/stretchr/testify/require"
)

// New returns an in-memory sqlite database with models migrated
func New(t testing.TB, models ...interface{}) *database.DB {
	t.Helper()

	cfg := &database.Config{
		Driver:      database.DriverSQLite,
		Path:        ":memory:",
		LogLevel:    "silent",
		AutoMigrate: true,
	}

	db, err := database.New(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}
	return db
}
