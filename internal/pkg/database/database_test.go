package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "default config", config: DefaultConfig()},
		{
			name: "missing host",
			config: &Config{
				Port: 5432, User: "user", DBName: "test", SSLMode: "disable", LogLevel: "warn",
			},
			wantErr: true,
		},
		{
			name: "invalid port",
			config: &Config{
				Host: "localhost", User: "user", DBName: "test", SSLMode: "disable", LogLevel: "warn",
			},
			wantErr: true,
		},
		{
			name: "invalid SSL mode",
			config: &Config{
				Host: "localhost", Port: 5432, User: "user", DBName: "test", SSLMode: "invalid", LogLevel: "warn",
			},
			wantErr: true,
		},
		{
			name:   "sqlite",
			config: &Config{Driver: DriverSQLite, Path: ":memory:", LogLevel: "silent"},
		},
		{
			name:    "sqlite without path",
			config:  &Config{Driver: DriverSQLite, LogLevel: "silent"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			config:  &Config{Driver: "mysql", LogLevel: "warn"},
			wantErr: true,
		},
		{
			name: "idle exceeds open",
			config: &Config{
				Host: "localhost", Port: 5432, User: "user", DBName: "test", SSLMode: "disable", LogLevel: "warn",
				MaxIdleConns: 20, MaxOpenConns: 10,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=postgres dbname=signage sslmode=disable TimeZone=UTC",
		cfg.DSN())
}

type widget struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

func newSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := New(&Config{
		Driver:      DriverSQLite,
		Path:        ":memory:",
		LogLevel:    "silent",
		AutoMigrate: true,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(&widget{}))
	return db
}

func TestInTxCommitAndRollback(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(ctx context.Context) error {
		return db.GetDBFromContext(ctx).Create(&widget{Name: "a"}).Error
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.InTx(ctx, func(ctx context.Context) error {
		if err := db.GetDBFromContext(ctx).Create(&widget{Name: "b"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.GetDBFromContext(ctx).Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInTxNestedJoinsOuter(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(outer context.Context) error {
		outerTx, _ := TransactionFromContext(outer)
		return db.InTx(outer, func(inner context.Context) error {
			innerTx, ok := TransactionFromContext(inner)
			require.True(t, ok)
			assert.Same(t, outerTx, innerTx)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestDuplicateAndNotFoundErrors(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	gdb := db.GetDBFromContext(ctx)

	require.NoError(t, gdb.Create(&widget{Name: "dup"}).Error)
	err := gdb.Create(&widget{Name: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyError(err))

	var w widget
	err = gdb.First(&w, 999).Error
	assert.True(t, IsRecordNotFoundError(err))
	assert.True(t, IsRecordNotFoundError(fmt.Errorf("wrapped: %w", gorm.ErrRecordNotFound)))

	assert.False(t, IsDuplicateKeyError(nil))
	assert.True(t, IsDuplicateKeyError(errors.New(`ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)`)))
}

func TestHealthCheck(t *testing.T) {
	db := newSQLite(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")))
	assert.False(t, isRetryableError(errors.New("syntax error")))
}
