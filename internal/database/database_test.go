package database

import (
	"testing"

	"github.com/YikKhai0303/ChatApp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect("oracle", "whatever")
	assert.Error(t, err)
}

func TestConnectAndMigrate_SQLite(t *testing.T) {
	db, err := Connect("sqlite", ":memory:")
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	require.NoError(t, Migrate(db))
	for _, table := range []interface{}{&models.User{}, &models.Chatroom{}, &models.Message{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
}
