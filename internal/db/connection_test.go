package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	database, err := Connect(&Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db"), Quiet: true})
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.Migrate())
	assert.NoError(t, database.Health())
	assert.False(t, database.IsPostgres())

	assert.True(t, database.Migrator().HasTable("posts"))
	assert.True(t, database.Migrator().HasTable("moderation_logs"))
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect(&Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := &Config{Host: "db", Port: "5432", User: "u", Password: "p", Name: "mangaguard", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=mangaguard sslmode=disable", c.DSN())
}
