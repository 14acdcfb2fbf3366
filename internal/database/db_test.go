package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "nested", name+".db"), Profile: profile, Name: name})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_Profiles(t *testing.T) {
	for _, profile := range []DatabaseProfile{ProfileLedger, ProfileStandard, ""} {
		db := openTestDB(t, "runs", profile)

		var mode string
		require.NoError(t, db.Conn().QueryRow("PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)

		var fk int
		require.NoError(t, db.Conn().QueryRow("PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
	}
	assert.Equal(t, ProfileStandard, openTestDB(t, "x", "").Profile())
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t, "runs", ProfileStandard)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate(), "schemas are idempotent")

	var n int
	require.NoError(t, db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('runs', 'branches')").Scan(&n))
	assert.Equal(t, 2, n)

	unknown := openTestDB(t, "scratch", ProfileStandard)
	assert.NoError(t, unknown.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE kv (k TEXT PRIMARY KEY)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO kv VALUES ('a')")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO kv VALUES ('b')")
		panic("half way")
	})
	assert.ErrorContains(t, err, "panic in transaction: half way")

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO kv VALUES ('c')")
		return err
	}))

	var keys []string
	rows, err := db.Conn().Query("SELECT k FROM kv")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var k string
		require.NoError(t, rows.Scan(&k))
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"c"}, keys)
}

func TestMaintenance(t *testing.T) {
	db := openTestDB(t, "runs", ProfileLedger)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("PASSIVE"))
	assert.NoError(t, db.IncrementalVacuum(0))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
}

func TestBackupTo(t *testing.T) {
	db := openTestDB(t, "runs", ProfileStandard)
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "it's a backup.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	copyDB, err := New(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()
	assert.NoError(t, copyDB.HealthCheck(context.Background()))

	assert.Error(t, db.BackupTo(context.Background(), dest), "existing files are not overwritten")
}

func TestClosedDatabase(t *testing.T) {
	db := openTestDB(t, "runs", ProfileStandard)
	require.NoError(t, db.Close())
	assert.Error(t, db.HealthCheck(context.Background()))
}
