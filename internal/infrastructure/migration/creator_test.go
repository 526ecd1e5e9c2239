package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"add period locks":         "add_period_locks",
		"Add-Period-Locks":         "add_period_locks",
		"ADD__PERIOD__LOCKS":       "add_period_locks",
		"  fiscal year 2025  ":     "fiscal_year_2025",
		"drop legacy.balances":     "drop_legacy_balances",
		"index (account, posting)": "index_account_posting",
		"_leading_and_trailing_":   "leading_and_trailing",
		"ümlaut names":             "mlaut_names",
		"!!!":                      "",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, sanitizeName(in))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	fixClock(t, time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC))
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "Add period locks", "Lock closed accounting periods")
	require.NoError(t, err)

	assert.Equal(t, "20250301093015", mf.Version)
	assert.Equal(t, "add_period_locks", mf.Name)
	assert.Equal(t, filepath.Join(dir, "20250301093015_add_period_locks.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20250301093015_add_period_locks.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Equal(t, "-- Up: add_period_locks\n-- Version: 20250301093015\n-- Lock closed accounting periods\n\n", string(up))

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Down: add_period_locks")
}

func TestCreateMigration_NoDescription(t *testing.T) {
	fixClock(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	mf, err := CreateMigration(t.TempDir(), "seed chart", "")
	require.NoError(t, err)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Equal(t, "-- Up: seed_chart\n-- Version: 20250301000000\n\n", string(up))
}

func TestCreateMigration_RejectsEmptySlug(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateMigration(dir, "%%%", "")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateMigration_ExistingVersionFails(t *testing.T) {
	fixClock(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	dir := t.TempDir()

	_, err := CreateMigration(dir, "seed chart", "")
	require.NoError(t, err)
	_, err = CreateMigration(dir, "seed chart", "")
	assert.Error(t, err)
}

func TestCreateMigration_RemovesUpWhenDownFails(t *testing.T) {
	fixClock(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20250301000000_seed_chart.down.sql"), 0o755))

	_, err := CreateMigration(dir, "seed chart", "")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "20250301000000_seed_chart.up.sql"))
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20250301000000_add_period_locks.up.sql",
		"20250301000000_add_period_locks.down.sql",
		"20240101000000_create_ledger_tables.up.sql",
		"20240101000000_create_ledger_tables.down.sql",
		"README.md",
		"noversion.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20990101000000_dir.up.sql"), 0o755))

	got, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Version: "20240101000000", Name: "create_ledger_tables"},
		{Version: "20250301000000", Name: "add_period_locks"},
	}, got)
	assert.Equal(t, "20240101000000_create_ledger_tables", got[0].String())
}

func TestListMigrations_MissingDir(t *testing.T) {
	got, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListMigrations_RepositoryFiles(t *testing.T) {
	got, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "create_ledger_tables", got[0].Name)
}
