package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePair(t *testing.T) {
	t.Run("creates an up and down pair with a sortable version", func(t *testing.T) {
		dir := t.TempDir()

		pair, err := CreatePair(dir, "add journal tables")
		require.NoError(t, err)

		assert.Len(t, pair.Version, 14)
		assert.Equal(t, "add_journal_tables", pair.Name)
		assert.FileExists(t, pair.UpPath)
		assert.FileExists(t, pair.DownPath)
		assert.True(t, strings.HasSuffix(pair.UpPath, ".up.sql"))
		assert.True(t, strings.HasSuffix(pair.DownPath, ".down.sql"))
	})

	t.Run("slugifies awkward names", func(t *testing.T) {
		dir := t.TempDir()

		pair, err := CreatePair(dir, "  Add!! Subledger--Balances  ")
		require.NoError(t, err)
		assert.Equal(t, "add_subledger_balances", pair.Name)
	})

	t.Run("rejects a name with no usable characters", func(t *testing.T) {
		dir := t.TempDir()

		_, err := CreatePair(dir, "***")
		require.Error(t, err)
	})

	t.Run("creates the directory when missing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "migrations")

		pair, err := CreatePair(dir, "initial schema")
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.FileExists(t, pair.UpPath)
	})
}
