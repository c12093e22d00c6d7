package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCalculateChecksum(t *testing.T) {
	sum := calculateChecksum([]byte("SELECT 1;"))
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, calculateChecksum([]byte("SELECT 1;")))
	assert.NotEqual(t, sum, calculateChecksum([]byte("SELECT 2;")))
}

// TestLoadMigrations はファイル名順の読込とSQL以外の除外のテスト
func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("SELECT 2;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("SELECT 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o600))

	migrations, err := loadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_a.sql", migrations[0].Filename)
	assert.Equal(t, "002_b.sql", migrations[1].Filename)

	_, err = loadMigrations(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

// TestPending は実行済み・変更済みマイグレーションの除外のテスト
func TestPending(t *testing.T) {
	migrations := []migration{
		{Filename: "001_a.sql", Checksum: "aaa"},
		{Filename: "002_b.sql", Checksum: "bbb"},
		{Filename: "003_c.sql", Checksum: "ccc"},
	}
	applied := []appliedMigration{
		{Filename: "001_a.sql", Checksum: "aaa"},
		{Filename: "002_b.sql", Checksum: "changed"},
	}

	out := pending(migrations, applied, zap.NewNop())
	require.Len(t, out, 1)
	assert.Equal(t, "003_c.sql", out[0].Filename)
}
