package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistry(t *testing.T) {
	cmds := commands()

	for _, name := range []string{
		"migrate",
		"list-denials",
		"purge-denials",
		"list-sessions",
		"revoke-session",
		"revoke-all-sessions",
	} {
		cmd, ok := cmds[name]
		require.True(t, ok, "command %q must be registered", name)
		assert.Equal(t, name, cmd.name)
		assert.NotEmpty(t, cmd.description)
		assert.NotNil(t, cmd.run)
	}
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	opts, err = parseMigrateFlags([]string{"--timeout", "90s"})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestParseListDenialsFlags(t *testing.T) {
	opts, err := parseListDenialsFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 50, opts.Limit)

	opts, err = parseListDenialsFlags([]string{"--limit", "10"})
	require.NoError(t, err)
	assert.Equal(t, 10, opts.Limit)

	_, err = parseListDenialsFlags([]string{"--limit", "0"})
	require.Error(t, err)

	_, err = parseListDenialsFlags([]string{"--limit", "-5"})
	require.Error(t, err)
}

func TestParsePurgeDenialsFlags(t *testing.T) {
	opts, err := parsePurgeDenialsFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, opts.KeepFor)
	assert.False(t, opts.DryRun)
	assert.False(t, opts.Yes)

	opts, err = parsePurgeDenialsFlags([]string{"--keep-for", "720h", "--dry-run", "--yes"})
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, opts.KeepFor)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.Yes)
}

func TestParseListSessionsFlags(t *testing.T) {
	opts, err := parseListSessionsFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 100, opts.Limit)

	_, err = parseListSessionsFlags([]string{"--limit", "0"})
	require.Error(t, err)
}
