package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubcommandsRegistered(t *testing.T) {
	expected := []string{"export", "render", "verify", "evaluate", "gate", "keygen", "version"}

	registered := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, registered[name], "missing subcommand %s", name)
	}
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-01", BuildTime)

	// Empty values must not clobber what is set.
	SetVersionInfo("", "", "")
	assert.Equal(t, "1.2.3", Version)
}
