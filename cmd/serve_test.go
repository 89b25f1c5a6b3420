package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeLoggerKeepsInfoAndWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "giveaway.log")
	l, closeLog, err := serveLogger(path)
	require.NoError(t, err)

	l.Infof("giveaway g1: dropped commit from %q (late)", "node-y")
	l.Warningf("transport: subscriber queue full on %s, message dropped", "giveaway/v1/g1/commits")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dropped commit from "node-y" (late)`)
	assert.Contains(t, string(data), "subscriber queue full on giveaway/v1/g1/commits")
}

func TestServeLoggerWithoutFile(t *testing.T) {
	l, closeLog, err := serveLogger("")
	require.NoError(t, err)
	assert.NotNil(t, l)
	closeLog()
}

func TestServeLoggerBadPath(t *testing.T) {
	_, _, err := serveLogger(filepath.Join(t.TempDir(), "missing", "giveaway.log"))
	assert.Error(t, err)
}
