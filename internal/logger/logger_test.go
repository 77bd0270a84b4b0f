package logger

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Printf("launched %d", 42)
	assert.Contains(t, buf.String(), Prefix)
	assert.Contains(t, buf.String(), "launched 42")
}

func TestNewQuiet(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Printf("launched %d", 42)
	assert.Empty(t, buf.String())
}

func TestOpenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	l, c, err := Open(fs, "/var/log/lsh/lsh.log", true, nil)
	require.NoError(t, err)
	l.Print("reaped")
	require.NoError(t, c.Close())

	data, err := afero.ReadFile(fs, "/var/log/lsh/lsh.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "reaped")
}

func TestOpenFallback(t *testing.T) {
	var buf bytes.Buffer
	l, c, err := Open(afero.NewMemMapFs(), "", true, &buf)
	require.NoError(t, err)
	l.Print("hello")
	assert.NoError(t, c.Close())
	assert.Contains(t, buf.String(), "hello")
}
