package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "scenesync dev\n", out.String())
}

func TestServeRejectsMissingConfig(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"serve", "--config", t.TempDir() + "/absent.yaml"})
	assert.Error(t, root.Execute())
}
