package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoke_Passes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runWithArgs([]string{"smoketest", "--keys=200", "--value-size=64", "--db=" + t.TempDir()}, &stdout, &stderr)
	require.Equal(t, 0, code, "stdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Results: 12 passed, 0 failed")
	assert.NotContains(t, out, "FAILED")
}

func TestSmoke_RejectsBadSizes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, runWithArgs([]string{"smoketest", "--keys=0"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--keys must be positive")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Persistence__Close_Reopen_", sanitizeName("Persistence (Close/Reopen)"))
}
