package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{appName}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, appName)
	assert.Contains(t, out, Version)
}

func TestRun_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("trace:\n  id_generator: snowflake\n"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"-c", filepath.Join(dir, "missing.yaml"), "serve"}},
		{"bad extension", []string{"-c", filepath.Join(dir, "config.ini"), "serve"}},
		{"invalid settings", []string{"-c", bad, "serve"}},
		{"invalid override", []string{"--log-level", "loud", "serve"}},
		{"extra args", []string{"serve", "now"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, "配置错误")
		})
	}
}

func TestLoadSettings(t *testing.T) {
	cfg, s, err := loadSettings("")
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, ":8080", s.Server.HTTPAddr)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"http_addr": ":1"}}`), 0o600))
	cfg, s, err = loadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, ":1", s.Server.HTTPAddr)
}
