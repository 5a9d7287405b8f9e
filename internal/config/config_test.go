// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CAMPUSGPT_BASE_URL", "CAMPUSGPT_TOKEN", "CAMPUSGPT_TOKEN_FILE",
		"CAMPUSGPT_STREAMING", "CAMPUSGPT_LOG_LEVEL", "CAMPUSGPT_LOG_FORMAT",
		"CAMPUSGPT_LOG_PATH", "CAMPUSGPT_THEME",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Chat.Streaming)
	assert.Equal(t, 50, cfg.History.Limit)
	assert.Equal(t, "/api/query", cfg.Server.QueryPath)
}

func TestLoadFromPath_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[server]
base_url = "https://campusgpt.example.edu"

[chat]
streaming = false
server_sessions = true

[history]
limit = 20
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://campusgpt.example.edu", cfg.Server.BaseURL)
	assert.False(t, cfg.Chat.Streaming)
	assert.True(t, cfg.Chat.ServerSessions)
	assert.Equal(t, 20, cfg.History.Limit)

	// Unset keys keep their defaults.
	assert.Equal(t, "/api/student/history", cfg.Server.HistoryPath)
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"server":{"base_url":"http://10.0.0.5:8000"},"ui":{"theme":"light"}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.Server.BaseURL)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestLoadFromPath_RejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	tomlPath := writeFile(t, "config.toml", "[server]\nbase_ur = \"http://x\"\n")
	_, err := LoadFromPath(tomlPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_ur")

	jsonPath := writeFile(t, "config.json", `{"servr":{}}`)
	_, err = LoadFromPath(jsonPath)
	require.Error(t, err)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[server]
base_url = "ftp://campus"
query_path = "api/query"

[ui]
theme = "neon"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.Equal(t, []string{"server.base_url", "server.query_path", "ui.theme"}, fields)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAMPUSGPT_BASE_URL", "https://env.example.edu")
	t.Setenv("CAMPUSGPT_TOKEN", "secret-token")
	t.Setenv("CAMPUSGPT_STREAMING", "false")
	t.Setenv("CAMPUSGPT_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "https://env.example.edu", cfg.Server.BaseURL)
	assert.Equal(t, "secret-token", cfg.Auth.Token)
	assert.False(t, cfg.Chat.Streaming)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestApplyEnvOverrides_StreamingBool(t *testing.T) {
	clearEnv(t)

	cfg := Default()
	cfg.Chat.Streaming = false
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.False(t, cfg.Chat.Streaming, "unset variable keeps the file value")

	t.Setenv("CAMPUSGPT_STREAMING", "1")
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.True(t, cfg.Chat.Streaming)
}

func TestApplyEnvOverrides_BadBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAMPUSGPT_STREAMING", "sometimes")
	assert.Error(t, Default().ApplyEnvOverrides())
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "CAMPUSGPT_THEME=dark\nCAMPUSGPT_BASE_URL=http://dotenv:8000\n")
	// Variables already set win over the file.
	t.Setenv("CAMPUSGPT_BASE_URL", "http://shell:8000")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	t.Cleanup(func() { os.Unsetenv("CAMPUSGPT_THEME") })

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.Equal(t, "http://shell:8000", cfg.Server.BaseURL)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Server.BaseURL = "https://saved.example.edu"
	cfg.Chat.MaxMessages = 200
	cfg.Auth.Token = "must-not-be-written"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "must-not-be-written")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.edu", loaded.Server.BaseURL)
	assert.Equal(t, 200, loaded.Chat.MaxMessages)
	assert.Empty(t, loaded.Auth.Token)
}

func TestResolvePaths_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := Default()
	cfg.History.CachePath = "~/cache/history.db"
	require.NoError(t, cfg.ResolvePaths())
	assert.Equal(t, filepath.Join(home, "cache", "history.db"), cfg.History.CachePath)
}

func TestString_RedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "secret-token"
	out := cfg.String()
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, "REDACTED")
	assert.Contains(t, out, "base_url")
}
