package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testConfig = `
default-model: 4o
apis:
  openai:
    base-url: https://api.openai.com/v1
    api-key-env: OPENAI_API_KEY
    models:
      gpt-4o:
        aliases: ["4o"]
  ollama:
    base-url: http://localhost:11434/v1
    models:
      llama3.2:
        aliases: ["4o", "llama"]
`

func TestConfig(t *testing.T) {
	t.Run("models and aliases", func(t *testing.T) {
		cfg := defaultConfig()
		require.NoError(t, parseConfig([]byte(testConfig), &cfg))
		require.Equal(t, "4o", cfg.Model)
		require.Len(t, cfg.APIs, 2)
		require.Equal(t, "openai", cfg.APIs[0].Name)
		require.Equal(t, "ollama", cfg.APIs[1].Name)

		// first definition of an alias wins.
		require.Equal(t, "openai", cfg.Models["4o"].API)
		require.Equal(t, "gpt-4o", cfg.Models["4o"].Name)
		require.Equal(t, "llama3.2", cfg.Models["llama"].Name)
	})

	t.Run("defaults are kept", func(t *testing.T) {
		cfg := defaultConfig()
		require.NoError(t, parseConfig([]byte(testConfig), &cfg))
		require.Equal(t, 10, cfg.MaxRounds)
		require.Equal(t, 15*time.Second, cfg.MCPTimeout)
		require.InDelta(t, -1.0, cfg.Temperature, 0.0001)
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := defaultConfig()
		err := parseConfig([]byte("apis: [nope"), &cfg)
		var rerr relayError
		require.ErrorAs(t, err, &rerr)
		require.Equal(t, "Could not parse settings file.", rerr.Reason())
	})

	t.Run("template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay.yml")
		require.NoError(t, writeConfigFile(path))
		content, err := os.ReadFile(path)
		require.NoError(t, err)

		cfg := Config{}
		require.NoError(t, parseConfig(content, &cfg))
		require.Equal(t, "gpt-4o", cfg.Model)
		require.Equal(t, 5*time.Minute, cfg.RequestTimeout)
		require.Equal(t, time.Hour, cfg.MCPCache)
		require.Equal(t, "ollama", cfg.Models["llama3.2"].API)
		require.Contains(t, cfg.Roles, "default")

		api, _, err := cfg.resolveModel()
		require.NoError(t, err)
		require.Equal(t, "openai", api.Name)
		for _, api := range cfg.APIs {
			if api.Name == "ollama" {
				require.Equal(t, apiTypeOllama, api.Type)
			}
		}
	})
}

func TestResolveModel(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, parseConfig([]byte(testConfig), &cfg))

	t.Run("alias", func(t *testing.T) {
		api, mod, err := cfg.resolveModel()
		require.NoError(t, err)
		require.Equal(t, "openai", api.Name)
		require.Equal(t, "gpt-4o", mod.Name)
	})

	t.Run("unknown model with api", func(t *testing.T) {
		cfg := cfg
		cfg.Model = "qwen2.5"
		cfg.API = "ollama"
		api, mod, err := cfg.resolveModel()
		require.NoError(t, err)
		require.Equal(t, "http://localhost:11434/v1", api.BaseURL)
		require.Equal(t, "qwen2.5", mod.Name)
	})

	t.Run("unknown model", func(t *testing.T) {
		cfg := cfg
		cfg.Model = "nope"
		_, _, err := cfg.resolveModel()
		var rerr relayError
		require.ErrorAs(t, err, &rerr)
		require.Equal(t, "Could not find the model.", rerr.Reason())
	})

	t.Run("unknown api", func(t *testing.T) {
		cfg := cfg
		cfg.API = "nope"
		_, _, err := cfg.resolveModel()
		require.ErrorIs(t, err, errNoAPI)
	})

	t.Run("api key", func(t *testing.T) {
		t.Setenv("RELAY_TEST_KEY", "sk-env")
		key, err := API{APIKeyEnv: "RELAY_TEST_KEY"}.apiKey()
		require.NoError(t, err)
		require.Equal(t, "sk-env", key)

		key, err = API{APIKey: "sk-file", APIKeyEnv: "RELAY_TEST_KEY"}.apiKey()
		require.NoError(t, err)
		require.Equal(t, "sk-file", key)

		_, err = API{Name: "openai", APIKeyEnv: "RELAY_TEST_MISSING_KEY"}.apiKey()
		require.Error(t, err)

		key, err = API{Name: "ollama"}.apiKey()
		require.NoError(t, err)
		require.Empty(t, key)

		key, err = API{Name: "local", Type: apiTypeOllama, APIKeyEnv: "RELAY_TEST_MISSING_KEY"}.apiKey()
		require.NoError(t, err)
		require.Empty(t, key)
	})
}
