package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/x/exp/ordered"
	"gopkg.in/yaml.v3"
)

var help = map[string]string{
	"api":             "API to use, as named in the settings (openai, ollama, localai).",
	"apis":            "Aliases and endpoints of the APIs. Set type to ollama for the native Ollama API.",
	"model":           "Default model (gpt-4o, gpt-4o-mini, llama3.2...).",
	"role":            "System role to use.",
	"roles":           "Roles are system messages prepended to new conversations. Each item can be a string, a file:// path or a http(s):// URL.",
	"list-roles":      "List the roles defined in your configuration file.",
	"quiet":           "Quiet mode (hide function call activity).",
	"help":            "Show help and exit.",
	"version":         "Show version and exit.",
	"max-retries":     "Maximum number of times to retry API calls.",
	"max-tokens":      "Maximum number of tokens in response.",
	"temp":            "Temperature (randomness) of results, from 0.0 to 2.0, -1.0 to disable.",
	"topp":            "TopP, an alternative to temperature that narrows response, from 0.0 to 1.0, -1.0 to disable.",
	"stop":            "Up to 4 sequences where the API will stop generating further tokens.",
	"choices":         "Number of completion choices to request. Only the first one is shown.",
	"max-rounds":      "Maximum number of requests made for a single prompt, 0 for no limit.",
	"inject-context":  "Add the response to the conversation as it streams.",
	"request-timeout": "Timeout for each API request.",
	"user":            "End-user identifier sent with each request.",
	"log-level":       "Log level (debug, info, warn, error).",
	"settings":        "Open settings in your $EDITOR.",
	"dirs":            "Print the directories in which relay store its data.",
	"continue":        "Continue from the last response or a given save title.",
	"continue-last":   "Continue from the last response.",
	"no-cache":        "Disables caching of the prompt/response.",
	"title":           "Saves the current conversation with the given title.",
	"list":            "Lists saved conversations.",
	"delete":          "Deletes a saved conversation with the given title or ID.",
	"show":            "Show a saved conversation with the given title or ID.",
	"show-last":       "Show the last saved conversation.",
	"copy":            "Copies the last response to the clipboard.",
	"list-functions":  "List the functions available to the model.",
	"mcp-servers":     "MCP Servers configurations. Their tools are offered to the model as functions.",
	"mcp-disable":     "Disable specific MCP servers, use '*' to disable all of them.",
	"mcp-timeout":     "Timeout for MCP server calls.",
	"mcp-cache":       "How long to cache the tools listed by MCP servers.",
}

// Model represents the LLM model used in the API call.
type Model struct {
	Name    string
	API     string
	Aliases []string `yaml:"aliases"`
}

// API represents an API endpoint and its models.
type API struct {
	Name      string
	APIKey    string           `yaml:"api-key"`
	APIKeyEnv string           `yaml:"api-key-env"`
	BaseURL   string           `yaml:"base-url"`
	Type      string           `yaml:"type"`
	Models    map[string]Model `yaml:"models"`
}

// APIs is a type alias to allow custom YAML decoding.
type APIs []API

// UnmarshalYAML implements sorted API YAML decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("error decoding YAML file: %s", err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// MCPServerConfig holds the configuration for an MCP server.
type MCPServerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
}

// Config holds the main configuration and is mapped to the YAML settings file.
type Config struct {
	Model          string                     `yaml:"default-model" env:"MODEL"`
	API            string                     `yaml:"default-api" env:"API"`
	Role           string                     `yaml:"role" env:"ROLE"`
	Roles          map[string][]string        `yaml:"roles"`
	Quiet          bool                       `yaml:"quiet" env:"QUIET"`
	MaxTokens      int64                      `yaml:"max-tokens" env:"MAX_TOKENS"`
	Temperature    float64                    `yaml:"temp" env:"TEMP"`
	TopP           float64                    `yaml:"topp" env:"TOPP"`
	Stop           []string                   `yaml:"stop" env:"STOP"`
	Choices        int64                      `yaml:"choices" env:"CHOICES"`
	MaxRounds      int                        `yaml:"max-rounds" env:"MAX_ROUNDS"`
	InjectContext  bool                       `yaml:"inject-context" env:"INJECT_CONTEXT"`
	MaxRetries     int                        `yaml:"max-retries" env:"MAX_RETRIES"`
	RequestTimeout time.Duration              `yaml:"request-timeout" env:"REQUEST_TIMEOUT"`
	User           string                     `yaml:"user" env:"USER"`
	LogLevel       string                     `yaml:"log-level" env:"LOG_LEVEL"`
	CachePath      string                     `yaml:"cache-path" env:"CACHE_PATH"`
	NoCache        bool                       `yaml:"no-cache" env:"NO_CACHE"`
	MCPServers     map[string]MCPServerConfig `yaml:"mcp-servers"`
	MCPDisable     []string                   `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPTimeout     time.Duration              `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	MCPCache       time.Duration              `yaml:"mcp-cache" env:"MCP_CACHE"`
	APIs           APIs                       `yaml:"apis"`
	Models         map[string]Model
	SettingsPath   string
	ShowHelp       bool
	Version        bool
	Settings       bool
	Dirs           bool
	ListRoles      bool
	ListFunctions  bool
	ContinueLast   bool
	Continue       string
	Title          string
	Show           string
	ShowLast       bool
	List           bool
	Delete         []string
	Copy           bool

	cacheReadFromID, cacheWriteToID, cacheWriteToTitle string
}

func defaultConfig() Config {
	return Config{
		Model:          "gpt-4o",
		Temperature:    -1,
		TopP:           -1,
		MaxRetries:     5,
		MaxRounds:      10,
		LogLevel:       "warn",
		RequestTimeout: 5 * time.Minute,
		MCPTimeout:     15 * time.Second,
		MCPCache:       time.Hour,
	}
}

func ensureConfig() (Config, error) {
	c := defaultConfig()
	sp, err := xdg.ConfigFile(filepath.Join("relay", "relay.yml"))
	if err != nil {
		return c, relayError{err, "Could not find settings path."}
	}
	c.SettingsPath = sp

	dir := filepath.Dir(sp)
	if dirErr := os.MkdirAll(dir, 0o700); dirErr != nil { //nolint:mnd
		return c, relayError{dirErr, "Could not create cache directory."}
	}

	if dirErr := writeConfigFile(sp); dirErr != nil {
		return c, dirErr
	}
	content, err := os.ReadFile(sp)
	if err != nil {
		return c, relayError{err, "Could not read settings file."}
	}
	if err := parseConfig(content, &c); err != nil {
		return c, err
	}

	if err := env.ParseWithOptions(&c, env.Options{Prefix: "RELAY_"}); err != nil {
		return c, relayError{err, "Could not parse environment into settings file."}
	}

	if c.CachePath == "" {
		c.CachePath = filepath.Join(xdg.DataHome, "relay")
	}

	if err := os.MkdirAll(c.CachePath, 0o700); err != nil { //nolint:mnd
		return c, relayError{err, "Could not create cache directory."}
	}

	return c, nil
}

func parseConfig(content []byte, c *Config) error {
	if err := yaml.Unmarshal(content, c); err != nil {
		return relayError{err, "Could not parse settings file."}
	}
	ms := make(map[string]Model)
	for _, api := range c.APIs {
		for mk, mv := range api.Models {
			mv.Name = mk
			mv.API = api.Name
			// only set the model key and aliases if they haven't already been used
			if _, ok := ms[mk]; !ok {
				ms[mk] = mv
			}
			for _, a := range mv.Aliases {
				if _, ok := ms[a]; !ok {
					ms[a] = mv
				}
			}
		}
	}
	c.Models = ms
	return nil
}

var errNoAPI = errors.New("no api")

// resolveModel finds which API and model should be used for the request.
func (c Config) resolveModel() (API, Model, error) {
	mod, ok := c.Models[c.Model]
	if !ok {
		if c.API == "" {
			return API{}, Model{}, relayError{
				err: newUserErrorf(
					"Model %s is not in the settings file.",
					stderrStyles().InlineCode.Render(c.Model),
				),
				reason: "Could not find the model.",
			}
		}
		mod = Model{Name: c.Model, API: c.API}
	}

	apiName := ordered.First(c.API, mod.API)
	for _, api := range c.APIs {
		if api.Name == apiName {
			return api, mod, nil
		}
	}
	return API{}, Model{}, relayError{
		err:    fmt.Errorf("%w: %s", errNoAPI, apiName),
		reason: fmt.Sprintf("The API %q is not configured.", apiName),
	}
}

const apiTypeOllama = "ollama"

// apiKey returns the key for the API, from the settings file first, then
// from the configured environment variable.
func (api API) apiKey() (string, error) {
	key := ordered.First(api.APIKey, os.Getenv(api.APIKeyEnv))
	if key == "" && api.APIKeyEnv != "" && api.Type != apiTypeOllama {
		return "", relayError{
			err: newUserErrorf(
				"%s environment variable is required.",
				stderrStyles().InlineCode.Render(api.APIKeyEnv),
			),
			reason: fmt.Sprintf("%s API key is missing.", api.Name),
		}
	}
	return key, nil
}

func writeConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return relayError{err, "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return relayError{err, "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct {
		Config Config
		Help   map[string]string
	}{
		Config: defaultConfig(),
		Help:   help,
	}
	if err := tmpl.Execute(f, m); err != nil {
		return relayError{err, "Could not render template."}
	}
	return nil
}
