// Package config builds the explicit configuration struct that is handed to every deskmcp component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deskmcp/deskmcp/internal/service/mcp"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DirEnvVar              = "DESKMCP_DIR"
	BindPortEnvVar         = "PORT"
	ToolServerURLEnvVar    = "DESKMCP_TOOL_SERVER_URL"
	BackendProviderEnvVar  = "LLM_PROVIDER"
	BackendURLEnvVar       = "LLM_BASE_URL"
	BackendModelEnvVar     = "LLM_MODEL"
	BackendAPIKeyEnvVar    = "LLM_API_KEY"
	TelemetryEnabledEnvVar = "OTEL_ENABLED"
	LogLevelEnvVar         = "LOG_LEVEL"

	// McpServerInitReqTimeoutSecEnvVar is the environment variable for configuring
	// the timeout of the MCP initialization handshake with a tool server.
	McpServerInitReqTimeoutSecEnvVar = "MCP_SERVER_INIT_REQ_TIMEOUT_SEC"
)

const (
	BindHostDefault = "127.0.0.1"
	BindPortDefault = "8000"

	DefaultToolServerName = "desktop"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendURLDefault       = "http://localhost:8080/v1"
	OllamaBackendURLDefault = "http://localhost:11434"
	BackendModelDefault     = "llama3.2"
	BackendTimeoutDefault   = 60

	AgentInstructionsDefault = "Use the tools to achieve the task"
	AgentMaxToolCallsDefault = 1
	AgentTimeoutDefault      = 120

	// McpServerInitRequestTimeoutSecondsDefault is the default timeout in seconds for
	// the initialization request sent to a tool server.
	McpServerInitRequestTimeoutSecondsDefault = 10

	LogLevelDefault = "info"
)

// ToolServerConfig describes where the bundled tool server listens and which directory it lists.
type ToolServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Dir  string `yaml:"dir"`
}

// RemoteToolServer describes a tool server the agent connects to.
type RemoteToolServer struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Transport string `yaml:"transport"`
}

// BackendConfig describes the model inference server.
type BackendConfig struct {
	Provider   string `yaml:"provider"`
	URL        string `yaml:"url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	Instructions string `yaml:"instructions"`
	// MaxToolCalls bounds how many tool calls a single run may execute.
	MaxToolCalls int `yaml:"max_tool_calls"`
	TimeoutSec   int `yaml:"timeout_sec"`
}

// Config is the complete deskmcp configuration.
type Config struct {
	ToolServer  ToolServerConfig   `yaml:"tool_server"`
	ToolServers []RemoteToolServer `yaml:"tool_servers"`
	Backend     BackendConfig      `yaml:"backend"`
	Agent       AgentConfig        `yaml:"agent"`

	McpInitReqTimeoutSec int    `yaml:"mcp_init_req_timeout_sec"`
	TelemetryEnabled     bool   `yaml:"telemetry_enabled"`
	LogLevel             string `yaml:"log_level"`
}

// Default returns the configuration used when nothing else is supplied.
// The listing directory defaults to the Desktop folder in the user's home directory.
func Default() *Config {
	dir := "Desktop"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, "Desktop")
	}
	return &Config{
		ToolServer: ToolServerConfig{
			Host: BindHostDefault,
			Port: BindPortDefault,
			Dir:  dir,
		},
		Backend: BackendConfig{
			Provider:   ProviderOpenAI,
			URL:        BackendURLDefault,
			Model:      BackendModelDefault,
			TimeoutSec: BackendTimeoutDefault,
		},
		Agent: AgentConfig{
			Instructions: AgentInstructionsDefault,
			MaxToolCalls: AgentMaxToolCallsDefault,
			TimeoutSec:   AgentTimeoutDefault,
		},
		McpInitReqTimeoutSec: McpServerInitRequestTimeoutSecondsDefault,
		LogLevel:             LogLevelDefault,
	}
}

// Load builds the configuration.
// precedence: environment variables > config file > defaults
// The config file is optional; an empty path skips it.
func Load(fs afero.Fs, path string) (*Config, error) {
	c := Default()

	if path != "" {
		if err := c.mergeFile(fs, path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(fs); err != nil {
		return nil, err
	}
	c.fillToolServers()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// mergeFile overlays the YAML file at path onto c.
// Fields that are absent from the file keep their current values.
func (c *Config) mergeFile(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(fs afero.Fs) error {
	if v := os.Getenv(DirEnvVar); v != "" {
		c.ToolServer.Dir = v
	}
	if v := os.Getenv(BindPortEnvVar); v != "" {
		c.ToolServer.Port = v
	}
	if v := os.Getenv(ToolServerURLEnvVar); v != "" {
		c.ToolServers = []RemoteToolServer{{Name: DefaultToolServerName, URL: v}}
	}

	if v := os.Getenv(BackendProviderEnvVar); v != "" {
		provider := strings.ToLower(v)
		if provider != c.Backend.Provider && os.Getenv(BackendURLEnvVar) == "" && c.Backend.URL == BackendURLDefault {
			// switching provider without an explicit URL should not keep the other provider's default
			c.Backend.URL = DefaultBackendURL(provider)
		}
		c.Backend.Provider = provider
	}
	if v := os.Getenv(BackendURLEnvVar); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(BackendModelEnvVar); v != "" {
		c.Backend.Model = v
	}
	apiKey, err := getEnvOrFile(fs, BackendAPIKeyEnvVar)
	if err != nil {
		return err
	}
	if apiKey != "" {
		c.Backend.APIKey = apiKey
	}

	if v := strings.TrimSpace(os.Getenv(McpServerInitReqTimeoutSecEnvVar)); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil || timeout < 1 {
			return fmt.Errorf(
				"invalid value for %s: '%s', must be a positive integer", McpServerInitReqTimeoutSecEnvVar, v,
			)
		}
		c.McpInitReqTimeoutSec = timeout
	}

	if v := os.Getenv(TelemetryEnabledEnvVar); v != "" {
		switch strings.ToLower(v) {
		case "true", "1":
			c.TelemetryEnabled = true
		case "false", "0":
			c.TelemetryEnabled = false
		default:
			return fmt.Errorf(
				"invalid value for %s environment variable: '%s', valid values are 'true' or 'false'",
				TelemetryEnabledEnvVar, v,
			)
		}
	}

	if v := os.Getenv(LogLevelEnvVar); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

// fillToolServers makes sure the agent has at least one tool server to talk to.
// Without explicit configuration, it targets the bundled tool server.
func (c *Config) fillToolServers() {
	if len(c.ToolServers) == 0 {
		c.ToolServers = []RemoteToolServer{{
			Name: DefaultToolServerName,
			URL:  c.LocalToolServerURL(),
		}}
	}
	for i := range c.ToolServers {
		if c.ToolServers[i].Name == "" {
			c.ToolServers[i].Name = fmt.Sprintf("server%d", i+1)
		}
	}
}

// LocalToolServerURL returns the base URL of the bundled tool server.
func (c *Config) LocalToolServerURL() string {
	return fmt.Sprintf("http://%s:%s", c.ToolServer.Host, c.ToolServer.Port)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.ToolServer.Dir == "" {
		return fmt.Errorf("tool server directory must not be empty")
	}
	if c.ToolServer.Port == "" {
		return fmt.Errorf("tool server port must not be empty")
	}
	switch c.Backend.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf(
			"invalid backend provider: '%s', valid values are '%s' and '%s'",
			c.Backend.Provider, ProviderOpenAI, ProviderOllama,
		)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url must not be empty")
	}
	if c.Backend.Model == "" {
		return fmt.Errorf("backend model must not be empty")
	}
	seen := make(map[string]bool, len(c.ToolServers))
	for _, ts := range c.ToolServers {
		if err := mcp.ValidateServerName(ts.Name); err != nil {
			return fmt.Errorf("invalid tool_servers entry: %w", err)
		}
		if seen[ts.Name] {
			return fmt.Errorf("duplicate tool server name: '%s'", ts.Name)
		}
		seen[ts.Name] = true
	}
	if c.Agent.MaxToolCalls < 0 {
		return fmt.Errorf("agent max_tool_calls must not be negative, got %d", c.Agent.MaxToolCalls)
	}
	if c.McpInitReqTimeoutSec < 1 {
		return fmt.Errorf("mcp_init_req_timeout_sec must be a positive integer, got %d", c.McpInitReqTimeoutSec)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf(
			"invalid log level: '%s', valid values are 'debug', 'info', 'warn' and 'error'", c.LogLevel,
		)
	}
	return nil
}

// DefaultBackendURL returns the conventional local address of the given provider.
func DefaultBackendURL(provider string) string {
	if provider == ProviderOllama {
		return OllamaBackendURLDefault
	}
	return BackendURLDefault
}

// getEnvOrFile returns the value of the given environment variable.
// If the environment variable is not set, it checks for a corresponding
// _FILE environment variable and reads the value from the file if it exists.
// If neither is set, it returns an empty string.
// If both are set, the value of the original environment variable takes precedence.
func getEnvOrFile(fs afero.Fs, envVar string) (string, error) {
	val := os.Getenv(envVar)
	if val != "" {
		return val, nil
	}

	fileEnvVar := envVar + "_FILE"
	filePath := os.Getenv(fileEnvVar)
	if filePath != "" {
		data, err := afero.ReadFile(fs, filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", fileEnvVar, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return "", nil
}
