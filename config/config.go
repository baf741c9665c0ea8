// Package config handles goalwire client configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An explicit
// path (from a -config flag) is checked first by FindConfig; then:
// ./goalwire.yaml, ~/.config/goalwire/goalwire.yaml,
// /etc/goalwire/goalwire.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"goalwire.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "goalwire", "goalwire.yaml"))
	}

	paths = append(paths, "/etc/goalwire/goalwire.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise the default search paths are tried in order and the
// first that exists wins.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all goalwire client configuration.
type Config struct {
	// Node is the client's name on the fabric; it prefixes generated
	// goal ids. Defaults to goalwire-<pid>.
	Node string `yaml:"node"`
	// Namespace prefixes every action topic on the fabric.
	Namespace string     `yaml:"namespace"`
	LogLevel  string     `yaml:"log_level"`
	MQTT      MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig defines the broker connection for the MQTT transport.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. mqtt://host:1883 or mqtts://host:8883.
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	// QoS applies to every publication and subscription (0, 1 or 2).
	QoS byte `yaml:"qos"`
	// KeepAliveSec is the MQTT keep-alive interval (default 30).
	KeepAliveSec uint16 `yaml:"keep_alive_sec"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Node == "" {
		c.Node = fmt.Sprintf("goalwire-%d", os.Getpid())
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MQTT.KeepAliveSec == 0 {
		c.MQTT.KeepAliveSec = 30
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Node
	}
}

func (c *Config) validate() error {
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d (must be 0, 1 or 2)", c.MQTT.QoS)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}
