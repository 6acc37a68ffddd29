// Package config loads sbmpctl's persistent configuration: the serial
// device to talk to, the checksum kind to prefer, and where the local
// handshake-history database and diagnostic log live.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds sbmpctl's configuration.
type Config struct {
	Device       string `yaml:"device" json:"device"`
	BaudRate     int    `yaml:"baud_rate" json:"baud_rate"`
	Checksum     string `yaml:"checksum" json:"checksum"`
	BufferSize   int    `yaml:"buffer_size" json:"buffer_size"`
	HistoryPath  string `yaml:"history_path" json:"history_path"`
	LogPath      string `yaml:"log_path" json:"log_path"`
	OutputFormat string `yaml:"output_format" json:"output_format"`
}

// DefaultPath returns the default config file path: ~/.sbmp/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sbmp", "config.yaml")
	}
	return filepath.Join(home, ".sbmp", "config.yaml")
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".sbmp")
	return &Config{
		Device:       "/dev/ttyUSB0",
		BaudRate:     115200,
		Checksum:     "crc32",
		BufferSize:   256,
		HistoryPath:  filepath.Join(dir, "history.db"),
		LogPath:      filepath.Join(dir, "sbmp.jsonl"),
		OutputFormat: "table",
	}
}

// Load reads the configuration from the given YAML file path. If the file
// does not exist, it returns a default Config with no error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr,
			"warning: config file %s has permissions %04o — expected 0600\n", path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
