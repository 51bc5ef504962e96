package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"revault/native/vault"
)

// Config is the on-disk vault parameters file. Governance owns this file; the
// service reads it at startup and seeds any value not already present in
// state.
type Config struct {
	DataDir string       `toml:"DataDir"`
	Vault   vault.Config `toml:"Vault"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./revault-data"
	}
	return cfg, nil
}

// Parameters validates the vault section and converts it to runtime values.
func (c *Config) Parameters() (vault.Params, error) {
	return c.Vault.Parameters()
}
