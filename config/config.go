package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Reecepbcups/juno-vaults/crypto"
)

// Config is the daemon configuration loaded from a TOML file.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	Backend      string `toml:"Backend"`
	AdminAddress string `toml:"AdminAddress"`
	LogFile      string `toml:"LogFile"`
	NetworkName  string `toml:"NetworkName"`
}

const (
	defaultRPCAddress = "localhost:8645"
	defaultDataDir    = "./vaults-data"
	defaultBackend    = "leveldb"
)

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}

	for _, undecoded := range meta.Undecoded() {
		fmt.Printf("Warning: unknown configuration key %q\n", undecoded.String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = defaultBackend
	}
}

// Validate checks the configuration for values that would prevent startup.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unsupported storage backend %q", c.Backend)
	}
	if strings.TrimSpace(c.AdminAddress) != "" {
		if _, err := crypto.DecodeAddress(c.AdminAddress); err != nil {
			return fmt.Errorf("config: invalid admin address: %w", err)
		}
	}
	return nil
}

// Admin decodes the configured admin address. The boolean reports whether an
// admin was configured at all.
func (c *Config) Admin() (crypto.Address, bool, error) {
	trimmed := strings.TrimSpace(c.AdminAddress)
	if trimmed == "" {
		return crypto.Address{}, false, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, false, err
	}
	return addr, true, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  defaultRPCAddress,
		DataDir:     defaultDataDir,
		Backend:     defaultBackend,
		NetworkName: "juno-vaults",
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create default file: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode default file: %w", err)
	}
	return cfg, nil
}
