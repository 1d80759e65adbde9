package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	Env          string `toml:"Env"`
	LogPath      string `toml:"LogPath"`
	DevMode      bool   `toml:"DevMode"`
	OwnerAddress string `toml:"OwnerAddress"`
	ImageBaseURL string `toml:"ImageBaseURL"`

	// FaucetAddress, when set in dev mode, receives a starting balance so
	// the lending flow can be exercised locally without a settlement layer.
	FaucetAddress string `toml:"FaucetAddress"`

	Protocol Protocol `toml:"protocol"`
	Pauses   Pauses   `toml:"pauses"`
}

// Pauses administratively halts the mutating entry points of a module.
type Pauses struct {
	Pool   bool `toml:"Pool"`
	Issuer bool `toml:"Issuer"`
}

// IsPaused reports the administrative pause state for a module name.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "pool":
		return p.Pool
	case "issuer":
		return p.Issuer
	}
	return false
}

// Protocol groups the issuance policy knobs. Defaults mirror the reference
// deployment; operators rarely change them.
type Protocol struct {
	MaxPrincipalWei *big.Int `toml:"MaxPrincipalWei"`
	AdvanceRateBps  uint64   `toml:"AdvanceRateBps"`
	InterestRateBps uint64   `toml:"InterestRateBps"`
	NoteTermDays    uint64   `toml:"NoteTermDays"`
}

// Load reads the configuration from the given path, writing a default file on
// first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	// Dev mode with no data dir runs against the in-memory store.
	if !c.DevMode && strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./credora-data"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "local"
	}
	if c.Protocol.MaxPrincipalWei == nil || c.Protocol.MaxPrincipalWei.Sign() == 0 {
		c.Protocol.MaxPrincipalWei, _ = new(big.Int).SetString("5000000000000000000", 10)
	}
	if c.Protocol.AdvanceRateBps == 0 {
		c.Protocol.AdvanceRateBps = 2_000
	}
	if c.Protocol.InterestRateBps == 0 {
		c.Protocol.InterestRateBps = 500
	}
	if c.Protocol.NoteTermDays == 0 {
		c.Protocol.NoteTermDays = 365
	}
}

// Validate rejects configurations the engines cannot operate under.
func (c *Config) Validate() error {
	if c.Protocol.AdvanceRateBps > 10_000 {
		return fmt.Errorf("config: AdvanceRateBps %d exceeds 10000", c.Protocol.AdvanceRateBps)
	}
	if c.Protocol.InterestRateBps > 10_000 {
		return fmt.Errorf("config: InterestRateBps %d exceeds 10000", c.Protocol.InterestRateBps)
	}
	if c.Protocol.MaxPrincipalWei == nil || c.Protocol.MaxPrincipalWei.Sign() <= 0 {
		return fmt.Errorf("config: MaxPrincipalWei must be positive")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{DevMode: true}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
