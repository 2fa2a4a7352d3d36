package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"crowdsale/native/sale"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// JWTSecretEnv names the environment variable holding the HS256 secret
	// for operator authentication. The secret itself never lives on disk.
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	// TokenMinter optionally overrides the token mint authority. When
	// empty the sale vault address is used, which enables mint-on-claim.
	TokenMinter string        `toml:"TokenMinter"`
	Log         LogConfig     `toml:"log"`
	Sale        SaleConfig    `toml:"sale"`
	Genesis     GenesisConfig `toml:"genesis"`
}

// GenesisConfig seeds base-currency balances when the data directory is
// created. Contributions draw on these balances, so a deployment without
// allocations cannot accept any contribution.
type GenesisConfig struct {
	Allocations []AllocationConfig `toml:"allocations"`
}

// AllocationConfig is a single genesis balance credit.
type AllocationConfig struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

// LogConfig controls structured log output. When File is empty logs go to
// stdout.
type LogConfig struct {
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// SaleConfig carries the immutable sale parameters. Amounts are decimal
// base-unit strings; Rate is scaled by 1e18.
type SaleConfig struct {
	Operator         string   `toml:"Operator"`
	StartTime        int64    `toml:"StartTime"`
	EndTime          int64    `toml:"EndTime"`
	SoftCap          string   `toml:"SoftCap"`
	HardCap          string   `toml:"HardCap"`
	MinContribution  string   `toml:"MinContribution"`
	MaxContribution  string   `toml:"MaxContribution"`
	Rate             string   `toml:"Rate"`
	WhitelistEnabled bool     `toml:"WhitelistEnabled"`
	Whitelist        []string `toml:"Whitelist"`
}

// Load reads the configuration from path, creating a commented default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown keys: %v", path, undecoded)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "0.0.0.0:8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./saledata"
	}
	if strings.TrimSpace(cfg.JWTSecretEnv) == "" {
		cfg.JWTSecretEnv = "CROWDSALE_JWT_SECRET"
	}
}

// Validate checks the configuration, including the sale parameters.
func (c *Config) Validate() error {
	if _, err := c.SaleParams(); err != nil {
		return err
	}
	if _, err := c.WhitelistAddresses(); err != nil {
		return err
	}
	if _, err := c.TokenMinterAddress(); err != nil {
		return err
	}
	if _, err := c.GenesisAllocations(); err != nil {
		return err
	}
	return nil
}

// GenesisAllocations parses the [genesis] table into per-address starting
// balances.
func (c *Config) GenesisAllocations() (map[[20]byte]*big.Int, error) {
	allocations := make(map[[20]byte]*big.Int, len(c.Genesis.Allocations))
	for _, entry := range c.Genesis.Allocations {
		addr, err := parseAddress(entry.Address, "genesis.allocations.Address")
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(entry.Balance, "genesis.allocations.Balance")
		if err != nil {
			return nil, err
		}
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("config: genesis balance for %s must be positive", entry.Address)
		}
		if _, ok := allocations[addr]; ok {
			return nil, fmt.Errorf("config: duplicate genesis allocation for %s", entry.Address)
		}
		allocations[addr] = amount
	}
	return allocations, nil
}

// SaleParams parses and validates the [sale] table into engine parameters.
func (c *Config) SaleParams() (*sale.Params, error) {
	operator, err := parseAddress(c.Sale.Operator, "sale.Operator")
	if err != nil {
		return nil, err
	}
	params := &sale.Params{
		StartTime: c.Sale.StartTime,
		EndTime:   c.Sale.EndTime,
		Operator:  operator,
	}
	if params.SoftCap, err = parseAmount(c.Sale.SoftCap, "sale.SoftCap"); err != nil {
		return nil, err
	}
	if params.HardCap, err = parseAmount(c.Sale.HardCap, "sale.HardCap"); err != nil {
		return nil, err
	}
	if params.MinContribution, err = parseAmount(c.Sale.MinContribution, "sale.MinContribution"); err != nil {
		return nil, err
	}
	if params.MaxContribution, err = parseAmount(c.Sale.MaxContribution, "sale.MaxContribution"); err != nil {
		return nil, err
	}
	if params.Rate, err = parseAmount(c.Sale.Rate, "sale.Rate"); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// WhitelistAddresses parses the configured allow-list.
func (c *Config) WhitelistAddresses() ([][20]byte, error) {
	parties := make([][20]byte, 0, len(c.Sale.Whitelist))
	for _, entry := range c.Sale.Whitelist {
		addr, err := parseAddress(entry, "sale.Whitelist")
		if err != nil {
			return nil, err
		}
		parties = append(parties, addr)
	}
	return parties, nil
}

// TokenMinterAddress returns the configured mint authority, or false when
// the default (sale vault) should be used.
func (c *Config) TokenMinterAddress() (*[20]byte, error) {
	if strings.TrimSpace(c.TokenMinter) == "" {
		return nil, nil
	}
	addr, err := parseAddress(c.TokenMinter, "TokenMinter")
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// JWTSecret resolves the operator authentication secret from the
// environment.
func (c *Config) JWTSecret() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv(c.JWTSecretEnv))
	if secret == "" {
		return nil, fmt.Errorf("config: environment variable %s not set", c.JWTSecretEnv)
	}
	return []byte(secret), nil
}

func parseAddress(value, field string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("config: %s is not a valid address: %q", field, value)
	}
	return [20]byte(ethcommon.HexToAddress(trimmed)), nil
}

func parseAmount(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("config: %s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid %s: %q", field, value)
	}
	return amount, nil
}

// createDefault writes a starter configuration the operator must fill in
// before the daemon will start.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Sale = SaleConfig{
		Operator:        "0x0000000000000000000000000000000000000000",
		StartTime:       0,
		EndTime:         0,
		SoftCap:         "0",
		HardCap:         "0",
		MinContribution: "0",
		MaxContribution: "0",
		Rate:            "0",
	}
	if dir := filepath.Dir(path); dir != "" {
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
	return nil, fmt.Errorf("config: wrote default file to %s; fill in the [sale] table before starting", path)
}
