package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfig = `
ListenAddress = "127.0.0.1:9090"
DataDir = "/tmp/saledata"
JWTSecretEnv = "TEST_SALE_SECRET"

[log]
Env = "test"

[sale]
Operator = "0x000000000000000000000000000000000000000f"
StartTime = 100
EndTime = 200
SoftCap = "10"
HardCap = "100"
MinContribution = "1"
MaxContribution = "50"
Rate = "2000000000000000000"
WhitelistEnabled = true
Whitelist = ["0x00000000000000000000000000000000000000a1"]

[[genesis.allocations]]
Address = "0x00000000000000000000000000000000000000a1"
Balance = "1000"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.ListenAddress)
	require.Equal(t, "TEST_SALE_SECRET", cfg.JWTSecretEnv)
	require.True(t, cfg.Sale.WhitelistEnabled)

	params, err := cfg.SaleParams()
	require.NoError(t, err)
	require.Equal(t, int64(100), params.StartTime)
	require.Equal(t, 0, params.HardCap.Cmp(big.NewInt(100)))
	require.Equal(t, [20]byte{19: 0x0f}, params.Operator)

	parties, err := cfg.WhitelistAddresses()
	require.NoError(t, err)
	require.Len(t, parties, 1)
	require.Equal(t, [20]byte{19: 0xa1}, parties[0])
}

func TestLoadAppliesDefaults(t *testing.T) {
	body := `
[sale]
Operator = "0x000000000000000000000000000000000000000f"
StartTime = 100
EndTime = 200
SoftCap = "10"
HardCap = "100"
MinContribution = "1"
MaxContribution = "50"
Rate = "1000000000000000000"
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8545", cfg.ListenAddress)
	require.Equal(t, "./saledata", cfg.DataDir)
	require.Equal(t, "CROWDSALE_JWT_SECRET", cfg.JWTSecretEnv)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nBogusKey = true\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown keys")
}

func TestLoadRejectsInvalidSale(t *testing.T) {
	cases := map[string]string{
		"bad operator": `
[sale]
Operator = "not-an-address"
StartTime = 100
EndTime = 200
SoftCap = "10"
HardCap = "100"
MinContribution = "1"
MaxContribution = "50"
Rate = "1000000000000000000"
`,
		"missing caps": `
[sale]
Operator = "0x000000000000000000000000000000000000000f"
StartTime = 100
EndTime = 200
`,
		"inverted window": `
[sale]
Operator = "0x000000000000000000000000000000000000000f"
StartTime = 200
EndTime = 100
SoftCap = "10"
HardCap = "100"
MinContribution = "1"
MaxContribution = "50"
Rate = "1000000000000000000"
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.toml")
	_, err := Load(path)
	require.Error(t, err)
	require.FileExists(t, path)

	// The generated file parses but fails validation until filled in.
	_, err = Load(path)
	require.Error(t, err)
}

func TestTokenMinterAddress(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	minter, err := cfg.TokenMinterAddress()
	require.NoError(t, err)
	require.Nil(t, minter)

	cfg.TokenMinter = "0x00000000000000000000000000000000000000b2"
	minter, err = cfg.TokenMinterAddress()
	require.NoError(t, err)
	require.NotNil(t, minter)
	require.Equal(t, [20]byte{19: 0xb2}, *minter)

	cfg.TokenMinter = "garbage"
	_, err = cfg.TokenMinterAddress()
	require.Error(t, err)
}

func TestGenesisAllocations(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	allocations, err := cfg.GenesisAllocations()
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.Equal(t, 0, allocations[[20]byte{19: 0xa1}].Cmp(big.NewInt(1000)))

	cfg.Genesis.Allocations = append(cfg.Genesis.Allocations, AllocationConfig{
		Address: "0x00000000000000000000000000000000000000a1",
		Balance: "5",
	})
	_, err = cfg.GenesisAllocations()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")

	cfg.Genesis.Allocations = []AllocationConfig{{
		Address: "0x00000000000000000000000000000000000000b2",
		Balance: "0",
	}}
	_, err = cfg.GenesisAllocations()
	require.Error(t, err)

	cfg.Genesis.Allocations = []AllocationConfig{{Address: "garbage", Balance: "5"}}
	_, err = cfg.GenesisAllocations()
	require.Error(t, err)
}

func TestJWTSecret(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	t.Setenv("TEST_SALE_SECRET", "")
	_, err = cfg.JWTSecret()
	require.Error(t, err)

	t.Setenv("TEST_SALE_SECRET", "topsecret")
	secret, err := cfg.JWTSecret()
	require.NoError(t, err)
	require.Equal(t, []byte("topsecret"), secret)
}
