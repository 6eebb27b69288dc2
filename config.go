package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ghost-labs/tradenode/pkg/custody"
	"github.com/ghost-labs/tradenode/pkg/stacks"
)

type Mode string

const (
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

const (
	configDirPathEnv     = "TRADENODE_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."

	defaultMainnetAPI = "https://api.hiro.so"
	defaultTestnetAPI = "https://api.testnet.hiro.so"
)

// CustodyEnv holds the custody service credentials and the fixed
// provisioning parameters.
type CustodyEnv struct {
	APIBaseURL          string `env:"TRADENODE_CUSTODY_API_URL" env-default:"https://api.turnkey.com"`
	ParentOrgID         string `env:"TRADENODE_PARENT_ORG_ID"`
	ParentPublicKey     string `env:"TRADENODE_PARENT_API_PUBLIC_KEY"`
	ParentPrivateKey    string `env:"TRADENODE_PARENT_API_PRIVATE_KEY"`
	DelegatedPublicKey  string `env:"TRADENODE_DELEGATED_API_PUBLIC_KEY"`
	DelegatedPrivateKey string `env:"TRADENODE_DELEGATED_API_PRIVATE_KEY"`
	DelegatedUserName   string `env:"TRADENODE_DELEGATED_USER_NAME" env-default:"Delegated Operator"`
	DelegatedAPIKeyName string `env:"TRADENODE_DELEGATED_API_KEY_NAME" env-default:"Delegated Operator Key"`
	PolicyName          string `env:"TRADENODE_POLICY_NAME" env-default:"Delegated Operator Signing Policy"`
	WalletName          string `env:"TRADENODE_WALLET_NAME" env-default:"Trading Wallet"`
}

// ChainEnv holds the blockchain API settings.
type ChainEnv struct {
	Network         string        `env:"TRADENODE_NETWORK" env-default:"testnet"`
	APIBaseURL      string        `env:"TRADENODE_CHAIN_API_URL" env-default:""`
	APIKeys         string        `env:"TRADENODE_CHAIN_API_KEYS" env-default:""`
	TrustRecoveryID bool          `env:"TRADENODE_TRUST_RECOVERY_ID" env-default:"false"`
	StepDelay       time.Duration `env:"TRADENODE_STEP_DELAY" env-default:"3s"`
}

// ServerEnv holds the listen addresses and worker cadence.
type ServerEnv struct {
	ListenAddr        string        `env:"TRADENODE_LISTEN_ADDR" env-default:":8000"`
	MetricsAddr       string        `env:"TRADENODE_METRICS_ADDR" env-default:":4242"`
	CacheSyncInterval time.Duration `env:"TRADENODE_CACHE_SYNC_INTERVAL" env-default:"5m"`
	AMMContract       string        `env:"TRADENODE_AMM_CONTRACT" env-default:""`
}

// Config represents the overall application configuration
type Config struct {
	mode       Mode
	custodyEnv CustodyEnv
	chainEnv   ChainEnv
	serverEnv  ServerEnv
	network    stacks.Network
	assets     AssetsConfig
	dbConf     DatabaseConfig
}

// LoadConfig builds configuration from environment variables
func LoadConfig(logger Logger) (*Config, error) {
	logger = logger.NewSystem("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	// Load .env files
	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found")
	}

	mode := Mode(os.Getenv("TRADENODE_MODE"))
	if mode == "" {
		mode = ModeProduction
	} else if mode != ModeProduction && mode != ModeTest {
		logger.Fatal("invalid TRADENODE_MODE value", "value", mode)
	}
	logger.Info("set mode", "value", mode)

	// Get database URL from environment variables
	var dbConf DatabaseConfig
	dbURL := os.Getenv("TRADENODE_DATABASE_URL")

	// If DATABASE_URL is not empty, parse the connection string
	// Otherwise, read the envs in usual way
	if dbURL != "" {
		var err error
		dbConf, err = ParseConnectionString(dbURL)
		if err != nil {
			logger.Error("failed to parse connection string", "err", err)
			return nil, err
		}
	} else {
		if err := cleanenv.ReadEnv(&dbConf); err != nil {
			logger.Error("failed to read env", "err", err)
			return nil, err
		}
	}

	var custodyEnv CustodyEnv
	if err := cleanenv.ReadEnv(&custodyEnv); err != nil {
		logger.Error("failed to read custody env", "err", err)
		return nil, err
	}
	if custodyEnv.ParentOrgID == "" {
		logger.Fatal("TRADENODE_PARENT_ORG_ID environment variable is required")
	}
	if custodyEnv.ParentPublicKey == "" || custodyEnv.ParentPrivateKey == "" {
		logger.Fatal("parent custody API key pair is required")
	}
	if custodyEnv.DelegatedPublicKey == "" || custodyEnv.DelegatedPrivateKey == "" {
		logger.Fatal("delegated custody API key pair is required")
	}

	var chainEnv ChainEnv
	if err := cleanenv.ReadEnv(&chainEnv); err != nil {
		logger.Error("failed to read chain env", "err", err)
		return nil, err
	}
	network, err := stacks.ParseNetwork(chainEnv.Network)
	if err != nil {
		logger.Fatal("invalid TRADENODE_NETWORK value", "value", chainEnv.Network)
	}
	if chainEnv.APIBaseURL == "" {
		if network == stacks.NetworkMainnet {
			chainEnv.APIBaseURL = defaultMainnetAPI
		} else {
			chainEnv.APIBaseURL = defaultTestnetAPI
		}
	}
	logger.Info("set network", "network", network, "api", chainEnv.APIBaseURL)

	var serverEnv ServerEnv
	if err := cleanenv.ReadEnv(&serverEnv); err != nil {
		logger.Error("failed to read server env", "err", err)
		return nil, err
	}

	assets, err := LoadAssets(configDirPath)
	if err != nil {
		logger.Fatal("failed to load assets", "error", err)
	}

	config := Config{
		mode:       mode,
		custodyEnv: custodyEnv,
		chainEnv:   chainEnv,
		serverEnv:  serverEnv,
		network:    network,
		assets:     assets,
		dbConf:     dbConf,
	}

	return &config, nil
}

// ChainAPIKeys splits the configured comma-separated API key pool.
func (c *Config) ChainAPIKeys() []string {
	if c.chainEnv.APIKeys == "" {
		return nil
	}
	var keys []string
	for _, key := range strings.Split(c.chainEnv.APIKeys, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// ParentCredentials returns the parent organization's API credentials.
func (c *Config) ParentCredentials() custody.Credentials {
	return custody.Credentials{
		PublicKeyHex:  c.custodyEnv.ParentPublicKey,
		PrivateKeyHex: c.custodyEnv.ParentPrivateKey,
	}
}

// DelegatedCredentials returns the delegated operator's API credentials.
func (c *Config) DelegatedCredentials() custody.Credentials {
	return custody.Credentials{
		PublicKeyHex:  c.custodyEnv.DelegatedPublicKey,
		PrivateKeyHex: c.custodyEnv.DelegatedPrivateKey,
	}
}

// ProvisionConfig returns the static provisioning inputs.
func (c *Config) ProvisionConfig() ProvisionConfig {
	return ProvisionConfig{
		DelegatedPublicKey:  c.custodyEnv.DelegatedPublicKey,
		DelegatedUserName:   c.custodyEnv.DelegatedUserName,
		DelegatedAPIKeyName: c.custodyEnv.DelegatedAPIKeyName,
		PolicyName:          c.custodyEnv.PolicyName,
		WalletName:          c.custodyEnv.WalletName,
	}
}
