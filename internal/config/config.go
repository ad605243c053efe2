package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultChainID is Polygon Amoy.
const DefaultChainID = "0x13882"

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	// PublicURL is the web app origin printed into QR labels.
	PublicURL string `mapstructure:"PUBLIC_URL"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	ChainRPCURL        string        `mapstructure:"CHAIN_RPC_URL"`
	ChainID            string        `mapstructure:"CHAIN_ID"`
	ContractAddress    string        `mapstructure:"CONTRACT_ADDRESS"`
	WalletPrivateKey   string        `mapstructure:"WALLET_PRIVATE_KEY"`
	MintConfirmTimeout time.Duration `mapstructure:"MINT_CONFIRM_TIMEOUT"`
	MintLockTTL        time.Duration `mapstructure:"MINT_LOCK_TTL"`

	AIBackend  string        `mapstructure:"AI_BACKEND"`
	AIEndpoint string        `mapstructure:"AI_ENDPOINT"`
	AIAPIKey   string        `mapstructure:"AI_API_KEY"`
	AIModel    string        `mapstructure:"AI_MODEL"`
	AITimeout  time.Duration `mapstructure:"AI_TIMEOUT"`
	AICacheTTL time.Duration `mapstructure:"AI_CACHE_TTL"`

	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL", "CORS_ORIGINS", "PUBLIC_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CHAIN_RPC_URL", "CHAIN_ID", "CONTRACT_ADDRESS", "WALLET_PRIVATE_KEY",
	"MINT_CONFIRM_TIMEOUT", "MINT_LOCK_TTL",
	"AI_BACKEND", "AI_ENDPOINT", "AI_API_KEY", "AI_MODEL", "AI_TIMEOUT", "AI_CACHE_TTL",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("PUBLIC_URL", "http://localhost:5173")
	v.SetDefault("CHAIN_RPC_URL", "https://rpc-amoy.polygon.technology/")
	v.SetDefault("CHAIN_ID", DefaultChainID)
	v.SetDefault("MINT_CONFIRM_TIMEOUT", "2m")
	v.SetDefault("MINT_LOCK_TTL", "3m")
	v.SetDefault("AI_BACKEND", "completion")
	v.SetDefault("AI_ENDPOINT", "https://api.openai.com/v1")
	v.SetDefault("AI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_TIMEOUT", "20s")
	v.SetDefault("AI_CACHE_TTL", "24h")
	v.SetDefault("S3_REGION", "ap-south-1")
	v.SetDefault("SMTP_PORT", 587)

	// Bind explicitly so Unmarshal sees variables not present in .env
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("running in development mode: every request is authenticated as a dev admin")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ChainIDValue parses CHAIN_ID as hex (0x-prefixed) or decimal.
func (c *Config) ChainIDValue() (*big.Int, error) {
	raw := strings.TrimSpace(c.ChainID)
	if raw == "" {
		raw = DefaultChainID
	}
	id, ok := new(big.Int).SetString(raw, 0)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("CHAIN_ID %q is not a valid chain id", c.ChainID)
	}
	return id, nil
}

// MintingEnabled reports whether a server-side wallet is configured.
func (c *Config) MintingEnabled() bool {
	return c.WalletPrivateKey != "" && c.ContractAddress != ""
}

// Validate refuses configurations that are unsafe or cannot work.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set outside development (ENV=%q)", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL is required in production when no signing key is set")
	}

	if _, err := c.ChainIDValue(); err != nil {
		return err
	}
	if c.WalletPrivateKey != "" {
		if _, err := crypto.HexToECDSA(strings.TrimPrefix(c.WalletPrivateKey, "0x")); err != nil {
			return fmt.Errorf("WALLET_PRIVATE_KEY is malformed: %w", err)
		}
	}
	if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS %q is not a hex address", c.ContractAddress)
	}

	if u, err := url.Parse(c.PublicURL); c.PublicURL != "" && (err != nil || u.Scheme == "" || u.Host == "") {
		return fmt.Errorf("PUBLIC_URL %q must be an absolute URL", c.PublicURL)
	}

	switch c.AIBackend {
	case "completion", "webhook", "none":
	default:
		return fmt.Errorf("AI_BACKEND must be \"completion\", \"webhook\" or \"none\", got %q", c.AIBackend)
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}
