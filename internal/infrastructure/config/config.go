package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	JWT         JWTConfig      `mapstructure:"jwt"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
	Solana      SolanaConfig   `mapstructure:"solana"`
	Payment     PaymentConfig  `mapstructure:"payment"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Pricing     PricingConfig  `mapstructure:"pricing"`
	Workers     WorkerConfig   `mapstructure:"workers"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret    string `mapstructure:"secret"`
	AccessTTL int    `mapstructure:"access_token_ttl"`
	Issuer    string `mapstructure:"issuer"`
}

// LedgerConfig carries the balance engine knobs. Amounts are SOL strings so
// they survive decimal parsing without float rounding.
type LedgerConfig struct {
	MinWithdraw            string `mapstructure:"min_withdraw"`
	MinNetAmount           string `mapstructure:"min_net_amount"`
	ResetEpsilon           string `mapstructure:"reset_epsilon"`
	ReferralBonusRate      string `mapstructure:"referral_bonus_rate"`
	ValidReferralThreshold int    `mapstructure:"valid_referral_threshold"`
	PayoutDelaySeconds     int    `mapstructure:"payout_delay_seconds"`
	WithdrawalsEnabled     bool   `mapstructure:"withdrawals_enabled"`
	ConfirmTolerance       string `mapstructure:"confirm_tolerance"`
	FreePlanDays           int    `mapstructure:"free_plan_days"`
}

type SolanaConfig struct {
	RPCEndpoint      string `mapstructure:"rpc_endpoint"`
	HotWalletKey     string `mapstructure:"hot_wallet_key"`
	Commitment       string `mapstructure:"commitment"`
	SendTimeout      int    `mapstructure:"send_timeout"`
	MinWalletBalance string `mapstructure:"min_wallet_balance"`
}

type PaymentConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
	Timeout       int    `mapstructure:"timeout"`
}

type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
	Enabled     bool   `mapstructure:"enabled"`
}

type PricingConfig struct {
	PrimaryURL   string `mapstructure:"primary_url"`
	FallbackURL  string `mapstructure:"fallback_url"`
	CacheTTL     int    `mapstructure:"cache_ttl"`
	RefreshCron  string `mapstructure:"refresh_cron"`
	HTTPTimeout  int    `mapstructure:"http_timeout"`
}

// WorkerConfig contains background worker configuration
type WorkerConfig struct {
	PayoutPollSeconds int `mapstructure:"payout_poll_seconds"`
	JobTimeout        int `mapstructure:"job_timeout"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "covest_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 25)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.query_timeout", 30)
	viper.SetDefault("database.max_retries", 3)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 86400)
	viper.SetDefault("jwt.issuer", "covest_service")

	// Ledger defaults mirror the production engine constants.
	viper.SetDefault("ledger.min_withdraw", "0.01")
	viper.SetDefault("ledger.min_net_amount", "0.005")
	viper.SetDefault("ledger.reset_epsilon", "0.000001")
	viper.SetDefault("ledger.referral_bonus_rate", "0.10")
	viper.SetDefault("ledger.valid_referral_threshold", 3)
	viper.SetDefault("ledger.payout_delay_seconds", 300)
	viper.SetDefault("ledger.withdrawals_enabled", true)
	viper.SetDefault("ledger.confirm_tolerance", "0.001")
	viper.SetDefault("ledger.free_plan_days", 14)

	// Solana defaults
	viper.SetDefault("solana.rpc_endpoint", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana.commitment", "confirmed")
	viper.SetDefault("solana.send_timeout", 60)
	viper.SetDefault("solana.min_wallet_balance", "0.01")

	// Payment processor defaults
	viper.SetDefault("payment.base_url", "https://api.nowpayments.io/v1")
	viper.SetDefault("payment.timeout", 30)

	// Pricing defaults
	viper.SetDefault("pricing.primary_url", "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd")
	viper.SetDefault("pricing.fallback_url", "https://api.coinbase.com/v2/prices/SOL-USD/spot")
	viper.SetDefault("pricing.cache_ttl", 300)
	viper.SetDefault("pricing.refresh_cron", "*/5 * * * *")
	viper.SetDefault("pricing.http_timeout", 10)

	// Telegram defaults
	viper.SetDefault("telegram.enabled", false)

	// Worker defaults
	viper.SetDefault("workers.payout_poll_seconds", 30)
	viper.SetDefault("workers.job_timeout", 300)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// JWT
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}

	// Solana
	if rpc := os.Getenv("SOLANA_RPC_ENDPOINT"); rpc != "" {
		viper.Set("solana.rpc_endpoint", rpc)
	}
	if key := os.Getenv("SOLANA_HOT_WALLET_KEY"); key != "" {
		viper.Set("solana.hot_wallet_key", key)
	}
	if commitment := os.Getenv("SOLANA_COMMITMENT"); commitment != "" {
		viper.Set("solana.commitment", commitment)
	}

	// Payment processor
	if apiKey := os.Getenv("PAYMENT_API_KEY"); apiKey != "" {
		viper.Set("payment.api_key", apiKey)
	}
	if secret := os.Getenv("PAYMENT_WEBHOOK_SECRET"); secret != "" {
		viper.Set("payment.webhook_secret", secret)
	}
	if baseURL := os.Getenv("PAYMENT_BASE_URL"); baseURL != "" {
		viper.Set("payment.base_url", baseURL)
	}

	// Telegram
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		viper.Set("telegram.bot_token", token)
		viper.Set("telegram.enabled", true)
	}
	if adminID := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); adminID != "" {
		if id, err := strconv.ParseInt(adminID, 10, 64); err == nil {
			viper.Set("telegram.admin_chat_id", id)
		}
	}

	// Ledger toggles
	if enabled := os.Getenv("WITHDRAWALS_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			viper.Set("ledger.withdrawals_enabled", b)
		}
	}
	if delay := os.Getenv("PAYOUT_DELAY_SECONDS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			viper.Set("ledger.payout_delay_seconds", d)
		}
	}
}

func validate(config *Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Environment == "production" && config.Solana.HotWalletKey == "" {
		return fmt.Errorf("solana hot wallet key is required in production")
	}

	if config.Environment == "production" && config.Payment.WebhookSecret == "" {
		return fmt.Errorf("payment webhook secret is required in production")
	}

	return nil
}
