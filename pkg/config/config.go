package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"trx_discount_back/internal/wallet"
)

// Purchase holds the fixed constants the purchase flow depends on.
type Purchase struct {
	ReceivingAddress string
	PayingContract   string
	TokenContract    string
	BuySelector      string
	PaymentScheme    string
	DiscountFactor   decimal.Decimal
	TokenDecimals    int32
	NativeDecimals   int32
	FeeLimit         int64
}

type Wallet struct {
	PollAttempts int
	PollInterval time.Duration
}

type History struct {
	FetchWindow int
	DisplayCap  int
	Schedule    string
}

type Oracle struct {
	URL          string
	FallbackRate float64
	Timeout      time.Duration
	Schedule     string
	MaxAge       time.Duration
}

type Tron struct {
	APIURL     string
	APIKey     string
	PrivateKey string
	Timeout    time.Duration
}

type Server struct {
	Host         string
	Port         string
	AllowOrigins []string
	APIToken     string
}

type Notify struct {
	APIKey    string
	SecretKey string
	FromEmail string
	FromName  string
	ToEmail   string
}

// Config is built once at startup and passed by value; nothing mutates it afterwards.
type Config struct {
	Server   Server
	Purchase Purchase
	Wallet   Wallet
	History  History
	Oracle   Oracle
	Tron     Tron
	Notify   Notify
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8000")
	v.SetDefault("purchase.buy_selector", "buy(uint256)")
	v.SetDefault("purchase.payment_scheme", "tron")
	v.SetDefault("purchase.discount_factor", "0.7")
	v.SetDefault("purchase.token_decimals", 6)
	v.SetDefault("purchase.native_decimals", 6)
	v.SetDefault("purchase.fee_limit", 100_000_000)
	v.SetDefault("wallet.poll_attempts", 10)
	v.SetDefault("wallet.poll_interval", time.Second)
	v.SetDefault("history.fetch_window", 100)
	v.SetDefault("history.display_cap", 5)
	v.SetDefault("history.schedule", "@every 1m")
	v.SetDefault("oracle.url", "https://api.coingecko.com/api/v3/simple/price?ids=tron&vs_currencies=usd")
	v.SetDefault("oracle.fallback_rate", 0.27)
	v.SetDefault("oracle.timeout", 5*time.Second)
	v.SetDefault("oracle.schedule", "@every 10m")
	v.SetDefault("oracle.max_age", 30*time.Minute)
	v.SetDefault("tron.api_url", "https://api.trongrid.io")
	v.SetDefault("tron.timeout", 30*time.Second)
}

// InitConfig reads configs/config.yaml into v.
func InitConfig(v *viper.Viper) error {
	v.AddConfigPath("configs")
	v.SetConfigName("config")
	setDefaults(v)
	return v.ReadInConfig()
}

// Load builds a Config from v and the secrets in the environment.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	discount, err := decimal.NewFromString(v.GetString("purchase.discount_factor"))
	if err != nil {
		return Config{}, errors.Wrap(err, "purchase.discount_factor")
	}

	cfg := Config{
		Server: Server{
			Host:         v.GetString("server.host"),
			Port:         v.GetString("server.port"),
			AllowOrigins: v.GetStringSlice("server.allow_origins"),
			APIToken:     os.Getenv("API_TOKEN"),
		},
		Purchase: Purchase{
			ReceivingAddress: v.GetString("purchase.receiving_address"),
			PayingContract:   v.GetString("purchase.paying_contract"),
			TokenContract:    v.GetString("purchase.token_contract"),
			BuySelector:      v.GetString("purchase.buy_selector"),
			PaymentScheme:    v.GetString("purchase.payment_scheme"),
			DiscountFactor:   discount,
			TokenDecimals:    v.GetInt32("purchase.token_decimals"),
			NativeDecimals:   v.GetInt32("purchase.native_decimals"),
			FeeLimit:         v.GetInt64("purchase.fee_limit"),
		},
		Wallet: Wallet{
			PollAttempts: v.GetInt("wallet.poll_attempts"),
			PollInterval: v.GetDuration("wallet.poll_interval"),
		},
		History: History{
			FetchWindow: v.GetInt("history.fetch_window"),
			DisplayCap:  v.GetInt("history.display_cap"),
			Schedule:    v.GetString("history.schedule"),
		},
		Oracle: Oracle{
			URL:          v.GetString("oracle.url"),
			FallbackRate: v.GetFloat64("oracle.fallback_rate"),
			Timeout:      v.GetDuration("oracle.timeout"),
			Schedule:     v.GetString("oracle.schedule"),
			MaxAge:       v.GetDuration("oracle.max_age"),
		},
		Tron: Tron{
			APIURL:     v.GetString("tron.api_url"),
			APIKey:     os.Getenv("TRONGRID_API_KEY"),
			PrivateKey: os.Getenv("TRON_PRIVATE_KEY"),
			Timeout:    v.GetDuration("tron.timeout"),
		},
		Notify: Notify{
			APIKey:    os.Getenv("MAILJET_API_KEY"),
			SecretKey: os.Getenv("MAILJET_SECRET_KEY"),
			FromEmail: v.GetString("notify.from_email"),
			FromName:  v.GetString("notify.from_name"),
			ToEmail:   v.GetString("notify.to_email"),
		},
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	for name, addr := range map[string]string{
		"purchase.receiving_address": c.Purchase.ReceivingAddress,
		"purchase.paying_contract":   c.Purchase.PayingContract,
		"purchase.token_contract":    c.Purchase.TokenContract,
	} {
		if err := wallet.ValidateAddress(addr); err != nil {
			return errors.Wrap(err, name)
		}
	}
	if !c.Purchase.DiscountFactor.IsPositive() || c.Purchase.DiscountFactor.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("purchase.discount_factor must be in (0, 1], got %s", c.Purchase.DiscountFactor)
	}
	if c.Purchase.PaymentScheme == "" {
		return errors.New("purchase.payment_scheme is empty")
	}
	if c.Wallet.PollAttempts < 1 {
		return errors.Errorf("wallet.poll_attempts must be positive, got %d", c.Wallet.PollAttempts)
	}
	if c.History.DisplayCap < 1 || c.History.FetchWindow < c.History.DisplayCap {
		return errors.Errorf("history window %d / cap %d out of range", c.History.FetchWindow, c.History.DisplayCap)
	}
	if c.Oracle.FallbackRate <= 0 {
		return errors.New("oracle.fallback_rate must be positive")
	}
	return nil
}
