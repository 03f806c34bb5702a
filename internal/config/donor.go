package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
)

type PrivyConfig struct {
	AppID           string `yaml:"app_id"`
	AppSecret       string `yaml:"app_secret"`
	VerificationKey string `yaml:"verification_key"` // PEM encoded ES256 public key
	APIURL          string `yaml:"api_url"`
	AccessToken     string `yaml:"-"`
}

type MoonPayConfig struct {
	APIKey       string `yaml:"api_key"`
	SecretKey    string `yaml:"secret_key"`
	BaseURL      string `yaml:"base_url"`
	CurrencyCode string `yaml:"currency_code"`
}

type TokenConfig struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
}

// DonorConfig configures the donor-side orchestrator and CLI.
type DonorConfig struct {
	APIURL         string        `yaml:"api_url"`
	APITimeout     time.Duration `yaml:"api_timeout"`
	ChainID        int64         `yaml:"chain_id"`
	PlatformWallet string        `yaml:"platform_wallet"`
	Privy          PrivyConfig   `yaml:"privy"`
	MoonPay        MoonPayConfig `yaml:"moonpay"`
	Token          TokenConfig   `yaml:"token"`
	Log            LogConfig     `yaml:"log"`

	Warnings []string `yaml:"-"`
}

func LoadDonor(path string) (*DonorConfig, error) {
	var cfg DonorConfig
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return &cfg, nil
}

func (c *DonorConfig) applyEnv() {
	e := envReader{warnings: &c.Warnings}
	e.str("API_URL", &c.APIURL)
	e.duration("API_TIMEOUT", &c.APITimeout)
	e.str("PLATFORM_WALLET_ADDRESS", &c.PlatformWallet)
	e.str("PRIVY_APP_ID", &c.Privy.AppID)
	e.str("PRIVY_APP_SECRET", &c.Privy.AppSecret)
	e.str("PRIVY_VERIFICATION_KEY", &c.Privy.VerificationKey)
	e.str("PRIVY_API_URL", &c.Privy.APIURL)
	e.str("PRIVY_ACCESS_TOKEN", &c.Privy.AccessToken)
	e.str("MOONPAY_API_KEY", &c.MoonPay.APIKey)
	e.str("MOONPAY_SECRET_KEY", &c.MoonPay.SecretKey)
	e.str("MOONPAY_BASE_URL", &c.MoonPay.BaseURL)
	e.str("TOKEN_ADDRESS", &c.Token.Address)
	e.str("TOKEN_SYMBOL", &c.Token.Symbol)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	var decimals, chainID int
	e.integer("TOKEN_DECIMALS", &decimals)
	if decimals != 0 {
		c.Token.Decimals = int32(decimals)
	}
	e.integer("CHAIN_ID", &chainID)
	if chainID != 0 {
		c.ChainID = int64(chainID)
	}
}

func (c *DonorConfig) SetDefaults() {
	d := defaulter{warnings: &c.Warnings}
	d.str("api_url", &c.APIURL, "http://localhost:8080/api")
	d.duration("api_timeout", &c.APITimeout, 15*time.Second)
	d.str("privy.api_url", &c.Privy.APIURL, "https://api.privy.io")
	d.str("moonpay.base_url", &c.MoonPay.BaseURL, "https://buy.moonpay.com")
	d.str("moonpay.currency_code", &c.MoonPay.CurrencyCode, "usdc_base")
	d.str("token.symbol", &c.Token.Symbol, "SBC")
	d.str("log.level", &c.Log.Level, "info")
	d.str("log.format", &c.Log.Format, "text")
	if c.Token.Decimals == 0 {
		c.Token.Decimals = chain.TokenDecimals
		d.warn("token.decimals", c.Token.Decimals)
	}
	if c.ChainID == 0 {
		c.ChainID = chain.BaseChainID
		d.warn("chain_id", strconv.FormatInt(c.ChainID, 10))
	}
}

func (c *DonorConfig) Validate() error {
	if c.Privy.AppID == "" || c.Privy.AppSecret == "" {
		return errors.New("PRIVY_APP_ID and PRIVY_APP_SECRET must be set")
	}
	if !chain.IsAddress(c.Token.Address) {
		return fmt.Errorf("token.address %q is not a valid address", c.Token.Address)
	}
	if c.Token.Decimals != chain.TokenDecimals {
		return fmt.Errorf("token.decimals must be %d, got %d", chain.TokenDecimals, c.Token.Decimals)
	}
	if c.PlatformWallet != "" && !chain.IsAddress(c.PlatformWallet) {
		return fmt.Errorf("platform_wallet %q is not a valid address", c.PlatformWallet)
	}
	return nil
}
