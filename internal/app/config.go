package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (MINIMART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (MINIMART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`

	// PaymentResultURL is the storefront page gateway redirects land on.
	PaymentResultURL string `default:"http://localhost:3000/payment/result" usage:"Storefront payment result page" flag:"payment-result-url"`

	SSLCommerz SSLCommerzConfig
	VNPay      VNPayConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Graceful   GracefulConfig
}

// SSLCommerzConfig holds the hosted-form gateway merchant settings.
type SSLCommerzConfig struct {
	StoreID     string `usage:"SSLCommerz store id"`
	StorePass   string `usage:"SSLCommerz store password"`
	CheckoutURL string `default:"https://sandbox.sslcommerz.com/gwprocess/v4/api.php" usage:"SSLCommerz checkout endpoint"`
	SuccessURL  string `usage:"Redirect URL after successful payment"`
	FailURL     string `usage:"Redirect URL after failed payment"`
	CancelURL   string `usage:"Redirect URL after cancelled payment"`
	IPNURL      string `usage:"Server-to-server notification URL"`
	Currency    string `default:"BDT" usage:"Checkout currency"`
}

// VNPayConfig holds the signed-redirect gateway merchant settings.
type VNPayConfig struct {
	TmnCode    string        `usage:"VNPay terminal code"`
	HashSecret string        `usage:"VNPay HMAC-SHA512 secret"`
	PayURL     string        `default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html" usage:"VNPay checkout endpoint"`
	ReturnURL  string        `usage:"Browser return URL"`
	SessionTTL time.Duration `default:"15m" usage:"Checkout session lifetime" flag:"vnpay-session-ttl"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MINIMART",
		Files:     []string{"config.yaml", "/etc/minimart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set MINIMART_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT onto the MINIMART_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
