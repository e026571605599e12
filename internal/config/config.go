package config // package config loads application configuration from environment variables

import (
	"fmt"     // fmt formats the missing-variable error
	"net"     // net parses trusted proxy ranges
	"net/url" // url checks APP_URL
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings joins the list of missing keys
	"time"    // time expresses token lifetimes

	"github.com/joho/godotenv" // godotenv loads a local .env file into the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and identifiers are strings, lifetimes
// are kept in minutes because that is how they are reported to clients.
type Config struct {
	Env            string   // application environment (e.g. "dev", "prod")
	Port           string   // HTTP port to listen on
	DBUser         string   // database username
	DBPass         string   // database password (optional)
	DBHost         string   // database host address
	DBPort         string   // database port number
	DBName         string   // database name
	JWTSecret      string   // secret used to sign JWTs
	JWTIssuer      string   // iss claim written into and required from tokens
	AccessTTLMin   int      // access token time-to-live in minutes
	BcryptCost     int      // bcrypt cost for password hashing
	LogLevel       string   // debug | info | warn | error
	LogFormat      string   // json | text; empty picks by environment
	AMQPURL        string   // RabbitMQ URL for domain events
	EventsQueue    string   // queue receiving domain events
	EventsOn       bool     // publish domain events at all
	AppURL         string   // public base URL used in pagination links; empty uses the request
	TrustedProxies []string // CIDRs whose X-Forwarded-For is believed; empty trusts none
}

// AccessTTL returns the access token lifetime as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Load reads configuration values from the environment and returns a Config.
// A .env file in the working directory is applied first when present.  All
// missing required variables are reported together in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load() // absent .env is fine; real env vars take precedence

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:            getenv("APP_ENV", "dev"),
		Port:           getenv("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         getenv("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		JWTIssuer:      getenv("JWT_ISSUER", "book-ratings-api"),
		AccessTTLMin:   envInt("JWT_TTL_MIN", 60),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      os.Getenv("LOG_FORMAT"),
		AMQPURL:        amqpURL(),
		EventsQueue:    getenv("EVENTS_QUEUE", "books.events"),
		EventsOn:       envBool("EVENTS_ENABLED", true),
		AppURL:         strings.TrimRight(os.Getenv("APP_URL"), "/"),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that parsed but make no sense at runtime.
func (c Config) Validate() error {
	if c.AccessTTLMin < 1 {
		return fmt.Errorf("JWT_TTL_MIN must be positive, got %d", c.AccessTTLMin)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if _, err := strconv.Atoi(c.DBPort); err != nil {
		return fmt.Errorf("invalid DB_PORT %q", c.DBPort)
	}
	if c.AppURL != "" {
		if u, err := url.Parse(c.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("APP_URL must be an absolute URL, got %q", c.AppURL)
		}
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyNets parses TrustedProxies.  A bare IP is taken as a single
// host network.
func (c Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, s := range c.TrustedProxies {
		if !strings.Contains(s, "/") {
			if ip := net.ParseIP(s); ip != nil {
				bits := 8 * len(ip.To16())
				if ip.To4() != nil {
					ip, bits = ip.To4(), 32
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", s)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
