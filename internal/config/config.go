package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings like "15s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AgentConfig selects exactly one agent backend.
type AgentConfig struct {
	Backend string `yaml:"backend"` // direct, genai, remote, command
	Model   string `yaml:"model"`

	RemoteURL   string   `yaml:"remote_url"`
	HealthURL   string   `yaml:"health_url"`
	Command     []string `yaml:"command"`
	Timeout     Duration `yaml:"timeout"`
	MaxToolRuns int      `yaml:"max_tool_rounds"`
}

const (
	BackendDirect  = "direct"
	BackendGenAI   = "genai"
	BackendRemote  = "remote"
	BackendCommand = "command"
)

type ScraperConfig struct {
	UserAgent        string   `yaml:"user_agent"`
	Timeout          Duration `yaml:"timeout"`
	RatePerSecond    float64  `yaml:"rate_per_second"`
	Burst            int      `yaml:"burst"`
	MaxOfferings     int      `yaml:"max_offerings"`
	ContentScanLimit int      `yaml:"content_scan_limit"`
	MinTextLength    int      `yaml:"min_text_length"`
	DedupKey         string   `yaml:"dedup_key"` // identifier, identifier_departure
	CacheSize        int      `yaml:"cache_size"`
	CacheTTL         Duration `yaml:"cache_ttl"`

	TrainURL    string `yaml:"train_url"`
	BusURL      string `yaml:"bus_url"`
	ActivityURL string `yaml:"activity_url"`
}

const (
	DedupIdentifier          = "identifier"
	DedupIdentifierDeparture = "identifier_departure"
)

type CheckoutConfig struct {
	Headless          bool     `yaml:"headless"`
	ExecPath          string   `yaml:"exec_path"`
	RemoteURL         string   `yaml:"remote_url"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	SettleDelay       Duration `yaml:"settle_delay"`
	ClickDelay        Duration `yaml:"click_delay"`
	BookDelay         Duration `yaml:"book_delay"`
}

type BookingConfig struct {
	AllowedClasses []string `yaml:"allowed_classes"`
}

type StoreConfig struct {
	Backend          string   `yaml:"backend"` // memory, badger
	Path             string   `yaml:"path"`
	TTL              Duration `yaml:"ttl"`
	MaxConversations int      `yaml:"max_conversations"`
}

type MaintenanceConfig struct {
	Interval       Duration `yaml:"interval"`
	GCDiscardRatio float64  `yaml:"gc_discard_ratio"`
}

type APIConfig struct {
	FlightsURL    string `yaml:"flights_url"`
	PerplexityURL string `yaml:"perplexity_url"`
	DuckDuckGoURL string `yaml:"duckduckgo_url"`
}

type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Server      ServerConfig      `yaml:"server"`
	Agent       AgentConfig       `yaml:"agent"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	Checkout    CheckoutConfig    `yaml:"checkout"`
	Booking     BookingConfig     `yaml:"booking"`
	Store       StoreConfig       `yaml:"store"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	APIs        APIConfig         `yaml:"apis"`
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Agent: AgentConfig{
			Backend:     BackendDirect,
			Model:       "gemini-2.0-flash",
			Timeout:     Duration(60 * time.Second),
			MaxToolRuns: 6,
		},
		Scraper: ScraperConfig{
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			Timeout:          Duration(15 * time.Second),
			RatePerSecond:    1,
			Burst:            2,
			MaxOfferings:     20,
			ContentScanLimit: 300,
			MinTextLength:    20,
			DedupKey:         DedupIdentifier,
			CacheSize:        128,
			CacheTTL:         Duration(5 * time.Minute),
			TrainURL:         "https://railways.easemytrip.com/TrainListInfo/{origin}-to-{destination}/2/{date}",
			BusURL:           "https://bus.easemytrip.com/home/list?org={origin}&des={destination}&date={date}",
			ActivityURL:      "https://www.easemytrip.com/activities/activity-in-{destination}/?date={date}",
		},
		Checkout: CheckoutConfig{
			Headless:          true,
			NavigationTimeout: Duration(30 * time.Second),
			IdleTimeout:       Duration(10 * time.Second),
			SettleDelay:       Duration(2 * time.Second),
			ClickDelay:        Duration(1500 * time.Millisecond),
			BookDelay:         Duration(3 * time.Second),
		},
		Booking: BookingConfig{
			AllowedClasses: []string{"SL", "3A", "2A", "1A"},
		},
		Store: StoreConfig{
			Backend:          "memory",
			Path:             "data/conversations",
			TTL:              Duration(24 * time.Hour),
			MaxConversations: 1000,
		},
		Maintenance: MaintenanceConfig{
			Interval:       Duration(10 * time.Minute),
			GCDiscardRatio: 0.5,
		},
		APIs: APIConfig{
			FlightsURL:    "https://parimaladini-flights-mock-api.hf.space",
			PerplexityURL: "https://api.perplexity.ai/chat/completions",
			DuckDuckGoURL: "https://api.duckduckgo.com/",
		},
	}
}

// Load reads the YAML file at path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d is not a valid port", c.Server.Port)
	}

	switch c.Agent.Backend {
	case BackendDirect, BackendGenAI:
	case BackendRemote:
		if c.Agent.RemoteURL == "" {
			return fmt.Errorf("agent: remote_url is required for the remote backend")
		}
	case BackendCommand:
		if len(c.Agent.Command) == 0 {
			return fmt.Errorf("agent: command is required for the command backend")
		}
	default:
		return fmt.Errorf("agent.backend: unknown backend %q", c.Agent.Backend)
	}

	if c.Scraper.MaxOfferings <= 0 || c.Scraper.MaxOfferings > 20 {
		return fmt.Errorf("scraper.max_offerings: must be between 1 and 20")
	}
	if c.Scraper.Timeout.Std() <= 0 {
		return fmt.Errorf("scraper.timeout: must be positive")
	}
	if c.Scraper.RatePerSecond <= 0 || c.Scraper.Burst <= 0 {
		return fmt.Errorf("scraper: rate_per_second and burst must be positive")
	}
	if c.Scraper.ContentScanLimit <= 0 {
		return fmt.Errorf("scraper.content_scan_limit: must be positive")
	}
	if c.Scraper.CacheTTL.Std() <= 0 {
		return fmt.Errorf("scraper.cache_ttl: must be positive")
	}
	switch c.Scraper.DedupKey {
	case DedupIdentifier, DedupIdentifierDeparture:
	default:
		return fmt.Errorf("scraper.dedup_key: unknown key %q", c.Scraper.DedupKey)
	}
	for name, tmpl := range map[string]string{
		"train_url":    c.Scraper.TrainURL,
		"bus_url":      c.Scraper.BusURL,
		"activity_url": c.Scraper.ActivityURL,
	} {
		if !strings.Contains(tmpl, "{destination}") {
			return fmt.Errorf("scraper.%s: template must contain {destination}", name)
		}
	}

	for name, d := range map[string]Duration{
		"navigation_timeout": c.Checkout.NavigationTimeout,
		"idle_timeout":       c.Checkout.IdleTimeout,
		"settle_delay":       c.Checkout.SettleDelay,
		"book_delay":         c.Checkout.BookDelay,
	} {
		if d.Std() <= 0 {
			return fmt.Errorf("checkout.%s: must be positive", name)
		}
	}
	if c.Checkout.ClickDelay.Std() < 0 {
		return fmt.Errorf("checkout.click_delay: must not be negative")
	}

	if len(c.Booking.AllowedClasses) == 0 {
		return fmt.Errorf("booking.allowed_classes: at least one class is required")
	}

	switch c.Store.Backend {
	case "memory":
		if c.Store.MaxConversations <= 0 {
			return fmt.Errorf("store.max_conversations: must be positive")
		}
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path: required for the badger store")
		}
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.Store.TTL.Std() <= 0 {
		return fmt.Errorf("store.ttl: must be positive")
	}

	if c.Maintenance.Interval.Std() <= 0 {
		return fmt.Errorf("maintenance.interval: must be positive")
	}

	return nil
}
