package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the freshness audit
// ⭐ SSOT: 所有环境变量只在这里读取
type Config struct {
	Env string // development, staging, production

	Mongo  MongoConfig
	Audit  AuditConfig
	WeChat WeChatConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	AuthDB   string
	Database string

	// Connection establishment bounds; exceeding either aborts the run
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// URI builds the MongoDB connection string
func (m MongoConfig) URI() string {
	return fmt.Sprintf(
		"mongodb://%s:%s@%s:%s/?authSource=%s&retryWrites=true&w=majority",
		url.QueryEscape(m.User), url.QueryEscape(m.Password),
		m.Host, m.Port, m.AuthDB,
	)
}

// AuditConfig holds the validation run parameters
type AuditConfig struct {
	// Ordered lists; report ordering follows these, not discovery order
	Collections []string
	ChainIDs    []string

	// Chain that must show same-day data at all times (empty = disabled)
	StrictChainID string

	ChainNames      map[string]string // chain id -> 连锁名称
	CollectionNames map[string]string // collection -> 表名称

	Timezone  string // reporting timezone, e.g. Asia/Shanghai
	OutputDir string

	// Whether a latest record created today also counts as fresh under the
	// general (overnight landing) policy
	FreshTodayOK bool
}

// WeChatConfig holds the 企业微信 robot webhook configuration
type WeChatConfig struct {
	Webhook             string
	MentionedList       []string
	MentionedMobileList []string

	// Minimum delay between consecutive deliveries (限流)
	MinInterval time.Duration
}

// Enabled reports whether webhook notifications are configured
func (w WeChatConfig) Enabled() bool {
	return w.Webhook != ""
}

// Load reads configuration from environment variables
// ⭐ SSOT: 只有这个函数调用 os.Getenv()
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration, loading the given env file first when set.
// An empty path falls back to the default .env lookup.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		loadEnvFile()
	}

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Mongo: MongoConfig{
			Host:                   getEnv("MONGO_HOST", "localhost"),
			Port:                   getEnv("MONGO_PORT", "2210"),
			User:                   getEnv("MONGO_USER", ""),
			Password:               getEnv("MONGO_PASSWORD", ""),
			AuthDB:                 getEnv("MONGO_AUTH_DB", "admin"),
			Database:               getEnv("MONGO_DATABASE", ""),
			ConnectTimeout:         getEnvAsDuration("MONGO_CONNECT_TIMEOUT", "30s"),
			ServerSelectionTimeout: getEnvAsDuration("MONGO_SERVER_SELECTION_TIMEOUT", "10s"),
		},

		Audit: AuditConfig{
			Collections:     getEnvAsList("AUDIT_COLLECTIONS"),
			ChainIDs:        getEnvAsList("AUDIT_CHAIN_IDS"),
			StrictChainID:   getEnv("AUDIT_STRICT_CHAIN_ID", ""),
			ChainNames:      getEnvAsMap("AUDIT_CHAIN_NAMES"),
			CollectionNames: getEnvAsMap("AUDIT_COLLECTION_NAMES"),
			Timezone:        getEnv("AUDIT_TIMEZONE", "Asia/Shanghai"),
			OutputDir:       getEnv("AUDIT_OUTPUT_DIR", "."),
			FreshTodayOK:    getEnvAsBool("AUDIT_FRESH_TODAY_OK", false),
		},

		WeChat: WeChatConfig{
			Webhook:             getEnv("WECHAT_WEBHOOK", ""),
			MentionedList:       getEnvAsList("WECHAT_MENTIONED_LIST"),
			MentionedMobileList: getEnvAsList("WECHAT_MENTIONED_MOBILE_LIST"),
			MinInterval:         getEnvAsDuration("WECHAT_MIN_INTERVAL", "1s"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Mongo.Host == "" {
		return fmt.Errorf("MONGO_HOST is required")
	}
	if c.Mongo.User == "" || c.Mongo.Password == "" {
		return fmt.Errorf("MONGO_USER and MONGO_PASSWORD are required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("MONGO_DATABASE is required")
	}
	if _, err := strconv.Atoi(c.Mongo.Port); err != nil {
		return fmt.Errorf("MONGO_PORT must be an integer, got %q", c.Mongo.Port)
	}

	if len(c.Audit.Collections) == 0 {
		return fmt.Errorf("AUDIT_COLLECTIONS is required")
	}
	if len(c.Audit.ChainIDs) == 0 {
		return fmt.Errorf("AUDIT_CHAIN_IDS is required")
	}
	if _, err := time.LoadLocation(c.Audit.Timezone); err != nil {
		return fmt.Errorf("invalid AUDIT_TIMEZONE %q: %w", c.Audit.Timezone, err)
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	return nil
}

// Location returns the reporting timezone. validate() already guarantees the
// name loads; the CST fallback only covers hand-built configs in tests.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Audit.Timezone)
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList parses a comma separated list, dropping empty items
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvAsMap parses "key1:值1,key2:值2" mappings, splitting each entry on
// the first colon only so values may themselves contain colons
func getEnvAsMap(key string) map[string]string {
	valueStr := os.Getenv(key)
	m := make(map[string]string)

	for _, entry := range strings.Split(valueStr, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" || !strings.Contains(entry, ":") {
			continue
		}

		parts := strings.SplitN(entry, ":", 2)
		k := strings.TrimSpace(parts[0])
		v := strings.TrimSpace(parts[1])
		if k != "" && v != "" {
			m[k] = v
		}
	}

	return m
}
