package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	RedisHost string
	RedisPort string
	Port      string

	// Resolver endpoints, comma separated "Name=value" pairs. DoH entries
	// are URLs, UDP entries are host:port addresses.
	DoHResolvers string
	UDPResolvers string

	CronSchedule string
	DomainsFile  string

	GeoDBPath        string
	GeoFallbackURL   string
	ReputationAPIURL string
	ReputationAPIKey string
	PTRResolver      string

	WebhookURL string

	// Resource-budget knobs. They trim the work done per cycle without
	// touching the detection algorithm itself.
	MaxConcurrentChecks int
	MaxDomainsPerCycle  int
	EnableIPAnalysis    bool
	EnableWhois         bool
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		Port:                getEnv("PORT", "5000"),
		DoHResolvers:        getEnv("DOH_RESOLVERS", "Cloudflare=https://cloudflare-dns.com/dns-query,Google=https://dns.google/resolve"),
		UDPResolvers:        getEnv("UDP_RESOLVERS", ""),
		CronSchedule:        getEnv("CRON_SCHEDULE", "@every 15m"),
		DomainsFile:         os.Getenv("DOMAINS_FILE"),
		GeoDBPath:           getEnv("GEO_DB_PATH", "data/GeoLite2-City.mmdb"),
		GeoFallbackURL:      getEnv("GEO_FALLBACK_URL", "http://ip-api.com/json"),
		ReputationAPIURL:    getEnv("REPUTATION_API_URL", "https://api.abuseipdb.com/api/v2/check"),
		ReputationAPIKey:    os.Getenv("REPUTATION_API_KEY"),
		PTRResolver:         getEnv("PTR_RESOLVER", "8.8.8.8:53"),
		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		MaxConcurrentChecks: getEnvInt("MAX_CONCURRENT_CHECKS", 10),
		MaxDomainsPerCycle:  getEnvInt("MAX_DOMAINS_PER_CYCLE", 0),
		EnableIPAnalysis:    getEnvBool("ENABLE_IP_ANALYSIS", true),
		EnableWhois:         getEnvBool("ENABLE_WHOIS", false),
	}

	if cfg.DoHResolvers == "" && cfg.UDPResolvers == "" {
		return nil, fmt.Errorf("at least one resolver must be configured")
	}
	if cfg.MaxConcurrentChecks < 1 {
		cfg.MaxConcurrentChecks = 1
	}

	return cfg, nil
}

// ParseResolverList splits "Name=value,Name=value" into ordered name/value
// pairs. Order matters: consensus tie-breaks follow it.
func ParseResolverList(s string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" || value == "" {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
