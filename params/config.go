package params

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Node struct {
	LogFile string
	Verbose bool
	// DataDir holds the resting-book snapshot. Empty disables persistence.
	DataDir string
	// MarketsFile is a YAML/JSON/TOML list of markets. Empty serves the
	// built-in BTC-USD, ETH-USD and ETH-BTC markets.
	MarketsFile string
}

type API struct {
	Addr           string
	AllowedOrigins []string
}

type Sampler struct {
	Interval time.Duration // ticker/orderbook emission period
	Depth    int           // levels per side in orderbook events
}

// Kafka is disabled when Brokers is empty.
type Kafka struct {
	Brokers []string
	Topic   string
}

// P2P is disabled when Listen is empty.
type P2P struct {
	Listen    string
	Bootstrap []string
}

type Config struct {
	Node    Node
	API     API
	Sampler Sampler
	Kafka   Kafka
	P2P     P2P
}

func Default() Config {
	return Config{
		Node: Node{
			LogFile: "data/node.log",
			DataDir: "data",
		},
		API: API{
			Addr: ":8080",
		},
		Sampler: Sampler{
			Interval: 200 * time.Millisecond,
			Depth:    50,
		},
		Kafka: Kafka{
			Topic: "matchbook.marketdata",
		},
	}
}

// SnapshotPath is where the Pebble book snapshot lives, "" when disabled.
func (c Config) SnapshotPath() string {
	if c.Node.DataDir == "" {
		return ""
	}
	return filepath.Join(c.Node.DataDir, "books")
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.Verbose = os.Getenv("VERBOSE") == "true"
	if dir, ok := os.LookupEnv("DATA_DIR"); ok {
		cfg.Node.DataDir = dir
	}
	cfg.Node.MarketsFile = getEnv("MARKETS_FILE", cfg.Node.MarketsFile)

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if origins := splitList(os.Getenv("API_ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.API.AllowedOrigins = origins
	}

	if interval := os.Getenv("SAMPLE_INTERVAL_MS"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil && ms > 0 {
			cfg.Sampler.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if depth := os.Getenv("SAMPLE_DEPTH"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil && n > 0 {
			cfg.Sampler.Depth = n
		}
	}

	// Brokers and bootstrap peers from comma-separated lists
	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.P2P.Listen = getEnv("P2P_LISTEN", cfg.P2P.Listen)
	cfg.P2P.Bootstrap = splitList(os.Getenv("P2P_BOOTSTRAP"))

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
