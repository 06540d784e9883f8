package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/litetable/litetable-query/internal/litetable"
)

const (
	configFileName = "litetable.conf"
)

// Config is the node configuration read from litetable.conf. Every key is optional.
type Config struct {
	ServerAddress string
	ServerPort    int
	EnableTLS     bool
	// GRPCPort serves the local shards to remote coordinators. Zero disables the gRPC server.
	GRPCPort    int
	MetricsPort int
	CDCPort     int

	ShardCount   int
	QueryTimeout time.Duration
	// ShardPeers are host:port addresses of remote nodes whose shards join every query.
	ShardPeers []string

	OrderedColumns []string
	AutoPromote    bool
	PersistAfter   int
	// DerivedTTL is the number of seconds a persisted derived index lives.
	DerivedTTL int

	GarbageCollectionTimer int
	SnapshotTimer          int
	MaxSnapshotLimit       int
	Debug                  bool
}

// Default returns the configuration of a node without a config file.
func Default() *Config {
	return &Config{
		ServerAddress:          "127.0.0.1",
		ServerPort:             9443,
		MetricsPort:            9090,
		CDCPort:                32496,
		ShardCount:             2,
		QueryTimeout:           5 * time.Second,
		AutoPromote:            true,
		PersistAfter:           3,
		DerivedTTL:             600,
		GarbageCollectionTimer: 30,
		SnapshotTimer:          300,
		MaxSnapshotLimit:       3,
	}
}

// Path returns the location of the config file in the LiteTable directory.
func Path() (string, error) {
	liteTableDir, err := litetable.GetLitetableDir()
	if err != nil {
		return "", fmt.Errorf("failed to get LiteTable directory: %w", err)
	}
	return filepath.Join(liteTableDir, configFileName), nil
}

// NewConfig reads the config file in the LiteTable directory. A missing file yields the defaults.
func NewConfig() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Load reads a key=value config file over the defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := Default()
	scanner := bufio.NewScanner(file)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		parts := strings.SplitN(text, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err = config.set(key, value); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return config, nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "server_address":
		c.ServerAddress = value
	case "server_port":
		c.ServerPort, err = atoi(key, value)
	case "enable_tls":
		c.EnableTLS = value == "true"
	case "grpc_port":
		c.GRPCPort, err = atoi(key, value)
	case "metrics_port":
		c.MetricsPort, err = atoi(key, value)
	case "cdc_port":
		c.CDCPort, err = atoi(key, value)
	case "shard_count":
		c.ShardCount, err = atoi(key, value)
	case "query_timeout_ms":
		var ms int
		ms, err = atoi(key, value)
		c.QueryTimeout = time.Duration(ms) * time.Millisecond
	case "shard_peers":
		c.ShardPeers = list(value)
	case "ordered_columns":
		c.OrderedColumns = list(value)
	case "auto_promote":
		c.AutoPromote = value == "true"
	case "persist_after":
		c.PersistAfter, err = atoi(key, value)
	case "derived_ttl_seconds":
		c.DerivedTTL, err = atoi(key, value)
	case "gc_interval_seconds", "garbage_collection_timer":
		c.GarbageCollectionTimer, err = atoi(key, value)
	case "snapshot_timer":
		c.SnapshotTimer, err = atoi(key, value)
	case "max_snapshot_limit":
		c.MaxSnapshotLimit, err = atoi(key, value)
	case "debug":
		c.Debug = value == "true"
	}
	return err
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", strings.ReplaceAll(key, "_", " "), err)
	}
	return n, nil
}

// list splits a comma separated value, dropping empty items.
func list(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
