package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/litetable/litetable-query/internal/app"
	"github.com/litetable/litetable-query/internal/cdc_emitter"
	"github.com/litetable/litetable-query/internal/config"
	"github.com/litetable/litetable-query/internal/coordinator"
	"github.com/litetable/litetable-query/internal/engine"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/metrics"
	"github.com/litetable/litetable-query/internal/operations"
	"github.com/litetable/litetable-query/internal/reaper"
	"github.com/litetable/litetable-query/internal/server"
	"github.com/litetable/litetable-query/internal/server/grpc"
	"github.com/litetable/litetable-query/internal/shard"
	"github.com/litetable/litetable-query/internal/wal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	defaultServerCert = "server.crt"
	defaultServerKey  = "server.key"
	stopTimeout       = 10 * time.Second
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:           "litetable-query",
		Short:         "Query engine over sparse wide-column data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), queryCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("litetable-query failed")
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a query node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if cfg.Debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			application, err := initialize(cfg)
			if err != nil {
				return err
			}
			return application.Run(cmd.Context())
		},
	}
	cmd.Flags().String("config", "", "config file (default: litetable.conf in the LiteTable directory)")
	cmd.Flags().Int("port", 0, "query server port, overrides the config file")
	cmd.Flags().Int("grpc-port", 0, "shard service port, overrides the config file")
	cmd.Flags().Int("shards", 0, "number of local shards, overrides the config file")
	cmd.Flags().StringSlice("peer", nil, "remote shard service address, may be repeated")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	return cmd
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.NewConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.ServerPort, _ = flags.GetInt("port")
	}
	if flags.Changed("grpc-port") {
		cfg.GRPCPort, _ = flags.GetInt("grpc-port")
	}
	if flags.Changed("shards") {
		cfg.ShardCount, _ = flags.GetInt("shards")
	}
	if flags.Changed("peer") {
		peers, _ := flags.GetStringSlice("peer")
		cfg.ShardPeers = append(cfg.ShardPeers, peers...)
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	return cfg, nil
}

func initialize(cfg *config.Config) (*app.App, error) {
	var deps []app.Dependency

	liteTableDir, err := litetable.GetLitetableDir()
	if err != nil {
		return nil, err
	}

	metricsServer, err := metrics.New(&metrics.Config{
		Port: strconv.Itoa(cfg.MetricsPort),
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, metricsServer)

	// the shard manager restores the snapshots and persists the local shards
	shardManager, err := shard.New(&shard.Config{
		RootDir:          liteTableDir,
		SnapshotTimer:    cfg.SnapshotTimer,
		MaxSnapshotLimit: cfg.MaxSnapshotLimit,
		ShardCount:       cfg.ShardCount,
		OrderedColumns:   cfg.OrderedColumns,
		AutoPromote:      cfg.AutoPromote,
		PersistAfter:     cfg.PersistAfter,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, shardManager)

	localShards := make([]coordinator.ShardClient, 0, len(shardManager.Shards()))
	for _, s := range shardManager.Shards() {
		localShards = append(localShards, s)
	}

	// remote nodes only ever see this node's own shards
	if cfg.GRPCPort > 0 {
		local, err := coordinator.New(&coordinator.Config{Shards: localShards})
		if err != nil {
			return nil, err
		}
		grpcServer, err := grpc.NewServer(&grpc.Config{
			Address: cfg.ServerAddress,
			Port:    cfg.GRPCPort,
			Shard:   local,
		})
		if err != nil {
			return nil, err
		}
		deps = append(deps, grpcServer)
	}

	shards := localShards
	for _, peer := range cfg.ShardPeers {
		client, err := grpc.NewClient(&grpc.ClientConfig{Target: peer})
		if err != nil {
			return nil, err
		}
		deps = append(deps, client)
		shards = append(shards, client)
	}

	queryCoordinator, err := coordinator.New(&coordinator.Config{
		Shards:       shards,
		QueryTimeout: cfg.QueryTimeout,
	})
	if err != nil {
		return nil, err
	}

	// the reaper drops derived indexes nobody asked for within the TTL
	reaperGC, err := reaper.New(&reaper.Config{
		Storage:    shardManager,
		GCInterval: cfg.GarbageCollectionTimer,
		DerivedTTL: cfg.DerivedTTL,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, reaperGC)

	walManager, err := wal.New(&wal.Config{
		Path: liteTableDir,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, walManager)

	cdcEmitter, err := cdc_emitter.New(&cdc_emitter.Config{
		Port:    cfg.CDCPort,
		Address: cfg.ServerAddress,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, cdcEmitter)

	// Operations turns a command into a query, a write or a delete and records every mutation
	// in the WAL before it is applied.
	opsManager, err := operations.New(&operations.Config{
		WAL:         walManager,
		Coordinator: queryCoordinator,
		CDC:         cdcEmitter,
	})
	if err != nil {
		return nil, err
	}

	engineHandler, err := engine.New(&engine.Config{
		OperationManager: opsManager,
		WAL:              walManager,
		Storage:          shardManager,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, engineHandler)

	var cert *tls.Certificate
	if cfg.EnableTLS {
		pair, err := tls.LoadX509KeyPair(
			filepath.Join(liteTableDir, defaultServerCert),
			filepath.Join(liteTableDir, defaultServerKey),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		cert = &pair
	}

	srv, err := server.New(&server.Config{
		Address:     cfg.ServerAddress,
		Port:        cfg.ServerPort,
		Handler:     engineHandler,
		EnableTLS:   cfg.EnableTLS,
		Certificate: cert,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, srv)

	return app.CreateApp(&app.Config{
		ServiceName: "LiteTable Query",
		StopTimeout: stopTimeout,
	}, deps...)
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <COMMAND> [arguments]",
		Short: "Send one command to a query node and print the response",
		Example: `  litetable-query query COUNT 'Gender = Female AND 1/1/2020 <= GenderWhen <= 1/1/2021'
  litetable-query query WRITE alice Gender=Female GenderWhen=2020-04-01
  litetable-query query RANGE GenderWhen BY TIME WHERE 'Gender = Female'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, _ := cmd.Flags().GetString("address")
			useTLS, _ := cmd.Flags().GetBool("tls")
			insecure, _ := cmd.Flags().GetBool("insecure")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := send(ctx, address, useTLS, insecure, strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp)
			return err
		},
	}
	cmd.Flags().String("address", "127.0.0.1:9443", "query server address")
	cmd.Flags().Bool("tls", false, "connect with TLS")
	cmd.Flags().Bool("insecure", false, "skip server certificate verification")
	cmd.Flags().Duration("timeout", 10*time.Second, "time allowed for the whole exchange")
	return cmd
}

// send writes one command and reads the response until the server closes the connection.
func send(ctx context.Context, address string, useTLS, insecure bool, command string) (string, error) {
	var (
		conn net.Conn
		err  error
	)
	dialer := &net.Dialer{}
	if useTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{InsecureSkipVerify: insecure, MinVersion: tls.VersionTLS12}, //nolint:gosec
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err = conn.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(resp), nil
}
