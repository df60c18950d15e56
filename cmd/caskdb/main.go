package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xRadioAc7iv/go-caskdb/core"
	"github.com/0xRadioAc7iv/go-caskdb/internal/config"
	"github.com/0xRadioAc7iv/go-caskdb/internal/replica"
	"github.com/0xRadioAc7iv/go-caskdb/internal/server"
	"github.com/0xRadioAc7iv/go-caskdb/internal/service"
	"github.com/0xRadioAc7iv/go-caskdb/internal/utils"
)

var rootCmd = &cobra.Command{
	Use:   "caskdb",
	Short: "Run a caskdb key-value store node",
	RunE:  run,
}

func init() {
	rootCmd.Flags().String("config", "caskdb.yaml", "Path to the YAML config file")
	rootCmd.Flags().String("dir", "", "Data directory (overrides config)")
	rootCmd.Flags().Int("port", 0, "Port for the TCP server (overrides config)")
	rootCmd.Flags().Int64("max-file-size", 0, "Active segment rotation threshold in bytes (overrides config)")
	rootCmd.Flags().Bool("sync", false, "Fsync every write (overrides config)")
	rootCmd.Flags().StringArray("replica", nil, "Replica address host:port (repeatable, overrides config)")
}

func run(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("max-file-size") {
		cfg.MaxFileSize, _ = cmd.Flags().GetInt64("max-file-size")
	}
	if cmd.Flags().Changed("sync") {
		cfg.SyncOnWrite, _ = cmd.Flags().GetBool("sync")
	}
	if cmd.Flags().Changed("replica") {
		cfg.Replicas, _ = cmd.Flags().GetStringArray("replica")
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	opts := core.Options{
		DataDir:     cfg.DataDir,
		MaxFileSize: cfg.MaxFileSize,
		SyncOnWrite: cfg.SyncOnWrite,
		CacheSize:   cfg.CacheSize,
		Logger:      log,
	}
	if len(cfg.Replicas) > 0 {
		timeout := time.Duration(cfg.ReplicaTimeoutMS) * time.Millisecond
		opts.Observer = replica.New(cfg.Replicas, timeout, log)
		log.Infow("replication enabled", "replicas", cfg.Replicas)
	}

	store, err := core.Open(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(ctx, log, cfg.Port, svc.HandleConn); err != nil {
			log.Errorw("server stopped abruptly", "error", err)
			os.Exit(1)
		}
	}()

	utils.ListenForProcessInterruptOrKill()
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.JSON {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
