// Command loomchat is the CLI entrypoint assembling the core engines:
// the event log, replay, the message tree, the context engine, the
// provider selector, the inference driver, the room manager, and the
// grant ledger. It does not implement the HTTP/WebSocket transport
// framing those engines are consumed through, but it owns process
// lifecycle, config loading/hot-reload, metrics export, and the offline
// log-repair tools (compact, replay-check).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hrygo/loomchat/internal/blobstore"
	"github.com/hrygo/loomchat/internal/config"
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/ledger"
	"github.com/hrygo/loomchat/internal/metrics"
	"github.com/hrygo/loomchat/internal/provider"
	"github.com/hrygo/loomchat/internal/replay"
	"github.com/hrygo/loomchat/internal/room"
	"github.com/hrygo/loomchat/internal/version"
)

var (
	dataDir    string
	configPath string
	modelsPath string
)

var rootCmd = &cobra.Command{
	Use:   "loomchat",
	Short: "Event-sourced, branched-message chat core with streaming inference and live rooms.",
	PersistentPreRunE: func(*cobra.Command, []string) error {
		_ = godotenv.Load() // provider credentials for local runs; ignored if absent
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "data", "data directory (holds conversations/, conversation-state/, blobs/, events.jsonl, users/)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to config.json, relative to --data")
	rootCmd.PersistentFlags().StringVar(&modelsPath, "models", "models.json", "path to models.json, relative to --data")

	rootCmd.AddCommand(serveCmd, compactCmd, replayCheckCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load config, replay every log, and run the room heartbeat and metrics exporter until signalled.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if !version.SupportsCurrentLogLayout() {
			return fmt.Errorf("this build (%s) is older than the minimum supported log layout version %s", version.Version, version.MinSupportedVersion)
		}

		cfg, err := config.Load(dataDir, configPath, modelsPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := cfg.Watch(ctx.Done()); err != nil {
			slog.Warn("config hot-reload watcher unavailable, continuing without it", "error", err)
		}

		log := eventlog.New(dataDir)
		if err := log.Init(eventlog.Main()); err != nil {
			return fmt.Errorf("init main log: %w", err)
		}

		stats := &replay.Stats{}
		trees, err := replay.All(log, stats)
		if err != nil {
			return fmt.Errorf("replay conversations: %w", err)
		}
		l, err := ledger.Replay(log)
		if err != nil {
			return fmt.Errorf("replay ledger: %w", err)
		}
		slog.Info("replay complete", "conversations", len(trees), "unknownKinds", stats.UnknownKinds)

		selector := provider.NewSelector(time.Now().UnixNano())
		for providerType := range cfg.Current().Providers {
			selector.SetProfiles(providerType, cfg.Profiles(providerType))
			if strat := cfg.Strategy(providerType); strat != "" {
				selector.SetStrategy(providerType, strat)
			}
		}

		_ = blobstore.New(dataDir + "/blobs")
		_ = l // ledger is replayed and ready for command handlers wired in by the transport layer

		exporter := metrics.New(metrics.DefaultConfig())
		rooms := room.NewManager()

		httpSrv := &http.Server{Addr: metricsAddr, Handler: exporter.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server stopped", "error", err)
			}
		}()

		go rooms.Heartbeat(ctx, 30*time.Second, 50)

		slog.Info("loomchat serving", "version", version.String(), "data", dataDir, "metricsAddr", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, terminationSignals...)
		<-sigCh

		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact <conversationId>",
	Short: "Rewrite one conversation log, dropping reconstructable events and relocating debug payloads to the blob store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		relocate, _ := cmd.Flags().GetBool("relocate-debug")
		keepBackup, _ := cmd.Flags().GetBool("keep-backup")

		log := eventlog.New(dataDir)
		var blobs eventlog.BlobSaver
		if relocate {
			blobs = blobstore.New(dataDir + "/blobs")
		}

		report, err := log.Compact(cmd.Context(), args[0], eventlog.CompactOptions{
			RelocateDebugToBlobs: relocate,
			Blobs:                blobs,
			KeepBackup:           keepBackup,
		})
		if err != nil {
			return fmt.Errorf("compact: %w", err)
		}

		fmt.Printf("bytes: %d -> %d\nevents: %d -> %d\ndebug payloads stripped: %d\n",
			report.BytesBefore, report.BytesAfter, report.EventsBefore, report.EventsAfter, report.DebugPayloadsStripped)
		for kind, n := range report.RemovedByKind {
			fmt.Printf("  removed %s: %d\n", kind, n)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", ":9090", "address the Prometheus metrics handler listens on")
	compactCmd.Flags().Bool("relocate-debug", false, "save stripped debug payloads to the blob store instead of dropping them")
	compactCmd.Flags().Bool("keep-backup", true, "keep the pre-compaction file as <id>.jsonl.pre-compact.bak")
}

var replayCheckCmd = &cobra.Command{
	Use:   "replay-check",
	Short: "Replay every log twice and fail if the resulting state differs, verifying replay determinism.",
	RunE: func(_ *cobra.Command, _ []string) error {
		log := eventlog.New(dataDir)

		first, err := replay.All(log, &replay.Stats{})
		if err != nil {
			return fmt.Errorf("first replay: %w", err)
		}
		second, err := replay.All(log, &replay.Stats{})
		if err != nil {
			return fmt.Errorf("second replay: %w", err)
		}
		if len(first) != len(second) {
			return fmt.Errorf("replay-check: conversation count differs: %d vs %d", len(first), len(second))
		}
		for id, t1 := range first {
			t2, ok := second[id]
			if !ok {
				return fmt.Errorf("replay-check: conversation %s missing on second replay", id)
			}
			if !sameMessageOrder(t1.Messages(), t2.Messages()) {
				return fmt.Errorf("replay-check: conversation %s is not deterministic across replays", id)
			}
		}
		fmt.Printf("replay-check: %d conversations deterministic\n", len(first))
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("loomchat exited with error", "error", err)
		os.Exit(1)
	}
}
