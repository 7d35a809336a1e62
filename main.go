// MinerPulse — telemetry ingestion endpoint for Bitaxe-class mining devices.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/minerpulse/minerpulse/internal/agent"
	"github.com/minerpulse/minerpulse/internal/config"
	"github.com/minerpulse/minerpulse/internal/logging"
	"github.com/minerpulse/minerpulse/internal/server"
)

const asciiLogo = `
 ███╗   ███╗██╗███╗   ██╗███████╗██████╗ ██████╗ ██╗   ██╗██╗     ███████╗███████╗
 ████╗ ████║██║████╗  ██║██╔════╝██╔══██╗██╔══██╗██║   ██║██║     ██╔════╝██╔════╝
 ██╔████╔██║██║██╔██╗ ██║█████╗  ██████╔╝██████╔╝██║   ██║██║     ███████╗█████╗
 ██║╚██╔╝██║██║██║╚██╗██║██╔══╝  ██╔══██╗██╔═══╝ ██║   ██║██║     ╚════██║██╔══╝
 ██║ ╚═╝ ██║██║██║  ╚████║███████╗██║  ██║██║     ╚██████╔╝███████╗███████║███████╗
 ╚═╝     ╚═╝╚═╝╚═╝   ╚═══╝╚══════╝╚═╝  ╚═╝╚═╝      ╚═════╝ ╚══════╝╚══════╝╚══════╝
`

const version = "v0.1.0"

func printBanner(mode string) {
	fmt.Print(asciiLogo)
	fmt.Printf("  ► MinerPulse %s  |  Mode: %s\n\n", version, mode)
}

func main() {
	root := &cobra.Command{
		Use:   "minerpulse",
		Short: "MinerPulse — telemetry ingestion for cryptocurrency mining devices",
		Long: `MinerPulse is a single-binary telemetry endpoint for Bitaxe-class miners:
devices (or the bundled agent) POST periodic metric samples over HTTP; the
server persists them and serves latest-sample and time-range query views.`,
		SilenceUsage: true,
	}

	// ── server subcommand ─────────────────────────────────────────────────────
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the MinerPulse ingest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("SERVER")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			db, err := server.OpenDB(cfg)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			log.Info().Str("driver", cfg.DBDriver).Str("path", cfg.DBPath).Msg("database opened")

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(server.RecoveryBoundary(log), server.CORSMiddleware())

			api := server.NewAPI(server.NewStore(db), log)
			api.RegisterRoutes(engine, cfg.IngestToken)

			addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.HTTPPort)
			fmt.Printf("  ✓ Telemetry API → http://%s\n", addr)
			fmt.Printf("  ✓ Ingest token:   %s\n\n", cfg.IngestToken)

			srv := &http.Server{Addr: addr, Handler: engine}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt) // os.Interrupt = SIGINT; works on all platforms

			select {
			case err := <-errCh:
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	// ── agent subcommand ──────────────────────────────────────────────────────
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the MinerPulse reporting agent for one miner device",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("AGENT")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// CLI flags override config values.
			if join, _ := cmd.Flags().GetString("join"); join != "" {
				if !containsPort(join) {
					join = fmt.Sprintf("%s:%d", join, cfg.HTTPPort)
				}
				cfg.AgentJoinAddr = join
			}
			if miner, _ := cmd.Flags().GetString("miner"); miner != "" {
				cfg.AgentMinerURL = miner
			}
			if id, _ := cmd.Flags().GetString("id"); id != "" {
				cfg.AgentMinerID = id
			}
			if token, _ := cmd.Flags().GetString("token"); token != "" {
				cfg.AgentOutboundToken = token
			}

			log := logging.New(cfg.LogLevel, cfg.LogFormat)
			return agent.Run(cfg, log)
		},
	}
	agentCmd.Flags().String("join", "", "Server address, e.g. 192.168.1.1 or 192.168.1.1:8710")
	agentCmd.Flags().String("miner", "", "Miner device base URL, e.g. http://192.168.1.50")
	agentCmd.Flags().String("id", "", "miner_id stamped on reported samples (default: device hostname)")
	agentCmd.Flags().String("token", "", "Pre-shared ingest token (overrides config)")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print MinerPulse version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MinerPulse %s\n", version)
		},
	}

	root.AddCommand(serverCmd, agentCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// containsPort checks whether addr already has a port suffix.
func containsPort(addr string) bool {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return true
		}
		if addr[i] == '/' {
			break
		}
	}
	return false
}
