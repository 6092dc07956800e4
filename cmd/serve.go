package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/photo-dedup/internal/config"
	"github.com/kozaktomas/photo-dedup/internal/database"
	"github.com/kozaktomas/photo-dedup/internal/database/postgres"
	"github.com/kozaktomas/photo-dedup/internal/detector"
	"github.com/kozaktomas/photo-dedup/internal/pipeline"
	"github.com/kozaktomas/photo-dedup/internal/web"
	"github.com/kozaktomas/photo-dedup/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Dedup API server.
Clients create duplicate-check scans, follow their progress over
Server-Sent Events, page through further batches and delete groups.
Deletions are recorded in PostgreSQL when DATABASE_URL is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// newPipelineFactory builds scan pipelines that record deletions when a deletion log is registered.
func newPipelineFactory(cfg *config.Config) handlers.PipelineFactory {
	return func(ctx context.Context, opts pipeline.Options) (*pipeline.Pipeline, error) {
		if writer, err := database.GetDeletionWriter(ctx); err == nil {
			opts.Recorder = writer
		}
		return pipeline.New(ctx, cfg, opts)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer postgres.Shutdown()
		fmt.Printf("Deletion log enabled (PostgreSQL)\n")
	} else {
		fmt.Printf("DATABASE_URL not set, deletions will not be recorded\n")
	}

	if cfg.Detector.URL != "" {
		healthCtx, healthCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := detector.NewClient(cfg.Detector.URL).Health(healthCtx); err != nil {
			fmt.Printf("Warning: detector at %s is not healthy, photos are skipped while it is unreachable: %v\n", cfg.Detector.URL, err)
		} else {
			fmt.Printf("Person and pose detection enabled (%s)\n", cfg.Detector.URL)
		}
		healthCancel()
	}

	if cfg.Web.APIToken == "" {
		fmt.Printf("Warning: WEB_API_TOKEN not set, the API accepts unauthenticated requests\n")
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, newPipelineFactory(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Dedup API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
