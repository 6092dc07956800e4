package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
	"github.com/kozaktomas/photo-dedup/internal/config"
	"github.com/kozaktomas/photo-dedup/internal/database"
	"github.com/kozaktomas/photo-dedup/internal/database/postgres"
	"github.com/kozaktomas/photo-dedup/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find near-duplicate photos",
	Long: `Scan a gallery for near-duplicate photos.

Photos are analyzed newest first in batches. After every batch all photos
analyzed so far are regrouped, so duplicates spanning two batches are found.
With --delete every group is reduced to one photo chosen by --keep:
local photos are moved to a trash directory, PhotoPrism photos are archived.

Examples:
  # Scan a local directory
  photo-dedup scan --dir ~/Pictures

  # Scan only the two most recent batches of a PhotoPrism library
  photo-dedup scan --source photoprism --batches 2

  # Keep the sharpest shot of each group, show what would be deleted
  photo-dedup scan --dir ~/Pictures --delete --keep sharpest --dry-run

  # Output as JSON
  photo-dedup scan --dir ~/Pictures --json`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("source", string(pipeline.SourceLocal), "Gallery source: local or photoprism")
	scanCmd.Flags().String("dir", "", "Local gallery directory (defaults to GALLERY_DIR)")
	scanCmd.Flags().String("query", "", "PhotoPrism search query, e.g. \"year:2024\"")
	scanCmd.Flags().Int("batch-size", 0, "Photos analyzed per batch (defaults to DEDUP_BATCH_SIZE or 300)")
	scanCmd.Flags().Int("batches", 0, "Stop after this many batches (0 = scan everything)")
	scanCmd.Flags().Float64("threshold", 0, "Similarity threshold override (0-1)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("delete", false, "Delete every photo of a group except the kept one")
	scanCmd.Flags().String("keep", string(analysis.KeepFirst), "Photo to keep: first or sharpest")
	scanCmd.Flags().Bool("dry-run", false, "Show what would be deleted without deleting")
}

// ScanGroupOutput represents one duplicate group in the scan output
type ScanGroupOutput struct {
	Members []string `json:"members"`
	Keep    string   `json:"keep"`
	Deleted []string `json:"deleted,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ScanOutput represents the JSON output structure for scan
type ScanOutput struct {
	Source      string            `json:"source"`
	Analyzed    int               `json:"analyzed"`
	Batches     int               `json:"batches"`
	IsLastBatch bool              `json:"is_last_batch"`
	DryRun      bool              `json:"dry_run,omitempty"`
	Groups      []ScanGroupOutput `json:"groups"`
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if threshold := mustGetFloat64(cmd, "threshold"); threshold != 0 {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("--threshold must be between 0 and 1, got %v", threshold)
		}
		cfg.Analysis.SimilarityThreshold = threshold
	}

	jsonOutput := mustGetBool(cmd, "json")
	deleteDuplicates := mustGetBool(cmd, "delete")
	dryRun := mustGetBool(cmd, "dry-run")
	maxBatches := mustGetInt(cmd, "batches")

	recorder, closeLog, err := openDeletionLog(cfg, deleteDuplicates && !dryRun, jsonOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := pipeline.New(ctx, cfg, pipeline.Options{
		Source:    pipeline.SourceKind(mustGetString(cmd, "source")),
		Dir:       mustGetString(cmd, "dir"),
		Query:     mustGetString(cmd, "query"),
		BatchSize: mustGetInt(cmd, "batch-size"),
		Keep:      analysis.KeepPolicy(mustGetString(cmd, "keep")),
		DryRun:    dryRun,
		Recorder:  recorder,
		Logf: func(format string, args ...any) {
			if !jsonOutput {
				fmt.Printf(format+"\n", args...)
			}
		},
	})
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	batchSize := mustGetInt(cmd, "batch-size")
	if batchSize <= 0 {
		batchSize = cfg.Analysis.BatchSize
	}

	state, batches, err := scanBatches(ctx, p.Session, batchSize, maxBatches, jsonOutput)
	if err != nil {
		return err
	}

	output := ScanOutput{
		Source:      string(p.Source),
		Analyzed:    state.Analyzed,
		Batches:     batches,
		IsLastBatch: state.IsLastBatch,
		DryRun:      deleteDuplicates && dryRun,
		Groups:      make([]ScanGroupOutput, 0, len(state.Groups)),
	}
	for _, group := range state.Groups {
		out := ScanGroupOutput{Members: group}
		keep, err := p.Keeper.ChooseKeep(ctx, group)
		if err != nil {
			out.Error = err.Error()
			output.Groups = append(output.Groups, out)
			continue
		}
		out.Keep = keep

		if deleteDuplicates {
			deleted, err := p.Session.DeleteGroup(ctx, keep, group)
			if err != nil && !errors.Is(err, analysis.ErrNothingToDelete) {
				out.Error = err.Error()
			}
			out.Deleted = deleted
		}
		output.Groups = append(output.Groups, out)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	printScanOutput(output, deleteDuplicates)
	return nil
}

// scanBatches runs batches until the gallery is exhausted or maxBatches is reached.
func scanBatches(ctx context.Context, session *analysis.Session, batchSize, maxBatches int, quiet bool) (analysis.ScanState, int, error) {
	var state analysis.ScanState
	batches := 0
	for maxBatches <= 0 || batches < maxBatches {
		bar := progressbar.NewOptions(batchSize,
			progressbar.OptionSetDescription(fmt.Sprintf("Analyzing batch %d", batches+1)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetVisibility(!quiet),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)

		var err error
		state, err = session.ScanNext(ctx, func(ev analysis.ScanEvent) {
			if ev.Type == analysis.EventProgress {
				bar.Set(ev.Processed)
			}
		})
		bar.Finish()
		if errors.Is(err, analysis.ErrNoMoreImages) {
			break
		}
		if err != nil {
			return state, batches, fmt.Errorf("scan failed after %d batches: %w", batches, err)
		}
		batches++
		if state.IsLastBatch {
			break
		}
	}
	return state, batches, nil
}

func printScanOutput(output ScanOutput, deleteDuplicates bool) {
	fmt.Printf("\nAnalyzed %d photos in %d batches (source: %s)\n", output.Analyzed, output.Batches, output.Source)
	if !output.IsLastBatch {
		fmt.Println("More photos remain; run again with more --batches to continue")
	}
	fmt.Printf("Found %d duplicate groups\n", len(output.Groups))

	deletedTotal := 0
	for i, g := range output.Groups {
		fmt.Printf("\nGroup %d (%d photos):\n", i+1, len(g.Members))
		for _, uri := range g.Members {
			marker := " "
			if uri == g.Keep {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, uri)
		}
		if g.Error != "" {
			fmt.Printf("  Error: %s\n", g.Error)
		}
		deletedTotal += len(g.Deleted)
	}

	if deleteDuplicates {
		verb := "Deleted"
		if output.DryRun {
			verb = "Would delete"
		}
		fmt.Printf("\n%s %d photos (* = kept)\n", verb, deletedTotal)
	}
}

// openDeletionLog connects the PostgreSQL deletion log when deletions are recorded
// and DATABASE_URL is set.
func openDeletionLog(cfg *config.Config, needed, quiet bool) (analysis.DeletionRecorder, func(), error) {
	noop := func() {}
	if !needed || cfg.Database.URL == "" {
		return nil, noop, nil
	}

	if !quiet {
		fmt.Println("Connecting to PostgreSQL deletion log...")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, noop, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	writer, err := database.GetDeletionWriter(context.Background())
	if err != nil {
		postgres.Shutdown()
		return nil, noop, err
	}
	return writer, func() { postgres.Shutdown() }, nil
}
