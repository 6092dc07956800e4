// Package pipeline assembles a duplicate-check session from configuration:
// gallery source, decoder, detectors, clusterer, deleter and deletion log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
	"github.com/kozaktomas/photo-dedup/internal/config"
	"github.com/kozaktomas/photo-dedup/internal/constants"
	"github.com/kozaktomas/photo-dedup/internal/detector"
	"github.com/kozaktomas/photo-dedup/internal/gallery"
	"github.com/kozaktomas/photo-dedup/internal/photoprism"
)

// SourceKind selects the gallery a session reads from.
type SourceKind string

// Supported gallery sources.
const (
	SourceLocal      SourceKind = "local"
	SourcePhotoPrism SourceKind = "photoprism"
)

// Options select what a Pipeline scans and how it deletes.
type Options struct {
	Source SourceKind
	// Dir is the local gallery root. Defaults to GALLERY_DIR.
	Dir string
	// Query narrows a PhotoPrism library, e.g. "year:2024".
	Query     string
	BatchSize int
	Keep      analysis.KeepPolicy
	// DryRun reports deletions without performing them. Nothing is recorded.
	DryRun bool
	// Recorder is optional.
	Recorder analysis.DeletionRecorder
	// Logf receives dry-run and trash messages. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Pipeline is one ready-to-run duplicate-check session with its collaborators.
type Pipeline struct {
	Source  SourceKind
	Session *analysis.Session
	Keeper  analysis.Keeper
	Quality *analysis.SharpestKeeper

	closeFn func(ctx context.Context) error
}

// New builds a Pipeline. Close must be called when the session is no longer used.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = cfg.Analysis.BatchSize
	}

	var (
		source  analysis.ChunkSource
		decoder analysis.Decoder
		deleter analysis.Deleter
		closeFn = func(context.Context) error { return nil }
	)

	switch opts.Source {
	case SourceLocal, "":
		local, err := newLocal(cfg, opts)
		if err != nil {
			return nil, err
		}
		source, decoder, deleter = local.source, local.decoder, local.trash
		opts.Source = SourceLocal
	case SourcePhotoPrism:
		pp, err := newPhotoPrism(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		source, decoder, deleter = pp, pp, pp
		if opts.DryRun {
			deleter = dryRunDeleter{logf: opts.Logf}
		}
		closeFn = pp.Close
	default:
		return nil, fmt.Errorf("unknown source %q (expected local or photoprism)", opts.Source)
	}

	quality := &analysis.SharpestKeeper{
		Decoder:       decoder,
		Concurrency:   constants.KeeperConcurrency,
		BlurThreshold: cfg.Analysis.BlurThreshold,
	}
	keeper, err := analysis.NewKeeper(opts.Keep, decoder, constants.KeeperConcurrency, cfg.Analysis.BlurThreshold)
	if err != nil {
		closeFn(ctx)
		return nil, err
	}

	var persons analysis.PersonDetector = detector.None{}
	var poses analysis.PoseDetector = detector.None{}
	if cfg.Detector.URL != "" {
		client := detector.NewClient(cfg.Detector.URL)
		persons, poses = client, client
	}

	analyzer := analysis.NewBatchAnalyzer(source, decoder, analysis.NewFeatureExtractor(persons, poses, analysis.ColorHistogram{}))
	analyzer.ProgressInterval = cfg.Analysis.ProgressInterval

	recorder := opts.Recorder
	if opts.DryRun {
		recorder = nil
	}

	session := analysis.NewSession(analyzer, newClusterer(cfg.Analysis), deleter, analysis.SessionOptions{
		BatchSize: opts.BatchSize,
		Recorder:  recorder,
	})

	return &Pipeline{
		Source:  opts.Source,
		Session: session,
		Keeper:  keeper,
		Quality: quality,
		closeFn: closeFn,
	}, nil
}

// Close releases remote sessions held by the pipeline.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn(ctx)
}

// DeleteGroup removes every member of the group at index except the one chosen by
// the pipeline's keep policy. It returns the kept uri and the deleted uris, which
// are also set when only some of them could be deleted.
func (p *Pipeline) DeleteGroup(ctx context.Context, index int) (string, []string, error) {
	group, err := p.Session.Group(index)
	if err != nil {
		return "", nil, err
	}
	keep, err := p.Keeper.ChooseKeep(ctx, group)
	if err != nil {
		return "", nil, fmt.Errorf("choose photo to keep: %w", err)
	}
	deleted, err := p.Session.DeleteGroup(ctx, keep, group)
	return keep, deleted, err
}

func newClusterer(cfg config.AnalysisConfig) *analysis.Clusterer {
	c := analysis.NewClusterer()
	if cfg.SimilarityThreshold > 0 {
		c.Threshold = float32(cfg.SimilarityThreshold)
	}
	if cfg.TimeWindowMillis > 0 {
		c.TimeWindowMillis = cfg.TimeWindowMillis
	}
	if cfg.PoseDistanceScale > 0 {
		c.Scorer = analysis.Scorer{PoseDistanceScale: cfg.PoseDistanceScale}
	}
	return c
}

type localGallery struct {
	source  *gallery.Source
	decoder *gallery.Decoder
	trash   *gallery.Trash
}

func newLocal(cfg *config.Config, opts Options) (*localGallery, error) {
	dir := opts.Dir
	if dir == "" {
		dir = cfg.Gallery.Dir
	}
	if dir == "" {
		return nil, errors.New("gallery directory is required (--dir or GALLERY_DIR)")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve gallery directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("gallery directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("gallery path %s is not a directory", dir)
	}

	trashDir := cfg.TrashDirFor(dir)
	decoder := gallery.NewDecoder()
	if cfg.Analysis.DecodeSize > 0 {
		decoder.Size = cfg.Analysis.DecodeSize
	}
	trash := gallery.NewTrash(dir, trashDir)
	trash.DryRun = opts.DryRun
	trash.Logf = opts.Logf

	return &localGallery{
		source:  gallery.NewSource(dir, trashDir),
		decoder: decoder,
		trash:   trash,
	}, nil
}

type photoPrismGallery struct {
	*photoprism.Source
	pp *photoprism.PhotoPrism
}

func newPhotoPrism(ctx context.Context, cfg *config.Config, opts Options) (*photoPrismGallery, error) {
	if cfg.PhotoPrism.URL == "" {
		return nil, errors.New("PHOTOPRISM_URL is required for the photoprism source")
	}
	pp, err := photoprism.NewPhotoPrism(ctx, cfg.PhotoPrism.URL, cfg.PhotoPrism.Username, cfg.PhotoPrism.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PhotoPrism: %w", err)
	}

	src := photoprism.NewSource(pp, opts.Query)
	if cfg.PhotoPrism.ThumbSize != "" {
		src.ThumbSize = cfg.PhotoPrism.ThumbSize
	}
	if cfg.Analysis.DecodeSize > 0 {
		src.DecodeSize = cfg.Analysis.DecodeSize
	}
	return &photoPrismGallery{Source: src, pp: pp}, nil
}

func (g *photoPrismGallery) Close(ctx context.Context) error {
	return g.pp.Logout(ctx)
}

// dryRunDeleter logs deletion requests instead of issuing them.
type dryRunDeleter struct {
	logf func(format string, args ...any)
}

func (d dryRunDeleter) Delete(_ context.Context, uris []string) error {
	for _, uri := range uris {
		d.logf("[dry-run] would delete %s", uri)
	}
	return nil
}
