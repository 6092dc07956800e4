package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// defaultTrashDirName is used when a Config was not built by Load.
const defaultTrashDirName = ".photo-dedup-trash"

type Config struct {
	PhotoPrism PhotoPrismConfig
	Detector   DetectorConfig
	Gallery    GalleryConfig
	Database   DatabaseConfig
	Web        WebConfig
	Analysis   AnalysisConfig

	trashDirName string
}

type PhotoPrismConfig struct {
	URL       string
	Username  string
	Password  string
	ThumbSize string // thumbnail decoded instead of the original (default fit_720)
}

type DetectorConfig struct {
	URL string // object + pose detection server; empty disables person detection
}

type GalleryConfig struct {
	Dir      string // local photo directory
	TrashDir string // where deleted photos are moved (default <Dir>/.photo-dedup-trash)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty disables the deletion log
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	APIToken string // bearer token required by the scan API; empty disables auth
}

// AnalysisConfig holds the duplicate detection tuning constants.
type AnalysisConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TimeWindowMillis    int64   `yaml:"time_window_ms"`
	PoseDistanceScale   float64 `yaml:"pose_distance_scale"`
	ProgressInterval    int     `yaml:"progress_interval"`
	BatchSize           int     `yaml:"batch_size"`
	DecodeSize          int     `yaml:"decode_size"`
	BlurThreshold       float64 `yaml:"blur_threshold"`
}

type defaults struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Gallery  struct {
		TrashDirName        string `yaml:"trash_dir_name"`
		PhotoPrismThumbSize string `yaml:"photoprism_thumb_size"`
	} `yaml:"gallery"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	analysis := d.Analysis
	analysis.SimilarityThreshold = envFloat("DEDUP_SIMILARITY_THRESHOLD", analysis.SimilarityThreshold)
	analysis.TimeWindowMillis = int64(envInt("DEDUP_TIME_WINDOW_MS", int(analysis.TimeWindowMillis)))
	analysis.BatchSize = envInt("DEDUP_BATCH_SIZE", analysis.BatchSize)
	analysis.ProgressInterval = envInt("DEDUP_PROGRESS_INTERVAL", analysis.ProgressInterval)

	galleryDir := os.Getenv("GALLERY_DIR")
	trashDir := os.Getenv("TRASH_DIR")
	if trashDir == "" && galleryDir != "" {
		trashDir = filepath.Join(galleryDir, d.Gallery.TrashDirName)
	}

	return &Config{
		PhotoPrism: PhotoPrismConfig{
			URL:       os.Getenv("PHOTOPRISM_URL"),
			Username:  os.Getenv("PHOTOPRISM_USERNAME"),
			Password:  os.Getenv("PHOTOPRISM_PASSWORD"),
			ThumbSize: d.Gallery.PhotoPrismThumbSize,
		},
		Detector: DetectorConfig{
			URL: os.Getenv("DETECTOR_URL"),
		},
		Gallery: GalleryConfig{
			Dir:      galleryDir,
			TrashDir: trashDir,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			APIToken: os.Getenv("WEB_API_TOKEN"),
		},
		Analysis:     analysis,
		trashDirName: d.Gallery.TrashDirName,
	}
}

// TrashDirFor returns the trash directory for a gallery root, honoring TRASH_DIR.
func (c *Config) TrashDirFor(galleryDir string) string {
	if c.Gallery.TrashDir != "" && galleryDir == c.Gallery.Dir {
		return c.Gallery.TrashDir
	}
	name := c.trashDirName
	if name == "" {
		name = defaultTrashDirName
	}
	return filepath.Join(galleryDir, name)
}
