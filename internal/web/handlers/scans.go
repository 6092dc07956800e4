package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
	"github.com/kozaktomas/photo-dedup/internal/config"
	"github.com/kozaktomas/photo-dedup/internal/constants"
	"github.com/kozaktomas/photo-dedup/internal/pipeline"
)

// PipelineFactory builds the pipeline behind a new scan.
type PipelineFactory func(ctx context.Context, opts pipeline.Options) (*pipeline.Pipeline, error)

// ScansHandler handles duplicate-check scan endpoints
type ScansHandler struct {
	config  *config.Config
	scans   *ScanManager
	factory PipelineFactory
}

// NewScansHandler creates a new scans handler
func NewScansHandler(cfg *config.Config, sm *ScanManager, factory PipelineFactory) *ScansHandler {
	return &ScansHandler{
		config:  cfg,
		scans:   sm,
		factory: factory,
	}
}

// CreateScanRequest represents a scan creation request
type CreateScanRequest struct {
	Source    string `json:"source"`
	Dir       string `json:"dir"`
	Query     string `json:"query"`
	BatchSize int    `json:"batch_size"`
	Keep      string `json:"keep"`
	DryRun    bool   `json:"dry_run"`
}

// DeleteGroupRequest names the member of a group to keep. An empty keep applies
// the scan's keep policy.
type DeleteGroupRequest struct {
	Keep string `json:"keep"`
}

// DeleteGroupResponse reports a completed group deletion
type DeleteGroupResponse struct {
	Keep    string             `json:"keep"`
	Deleted []string           `json:"deleted"`
	State   analysis.ScanState `json:"state"`
}

// Create creates a scan session and starts its first batch
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	dir, err := h.resolveDir(req.Dir)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.factory(r.Context(), pipeline.Options{
		Source:    pipeline.SourceKind(req.Source),
		Dir:       dir,
		Query:     req.Query,
		BatchSize: req.BatchSize,
		Keep:      analysis.KeepPolicy(req.Keep),
		DryRun:    req.DryRun,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to create scan: %v", err))
		return
	}

	job := NewScanJob(uuid.New().String(), p)
	if err := h.scans.Add(job); err != nil {
		p.Close(context.Background())
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	ctx, _ := job.begin()
	go h.runBatch(ctx, job)

	log.Printf("Started scan %s (source=%s)", job.ID, job.Source)
	respondJSON(w, http.StatusAccepted, job.View(false))
}

// List returns all scans
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.scans.List()
	views := make([]ScanJobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.View(false))
	}
	respondJSON(w, http.StatusOK, views)
}

// Get returns a scan with its current state
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.View(true))
}

// Next starts the next batch of a scan
func (h *ScansHandler) Next(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}

	if job.pipeline.Session.State().IsLastBatch {
		respondError(w, http.StatusGone, analysis.ErrNoMoreImages.Error())
		return
	}

	ctx, ok := job.begin()
	if !ok {
		respondError(w, http.StatusConflict, analysis.ErrScanInProgress.Error())
		return
	}
	go h.runBatch(ctx, job)

	respondJSON(w, http.StatusAccepted, job.View(false))
}

// Events streams scan events via SSE
func (h *ScansHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.scans.Get(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ScanJob).View(true)
		},
	)
}

// Cancel cancels the running batch of a scan. With ?discard=true the scan is also removed.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}

	if r.URL.Query().Get("discard") == "true" {
		h.scans.Remove(r.Context(), job.ID)
		respondJSON(w, http.StatusOK, map[string]bool{"discarded": true})
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": job.Cancel()})
}

// Group returns one duplicate group with a sharpness assessment of every member
func (h *ScansHandler) Group(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	index, ok := groupIndex(w, r)
	if !ok {
		return
	}

	group, err := job.pipeline.Session.Group(index)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	members, err := job.pipeline.Quality.Assess(r.Context(), group)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"index":   index,
		"members": members,
	})
}

// DeleteGroup deletes every member of a group except the kept one
func (h *ScansHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	index, ok := groupIndex(w, r)
	if !ok {
		return
	}

	var req DeleteGroupRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	// Group indices shift when a batch completes. The session refuses the
	// deletion too if a batch starts after this check.
	if job.GetStatus() == JobStatusRunning {
		respondError(w, http.StatusConflict, analysis.ErrScanInProgress.Error())
		return
	}

	var (
		keep    = req.Keep
		deleted []string
		err     error
	)
	if keep == "" {
		keep, deleted, err = job.pipeline.DeleteGroup(r.Context(), index)
	} else {
		var group analysis.DuplicateGroup
		group, err = job.pipeline.Session.Group(index)
		if err == nil {
			deleted, err = job.pipeline.Session.DeleteGroup(r.Context(), keep, group)
		}
	}

	switch {
	case errors.Is(err, analysis.ErrScanInProgress):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, analysis.ErrUnknownGroup):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, analysis.ErrKeepNotInGroup), errors.Is(err, analysis.ErrNothingToDelete):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("Scan %s: failed to delete group %d (%d photos deleted): %v", job.ID, index, len(deleted), err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	log.Printf("Scan %s: kept %s, deleted %d photos", job.ID, sanitizeForLog(keep), len(deleted))
	respondJSON(w, http.StatusOK, DeleteGroupResponse{
		Keep:    keep,
		Deleted: deleted,
		State:   job.pipeline.Session.State(),
	})
}

// runBatch runs one batch of a scan in the background
func (h *ScansHandler) runBatch(ctx context.Context, job *ScanJob) {
	job.SendEvent(JobEvent{Type: "started", Message: "Analyzing next batch"})

	state, err := job.pipeline.Session.ScanNext(ctx, func(ev analysis.ScanEvent) {
		if ev.Type == analysis.EventProgress {
			job.SendEvent(JobEvent{
				Type:    string(ev.Type),
				Message: ev.Message,
				Data:    map[string]int{"processed": ev.Processed},
			})
		}
	})

	switch {
	case errors.Is(err, context.Canceled):
		job.finish(JobStatusCancelled, "")
	case err != nil:
		log.Printf("Scan %s failed: %v", job.ID, err)
		job.finish(JobStatusFailed, err.Error())
		job.SendEvent(JobEvent{Type: string(analysis.EventError), Message: err.Error()})
	default:
		status := JobStatusIdle
		if state.IsLastBatch {
			status = JobStatusCompleted
		}
		job.finish(status, "")
		job.SendEvent(JobEvent{Type: string(analysis.EventComplete), Message: state.Message, Data: state})
	}
}

// resolveDir keeps requested local directories inside the configured gallery.
func (h *ScansHandler) resolveDir(dir string) (string, error) {
	root := h.config.Gallery.Dir
	if dir == "" || root == "" {
		return dir, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dir must be inside %s", root)
	}
	return filepath.Clean(dir), nil
}

func (h *ScansHandler) lookup(w http.ResponseWriter, r *http.Request) *ScanJob {
	scanID := chi.URLParam(r, "scanId")
	if scanID == "" {
		respondError(w, http.StatusBadRequest, errMissingScanID)
		return nil
	}
	job := h.scans.Get(scanID)
	if job == nil {
		respondError(w, http.StatusNotFound, errScanNotFound)
		return nil
	}
	return job
}

func groupIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		respondError(w, http.StatusBadRequest, "invalid group index")
		return 0, false
	}
	return index, true
}
