package handlers

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
	"github.com/kozaktomas/photo-dedup/internal/constants"
	"github.com/kozaktomas/photo-dedup/internal/pipeline"
)

// JobStatus represents the status of a scan job.
type JobStatus string

// JobStatus constants define the lifecycle states of a scan job.
// A job is idle between batches and completed once the last batch is in.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusIdle      JobStatus = "idle"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrTooManyScans is returned when every slot holds a running scan.
var ErrTooManyScans = errors.New("too many scans in progress")

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// ScanJob is one duplicate-check session exposed over HTTP. Batches run one at a
// time in the background; the accumulated state lives in the pipeline's session.
type ScanJob struct {
	EventBroadcaster

	ID        string
	Source    pipeline.SourceKind
	StartedAt time.Time

	status    JobStatus
	err       string
	batches   int
	updatedAt time.Time
	pipeline  *pipeline.Pipeline
}

// ScanJobView is the JSON representation of a ScanJob.
type ScanJobView struct {
	ID        string              `json:"id"`
	Source    string              `json:"source"`
	Status    JobStatus           `json:"status"`
	Error     string              `json:"error,omitempty"`
	Batches   int                 `json:"batches"`
	StartedAt time.Time           `json:"started_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	State     *analysis.ScanState `json:"state,omitempty"`
}

// NewScanJob wraps a pipeline in a pending job.
func NewScanJob(id string, p *pipeline.Pipeline) *ScanJob {
	now := time.Now()
	return &ScanJob{
		ID:        id,
		Source:    p.Source,
		StartedAt: now,
		status:    JobStatusPending,
		updatedAt: now,
		pipeline:  p,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// View returns a snapshot of the job. The session state is included when withState is set.
func (j *ScanJob) View(withState bool) ScanJobView {
	j.mu.RLock()
	v := ScanJobView{
		ID:        j.ID,
		Source:    string(j.Source),
		Status:    j.status,
		Error:     j.err,
		Batches:   j.batches,
		StartedAt: j.StartedAt,
		UpdatedAt: j.updatedAt,
	}
	j.mu.RUnlock()

	if withState {
		state := j.pipeline.Session.State()
		v.State = &state
	}
	return v
}

// begin marks the job running and returns the context of the new batch.
// It returns false when a batch is already running.
func (j *ScanJob) begin() (context.Context, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == JobStatusRunning {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.status = JobStatusRunning
	j.err = ""
	j.batches++
	j.updatedAt = time.Now()
	return ctx, true
}

// finish records the outcome of a batch unless it was cancelled meanwhile.
func (j *ScanJob) finish(status JobStatus, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	if j.status == JobStatusCancelled {
		return
	}
	j.status = status
	j.err = errMsg
	j.updatedAt = time.Now()
}

// Cancel stops the running batch and sends a cancelled event. It reports whether
// a batch was running. The session keeps every previously completed batch.
func (j *ScanJob) Cancel() bool {
	j.mu.Lock()
	if j.status != JobStatusRunning {
		j.mu.Unlock()
		return false
	}
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	j.status = JobStatusCancelled
	j.updatedAt = time.Now()
	j.mu.Unlock()

	j.SendEvent(JobEvent{Type: "cancelled", Message: "Scan cancelled by user"})
	return true
}

// ScanManager keeps scan jobs in memory. When full, the oldest job without a
// running batch is evicted.
type ScanManager struct {
	jobs  map[string]*ScanJob
	limit int
	mu    sync.RWMutex
}

// NewScanManager creates a manager holding at most limit jobs.
func NewScanManager(limit int) *ScanManager {
	if limit <= 0 {
		limit = constants.MaxScanSessions
	}
	return &ScanManager{
		jobs:  make(map[string]*ScanJob),
		limit: limit,
	}
}

// Add registers a job, evicting the oldest idle one if the manager is full.
func (m *ScanManager) Add(job *ScanJob) error {
	m.mu.Lock()
	var evicted *ScanJob
	if len(m.jobs) >= m.limit {
		for _, j := range m.jobs {
			if j.GetStatus() == JobStatusRunning {
				continue
			}
			if evicted == nil || j.StartedAt.Before(evicted.StartedAt) {
				evicted = j
			}
		}
		if evicted == nil {
			m.mu.Unlock()
			return ErrTooManyScans
		}
		delete(m.jobs, evicted.ID)
	}
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if evicted != nil {
		log.Printf("Evicting scan %s to make room for %s", evicted.ID, job.ID)
		closeJob(context.Background(), evicted)
	}
	return nil
}

// Get retrieves a job by ID.
func (m *ScanManager) Get(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Remove deletes a job, cancels its batch and releases its pipeline.
func (m *ScanManager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	job, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()

	if ok {
		closeJob(ctx, job)
	}
	return ok
}

// List returns all jobs, oldest first.
func (m *ScanManager) List() []*ScanJob {
	m.mu.RLock()
	jobs := make([]*ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b *ScanJob) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return jobs
}

// CloseAll cancels every job and releases its pipeline.
func (m *ScanManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = make(map[string]*ScanJob)
	m.mu.Unlock()

	for _, job := range jobs {
		closeJob(ctx, job)
	}
}

func closeJob(ctx context.Context, job *ScanJob) {
	job.Cancel()
	if err := job.pipeline.Close(ctx); err != nil {
		log.Printf("Warning: failed to close scan %s: %v", job.ID, err)
	}
}
