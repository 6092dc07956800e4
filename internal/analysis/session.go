package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
)

// DefaultBatchSize is the number of photos analyzed per ScanNext call.
const DefaultBatchSize = 300

// Session errors.
var (
	ErrScanInProgress   = errors.New("a scan is already in progress")
	ErrNoMoreImages     = errors.New("all images have been analyzed")
	ErrUnknownGroup     = errors.New("duplicate group not found")
	ErrKeepNotInGroup   = errors.New("keep uri is not a member of the group")
	ErrNothingToDelete  = errors.New("group has nothing to delete")
	errBatchInterrupted = errors.New("batch ended without a result")
)

// ScanState is a snapshot of a duplicate-check session.
type ScanState struct {
	Offset      int              `json:"offset"`
	Analyzed    int              `json:"analyzed"`
	IsLastBatch bool             `json:"is_last_batch"`
	Loading     bool             `json:"loading"`
	Message     string           `json:"message,omitempty"`
	Groups      []DuplicateGroup `json:"groups"`
}

// SessionOptions configures a Session.
type SessionOptions struct {
	BatchSize int
	// Recorder is optional; recording failures are logged, not returned.
	Recorder DeletionRecorder
}

// Session owns the accumulated descriptors of one duplicate check. Every completed
// batch re-clusters the whole accumulator.
type Session struct {
	analyzer  *BatchAnalyzer
	clusterer *Clusterer
	deleter   Deleter
	recorder  DeletionRecorder
	batchSize int

	mu          sync.Mutex
	idle        *sync.Cond // signalled when the last in-flight deletion ends
	deleting    int
	offset      int
	accumulated []ImageDescriptor
	isLastBatch bool
	loading     bool
	message     string
	groups      []DuplicateGroup
}

// NewSession creates a session starting at offset 0.
func NewSession(analyzer *BatchAnalyzer, clusterer *Clusterer, deleter Deleter, opts SessionOptions) *Session {
	if clusterer == nil {
		clusterer = NewClusterer()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Session{
		analyzer:  analyzer,
		clusterer: clusterer,
		deleter:   deleter,
		recorder:  opts.Recorder,
		batchSize: batchSize,
		groups:    []DuplicateGroup{},
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// State returns a snapshot of the session.
func (s *Session) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() ScanState {
	groups := make([]DuplicateGroup, len(s.groups))
	for i, g := range s.groups {
		groups[i] = slices.Clone(g)
	}
	return ScanState{
		Offset:      s.offset,
		Analyzed:    len(s.accumulated),
		IsLastBatch: s.isLastBatch,
		Loading:     s.loading,
		Message:     s.message,
		Groups:      groups,
	}
}

// ScanNext analyzes the next batch and re-clusters everything accumulated so far.
// Every event is forwarded to sink (may be nil). A failed or cancelled batch leaves
// the previous groups and offset untouched. A scan starts only after in-flight
// deletions have finished.
func (s *Session) ScanNext(ctx context.Context, sink func(ScanEvent)) (ScanState, error) {
	s.mu.Lock()
	for !s.loading && s.deleting > 0 {
		s.idle.Wait()
	}
	if s.loading {
		s.mu.Unlock()
		return ScanState{}, ErrScanInProgress
	}
	if s.isLastBatch {
		state := s.stateLocked()
		s.mu.Unlock()
		return state, ErrNoMoreImages
	}
	s.loading = true
	s.message = "Analyzing..."
	offset := s.offset
	s.mu.Unlock()

	err := s.consume(ctx, offset, sink)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	return s.stateLocked(), err
}

func (s *Session) consume(ctx context.Context, offset int, sink func(ScanEvent)) error {
	for ev := range s.analyzer.Analyze(ctx, offset, s.batchSize) {
		if sink != nil {
			sink(ev)
		}

		switch ev.Type {
		case EventProgress:
			s.mu.Lock()
			s.message = ev.Message
			s.mu.Unlock()
		case EventComplete:
			s.complete(ev)
			return nil
		case EventError:
			s.mu.Lock()
			s.message = ev.Message
			s.mu.Unlock()
			return fmt.Errorf("scan batch at offset %d: %w", offset, ev.Err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errBatchInterrupted
}

func (s *Session) complete(ev ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accumulated = append(s.accumulated, ev.Descriptors...)
	s.offset += ev.Fetched
	s.isLastBatch = ev.IsLastBatch
	s.message = fmt.Sprintf("%d photos analyzed", len(s.accumulated))
	if len(s.accumulated) > 0 {
		s.groups = s.clusterer.FindGroups(s.accumulated)
	}
}

// Group returns a copy of the group at index.
func (s *Session) Group(index int) (DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.groups) {
		return nil, ErrUnknownGroup
	}
	return slices.Clone(s.groups[index]), nil
}

// DeleteGroup asks the deleter to remove every member of group except keep.
// Deleted photos are dropped from the accumulator and the groups are rebuilt, so
// later batches never regroup them. When the deleter reports a partial failure the
// photos it did remove are still forgotten and returned along with the error.
// Deletion is refused with ErrScanInProgress while a batch is being analyzed.
func (s *Session) DeleteGroup(ctx context.Context, keep string, group DuplicateGroup) ([]string, error) {
	if !group.Contains(keep) {
		return nil, ErrKeepNotInGroup
	}
	toDelete := group.Without(keep)
	if len(toDelete) == 0 {
		return nil, ErrNothingToDelete
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.deleting++
	s.mu.Unlock()
	defer s.deletionDone()

	removed := toDelete
	err := s.deleter.Delete(ctx, toDelete)
	if err != nil {
		removed = nil
		var partial *PartialDeleteError
		if errors.As(err, &partial) {
			removed = partial.Deleted
		}
		err = fmt.Errorf("delete %d photos: %w", len(toDelete), err)
	}
	if len(removed) == 0 {
		return nil, err
	}

	if s.recorder != nil {
		if recErr := s.recorder.RecordDeletion(ctx, keep, removed); recErr != nil {
			log.Printf("Warning: failed to record deletion of %d photos: %v", len(removed), recErr)
		}
	}

	s.forget(removed)
	return removed, err
}

func (s *Session) deletionDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleting--
	if s.deleting == 0 {
		s.idle.Broadcast()
	}
}

// forget drops deleted photos from the accumulator and rebuilds the groups from what remains.
func (s *Session) forget(deleted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accumulated = slices.DeleteFunc(s.accumulated, func(d ImageDescriptor) bool {
		return slices.Contains(deleted, d.URI)
	})
	s.groups = []DuplicateGroup{}
	if len(s.accumulated) > 0 {
		s.groups = s.clusterer.FindGroups(s.accumulated)
	}
}
