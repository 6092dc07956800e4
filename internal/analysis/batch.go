package analysis

import (
	"context"
	"fmt"
	"log"
	"runtime"
)

// DefaultProgressInterval is how many processed items separate two progress events.
const DefaultProgressInterval = 20

// EventType identifies a ScanEvent.
type EventType string

// ScanEvent types. Complete and Error are terminal.
const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ScanEvent is emitted by BatchAnalyzer.Analyze.
type ScanEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`

	// Progress
	Processed int `json:"processed,omitempty"`

	// Complete
	Descriptors []ImageDescriptor `json:"-"`
	Fetched     int               `json:"fetched,omitempty"`
	IsLastBatch bool              `json:"is_last_batch,omitempty"`

	// Error
	Err error `json:"-"`
}

// BatchAnalyzer pulls one chunk of gallery metadata, decodes every image and
// extracts its descriptor. It holds no state between calls.
type BatchAnalyzer struct {
	source    ChunkSource
	decoder   Decoder
	extractor *FeatureExtractor

	// ProgressInterval defaults to DefaultProgressInterval when <= 0.
	ProgressInterval int
	// Logf receives per-image failures. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// NewBatchAnalyzer wires the gallery collaborators with an extractor.
func NewBatchAnalyzer(source ChunkSource, decoder Decoder, extractor *FeatureExtractor) *BatchAnalyzer {
	return &BatchAnalyzer{
		source:           source,
		decoder:          decoder,
		extractor:        extractor,
		ProgressInterval: DefaultProgressInterval,
		Logf:             log.Printf,
	}
}

// Analyze processes up to limit images starting at offset in a background goroutine.
// The returned channel carries progress events followed by exactly one Complete or
// Error event, then closes. If ctx is cancelled the channel closes without a
// terminal event.
func (a *BatchAnalyzer) Analyze(ctx context.Context, offset, limit int) <-chan ScanEvent {
	events := make(chan ScanEvent)
	go func() {
		defer close(events)
		a.run(ctx, offset, limit, events)
	}()
	return events
}

func (a *BatchAnalyzer) run(ctx context.Context, offset, limit int, events chan<- ScanEvent) {
	emit := func(ev ScanEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if limit <= 0 || offset < 0 {
		err := fmt.Errorf("invalid batch window offset=%d limit=%d", offset, limit)
		emit(ScanEvent{Type: EventError, Message: err.Error(), Err: err})
		return
	}

	items, err := a.source.GetChunk(ctx, limit, offset)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		err = fmt.Errorf("fetch images at offset %d: %w", offset, err)
		emit(ScanEvent{Type: EventError, Message: err.Error(), Err: err})
		return
	}

	if len(items) == 0 {
		emit(ScanEvent{Type: EventComplete, Descriptors: []ImageDescriptor{}, IsLastBatch: true})
		return
	}

	interval := a.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	descriptors := make([]ImageDescriptor, 0, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			return
		}

		if desc, ok := a.analyzeItem(ctx, item); ok {
			descriptors = append(descriptors, desc)
		}

		runtime.Gosched()

		if (i+1)%interval == 0 {
			if !emit(ScanEvent{
				Type:      EventProgress,
				Message:   fmt.Sprintf("Analyzing photos: %d done", i+1),
				Processed: i + 1,
			}) {
				return
			}
		}
	}

	if ctx.Err() != nil {
		return
	}

	emit(ScanEvent{
		Type:        EventComplete,
		Descriptors: descriptors,
		Fetched:     len(items),
		IsLastBatch: len(items) < limit,
	})
}

// analyzeItem decodes and describes one image. Failures are logged and skipped.
func (a *BatchAnalyzer) analyzeItem(ctx context.Context, item ImageChunkItem) (ImageDescriptor, bool) {
	img, err := a.decoder.Decode(ctx, item.URI)
	if err != nil {
		a.logf("skipping %s: decode: %v", item.URI, err)
		return ImageDescriptor{}, false
	}

	desc, err := a.extractor.Extract(ctx, item, img)
	if err != nil {
		if ctx.Err() == nil {
			a.logf("skipping %s: %v", item.URI, err)
		}
		return ImageDescriptor{}, false
	}
	return desc, true
}

func (a *BatchAnalyzer) logf(format string, args ...any) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}
