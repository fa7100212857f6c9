package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmbook/internal/core"
	"farmbook/internal/sheets"
	"farmbook/internal/storage"
)

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// PollInterval is how often to check for pending rows (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of rows to mirror per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of failed attempts before a row is marked as error (default: 3)
	MaxRetries int
}

func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// MirrorProcessor copies pending expense and sale rows to the spreadsheet
// mirror. It backs up the event-driven worker when messages are lost.
type MirrorProcessor struct {
	storage *storage.SQLiteRepository
	mirror  sheets.Mirror
	config  MirrorProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorProcessor(storage *storage.SQLiteRepository, mirror sheets.Mirror, config MirrorProcessorConfig) *MirrorProcessor {
	def := DefaultMirrorProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	return &MirrorProcessor{
		storage: storage,
		mirror:  mirror,
		config:  config,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	p.stopCh, p.doneCh = stopCh, doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Mirror processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop signals the loop and waits for the current batch to finish. It may be
// called again after a timeout to keep waiting.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop clears running before closing doneCh, whether it ended through
// Stop or through ctx.
func (p *MirrorProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.doneCh == doneCh {
			p.running = false
			p.stopCh = nil
		}
		p.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch mirrors one batch of pending rows and returns how many
// succeeded.
func (p *MirrorProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.storage.PendingMirror(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending mirror rows", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing mirror batch", "count", len(items))

	done := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return done
		}
		if err := p.Sync(ctx, item.Kind, item.UserID, item.ID); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		done++
	}
	return done
}

// Sync loads one expense or sale, upserts it into the mirror and marks it
// synced. A row that no longer exists is not an error.
func (p *MirrorProcessor) Sync(ctx context.Context, kind core.RecordKind, userID, id int64) error {
	row, err := p.loadRow(ctx, kind, userID, id)
	if errors.Is(err, core.ErrNotFoundOrUnauthorized) {
		slog.InfoContext(ctx, "Mirror row no longer exists, skipping", "kind", kind, "id", id)
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.mirror.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert %s %d: %w", kind, id, err)
	}

	if err := p.storage.MarkMirrored(ctx, kind, id); err != nil {
		// The row is in the mirror; the next poll upserts it again harmlessly.
		slog.WarnContext(ctx, "Failed to mark row as mirrored", "kind", kind, "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Mirrored ledger row", "kind", kind, "id", id)
	return nil
}

func (p *MirrorProcessor) loadRow(ctx context.Context, kind core.RecordKind, userID, id int64) (sheets.Row, error) {
	switch kind {
	case core.KindExpense:
		e, err := p.storage.GetExpense(ctx, userID, id)
		if err != nil {
			return sheets.Row{}, fmt.Errorf("get expense %d: %w", id, err)
		}
		return sheets.ExpenseRow(e), nil
	case core.KindSale:
		s, err := p.storage.GetSale(ctx, userID, id)
		if err != nil {
			return sheets.Row{}, fmt.Errorf("get sale %d: %w", id, err)
		}
		return sheets.SaleRow(s), nil
	default:
		return sheets.Row{}, fmt.Errorf("kind %q is not mirrored", kind)
	}
}

func (p *MirrorProcessor) handleFailure(ctx context.Context, item storage.MirrorItem, processErr error) {
	slog.WarnContext(ctx, "Mirror processing failed",
		"kind", item.Kind,
		"id", item.ID,
		"attempt", item.Attempts+1,
		"error", processErr)

	if err := p.storage.MarkMirrorFailure(ctx, item.Kind, item.ID, p.config.MaxRetries); err != nil {
		slog.ErrorContext(ctx, "Failed to record mirror failure",
			"kind", item.Kind, "id", item.ID, "error", err)
		return
	}

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		slog.ErrorContext(ctx, "Mirror row failed permanently after max retries",
			"kind", item.Kind,
			"id", item.ID,
			"attempts", item.Attempts+1)
	}
}

// Stats returns mirror status counts.
func (p *MirrorProcessor) Stats(ctx context.Context) (storage.MirrorStats, error) {
	return p.storage.MirrorStats(ctx)
}

// RetryFailed puts every failed row back into the pending set.
func (p *MirrorProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.storage.RetryMirrorErrors(ctx)
}
