package worker

import (
	"context"
	"fmt"
	"log/slog"

	"farmbook/internal/amqp"
	"farmbook/internal/services"
	"farmbook/internal/sheets"
)

// MirrorWorker applies ledger events from AMQP to the spreadsheet mirror.
type MirrorWorker struct {
	processor *services.MirrorProcessor
	mirror    sheets.Mirror
}

func NewMirrorWorker(processor *services.MirrorProcessor, mirror sheets.Mirror) *MirrorWorker {
	return &MirrorWorker{
		processor: processor,
		mirror:    mirror,
	}
}

// HandleEvent upserts created rows and removes deleted ones. Returning an
// error makes the consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if !ev.Kind.Mirrored() {
		slog.DebugContext(ctx, "Ignoring event for unmirrored kind", "kind", ev.Kind, "id", ev.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"action", ev.Action,
		"id", ev.ID)

	switch ev.Action {
	case amqp.ActionCreated:
		if err := w.processor.Sync(ctx, ev.Kind, ev.UserID, ev.ID); err != nil {
			return fmt.Errorf("mirror %s %d: %w", ev.Kind, ev.ID, err)
		}
	case amqp.ActionDeleted:
		if err := w.mirror.Remove(ctx, ev.Kind, ev.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to remove mirrored row",
				"kind", ev.Kind,
				"id", ev.ID,
				"error", err,
				"timestamp", ev.Timestamp)
			return fmt.Errorf("remove %s %d from mirror: %w", ev.Kind, ev.ID, err)
		}
		slog.InfoContext(ctx, "Removed mirrored row", "kind", ev.Kind, "id", ev.ID)
	default:
		return fmt.Errorf("unknown action: %s", ev.Action)
	}
	return nil
}

// StartupSync mirrors whatever is still pending, to recover from missed
// messages or worker downtime.
func (w *MirrorWorker) StartupSync(ctx context.Context) {
	total := 0
	for {
		n := w.processor.ProcessBatch(ctx)
		total += n
		if n == 0 || ctx.Err() != nil {
			break
		}
	}
	if total == 0 {
		slog.InfoContext(ctx, "No pending mirror rows found on startup")
		return
	}
	slog.InfoContext(ctx, "Startup mirror sync completed", "synced", total)
}
