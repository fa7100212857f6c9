package services

import (
	"context"
	"fmt"
	"log/slog"

	"farmbook/internal/amqp"
	"farmbook/internal/core"
	"farmbook/internal/storage"
)

// EventPublisher sends ledger events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService is the authenticated entry point to the Entity Store. Every
// method checks the identity, validates input before touching storage and,
// for mirrored kinds, publishes a ledger event after a successful write.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
}

// NewLedgerService wires the store with an optional publisher; nil disables
// event publishing.
func NewLedgerService(storage *storage.SQLiteRepository, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		storage:   storage,
		publisher: publisher,
	}
}

func (s *LedgerService) ListFields(ctx context.Context, id core.Identity) ([]core.Field, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListFields(ctx, id.UserID)
}

func (s *LedgerService) GetField(ctx context.Context, id core.Identity, fieldID int64) (core.Field, error) {
	if err := id.Require(); err != nil {
		return core.Field{}, err
	}
	return s.storage.GetField(ctx, id.UserID, fieldID)
}

func (s *LedgerService) CreateField(ctx context.Context, id core.Identity, f core.Field) (core.Field, error) {
	if err := id.Require(); err != nil {
		return core.Field{}, err
	}
	if err := f.Validate(); err != nil {
		return core.Field{}, err
	}
	return s.storage.CreateField(ctx, id.UserID, f)
}

// DeleteField removes the field with its crops, activities, harvests and
// sales. Expenses survive with the field link cleared. Every removed sale is
// announced as deleted.
func (s *LedgerService) DeleteField(ctx context.Context, id core.Identity, fieldID int64) error {
	if err := id.Require(); err != nil {
		return err
	}
	saleIDs, err := s.storage.DeleteField(ctx, id.UserID, fieldID)
	if err != nil {
		return err
	}
	s.publishDeleted(ctx, core.KindSale, saleIDs, id.UserID)
	return nil
}

func (s *LedgerService) ListCrops(ctx context.Context, id core.Identity) ([]core.Crop, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListCrops(ctx, id.UserID)
}

func (s *LedgerService) GetCrop(ctx context.Context, id core.Identity, cropID int64) (core.Crop, error) {
	if err := id.Require(); err != nil {
		return core.Crop{}, err
	}
	return s.storage.GetCrop(ctx, id.UserID, cropID)
}

func (s *LedgerService) CreateCrop(ctx context.Context, id core.Identity, c core.Crop) (core.Crop, error) {
	if err := id.Require(); err != nil {
		return core.Crop{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Crop{}, err
	}
	return s.storage.CreateCrop(ctx, id.UserID, c)
}

func (s *LedgerService) DeleteCrop(ctx context.Context, id core.Identity, cropID int64) error {
	if err := id.Require(); err != nil {
		return err
	}
	saleIDs, err := s.storage.DeleteCrop(ctx, id.UserID, cropID)
	if err != nil {
		return err
	}
	s.publishDeleted(ctx, core.KindSale, saleIDs, id.UserID)
	return nil
}

func (s *LedgerService) ListActivities(ctx context.Context, id core.Identity) ([]core.Activity, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListActivities(ctx, id.UserID)
}

func (s *LedgerService) GetActivity(ctx context.Context, id core.Identity, activityID int64) (core.Activity, error) {
	if err := id.Require(); err != nil {
		return core.Activity{}, err
	}
	return s.storage.GetActivity(ctx, id.UserID, activityID)
}

func (s *LedgerService) CreateActivity(ctx context.Context, id core.Identity, a core.Activity) (core.Activity, error) {
	if err := id.Require(); err != nil {
		return core.Activity{}, err
	}
	if err := a.Validate(); err != nil {
		return core.Activity{}, err
	}
	return s.storage.CreateActivity(ctx, id.UserID, a)
}

func (s *LedgerService) DeleteActivity(ctx context.Context, id core.Identity, activityID int64) error {
	if err := id.Require(); err != nil {
		return err
	}
	return s.storage.DeleteActivity(ctx, id.UserID, activityID)
}

func (s *LedgerService) ListExpenses(ctx context.Context, id core.Identity) ([]core.Expense, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListExpenses(ctx, id.UserID)
}

func (s *LedgerService) GetExpense(ctx context.Context, id core.Identity, expenseID int64) (core.Expense, error) {
	if err := id.Require(); err != nil {
		return core.Expense{}, err
	}
	return s.storage.GetExpense(ctx, id.UserID, expenseID)
}

// CreateExpense saves the expense and announces it to the mirror.
func (s *LedgerService) CreateExpense(ctx context.Context, id core.Identity, e core.Expense) (core.Expense, error) {
	if err := id.Require(); err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	created, err := s.storage.CreateExpense(ctx, id.UserID, e)
	if err != nil {
		return core.Expense{}, err
	}
	s.publish(ctx, core.KindExpense, amqp.ActionCreated, created.ID, id.UserID)
	return created, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id core.Identity, expenseID int64) error {
	if err := id.Require(); err != nil {
		return err
	}
	if err := s.storage.DeleteExpense(ctx, id.UserID, expenseID); err != nil {
		return err
	}
	s.publish(ctx, core.KindExpense, amqp.ActionDeleted, expenseID, id.UserID)
	return nil
}

func (s *LedgerService) ListHarvests(ctx context.Context, id core.Identity) ([]core.Harvest, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListHarvests(ctx, id.UserID)
}

func (s *LedgerService) GetHarvest(ctx context.Context, id core.Identity, harvestID int64) (core.Harvest, error) {
	if err := id.Require(); err != nil {
		return core.Harvest{}, err
	}
	return s.storage.GetHarvest(ctx, id.UserID, harvestID)
}

func (s *LedgerService) CreateHarvest(ctx context.Context, id core.Identity, h core.Harvest) (core.Harvest, error) {
	if err := id.Require(); err != nil {
		return core.Harvest{}, err
	}
	if err := h.Validate(); err != nil {
		return core.Harvest{}, err
	}
	return s.storage.CreateHarvest(ctx, id.UserID, h)
}

func (s *LedgerService) DeleteHarvest(ctx context.Context, id core.Identity, harvestID int64) error {
	if err := id.Require(); err != nil {
		return err
	}
	saleIDs, err := s.storage.DeleteHarvest(ctx, id.UserID, harvestID)
	if err != nil {
		return err
	}
	s.publishDeleted(ctx, core.KindSale, saleIDs, id.UserID)
	return nil
}

func (s *LedgerService) ListSales(ctx context.Context, id core.Identity) ([]core.Sale, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListSales(ctx, id.UserID)
}

func (s *LedgerService) GetSale(ctx context.Context, id core.Identity, saleID int64) (core.Sale, error) {
	if err := id.Require(); err != nil {
		return core.Sale{}, err
	}
	return s.storage.GetSale(ctx, id.UserID, saleID)
}

// CreateSale stores the sale with the TotalAmount it was given; the total is
// never recomputed from quantity and price.
func (s *LedgerService) CreateSale(ctx context.Context, id core.Identity, sale core.Sale) (core.Sale, error) {
	if err := id.Require(); err != nil {
		return core.Sale{}, err
	}
	if err := sale.Validate(); err != nil {
		return core.Sale{}, err
	}
	created, err := s.storage.CreateSale(ctx, id.UserID, sale)
	if err != nil {
		return core.Sale{}, err
	}
	s.publish(ctx, core.KindSale, amqp.ActionCreated, created.ID, id.UserID)
	return created, nil
}

func (s *LedgerService) DeleteSale(ctx context.Context, id core.Identity, saleID int64) error {
	if err := id.Require(); err != nil {
		return err
	}
	if err := s.storage.DeleteSale(ctx, id.UserID, saleID); err != nil {
		return err
	}
	s.publish(ctx, core.KindSale, amqp.ActionDeleted, saleID, id.UserID)
	return nil
}

// publish is best-effort: the row is already committed, so a broker failure
// is logged and the mirror processor picks the row up later.
func (s *LedgerService) publish(ctx context.Context, kind core.RecordKind, action amqp.Action, recordID, userID int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping ledger event",
			"kind", kind, "action", action, "id", recordID)
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewLedgerEvent(kind, action, recordID, userID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "action", action, "id", recordID, "error", err)
	}
}

// publishDeleted announces rows that went with a parent delete.
func (s *LedgerService) publishDeleted(ctx context.Context, kind core.RecordKind, ids []int64, userID int64) {
	for _, recordID := range ids {
		s.publish(ctx, kind, amqp.ActionDeleted, recordID, userID)
	}
}

// Close releases the publisher if it owns a connection.
func (s *LedgerService) Close() error {
	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
