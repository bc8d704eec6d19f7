// Package swap implements the slot swap protocol: proposing a trade of two
// calendar slots, answering or withdrawing the proposal, and the marketplace
// queries over slots and requests.
//
// Every state-changing operation runs as a single database transaction in
// which each write is conditional on the status (and owner) it expects to
// replace. A write that matches no row means another transaction got there
// first, and the whole operation aborts without partial effects.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slotswap-backend/internal/apperr"
	"slotswap-backend/internal/database"
	"slotswap-backend/internal/metrics"
	"slotswap-backend/internal/models"
)

const tracerName = "slotswap-backend/internal/swap"

// Engine coordinates swap requests and the events they reference.
// It holds no mutable state of its own, so any number of engines (or
// service instances) can share one database.
type Engine struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewEngine(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		db:      db,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// -----------------------------
// Propose
// -----------------------------

// ProposeSwap reserves the caller's slot and another user's slot and
// records a PENDING request between them.
func (e *Engine) ProposeSwap(ctx context.Context, callerID, mySlotID, theirSlotID uuid.UUID) (_ *models.SwapRequest, err error) {
	ctx, span := e.tracer.Start(ctx, "swap.ProposeSwap", trace.WithAttributes(
		attribute.String("caller.id", callerID.String()),
		attribute.String("swap.my_slot_id", mySlotID.String()),
		attribute.String("swap.their_slot_id", theirSlotID.String()),
	))
	defer e.finish(span, "propose", time.Now(), &err)

	if mySlotID == uuid.Nil || theirSlotID == uuid.Nil {
		return nil, apperr.Validation("mySlotId and theirSlotId required")
	}
	if mySlotID == theirSlotID {
		return nil, apperr.Validation("mySlotId and theirSlotId must be different slots")
	}

	var created models.SwapRequest
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := e.now()

		// crossed proposals over one pair queue on the same first row
		if _, err := lockSlots(tx, mySlotID, theirSlotID); err != nil {
			return err
		}

		res := tx.Model(&models.Event{}).
			Where("id = ? AND user_id = ? AND status = ?", mySlotID, callerID, models.StatusSwappable).
			Updates(map[string]any{"status": models.StatusSwapPending, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("reserve requester slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidSlotState("your slot not found or not swappable")
		}

		res = tx.Model(&models.Event{}).
			Where("id = ? AND user_id <> ? AND status = ?", theirSlotID, callerID, models.StatusSwappable).
			Updates(map[string]any{"status": models.StatusSwapPending, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("reserve responder slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidSlotState("their slot not found or not swappable")
		}

		var theirSlot models.Event
		if err := tx.Select("id", "user_id").First(&theirSlot, "id = ?", theirSlotID).Error; err != nil {
			return fmt.Errorf("load responder slot: %w", err)
		}

		created = models.SwapRequest{
			RequesterID: callerID,
			ResponderID: theirSlot.UserID,
			MySlotID:    mySlotID,
			TheirSlotID: theirSlotID,
			Status:      models.SwapPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create swap request: %w", err)
		}
		return nil
	})
	if database.IsLockConflict(err) {
		return nil, apperr.InvalidSlotState("slot is already part of another swap")
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("swap.request_id", created.ID.String()))
	e.logger.Info("swap proposed",
		"request_id", created.ID,
		"requester_id", created.RequesterID,
		"responder_id", created.ResponderID)
	return &created, nil
}

// -----------------------------
// Respond / cancel
// -----------------------------

// RespondToSwap lets the responder of a PENDING request accept it, which
// exchanges the owners of the two slots and marks both BUSY, or reject it,
// which makes both slots SWAPPABLE again.
func (e *Engine) RespondToSwap(ctx context.Context, callerID, requestID uuid.UUID, accept bool) (_ models.SwapStatus, err error) {
	ctx, span := e.tracer.Start(ctx, "swap.RespondToSwap", trace.WithAttributes(
		attribute.String("caller.id", callerID.String()),
		attribute.String("swap.request_id", requestID.String()),
		attribute.Bool("swap.accept", accept),
	))
	defer e.finish(span, "respond", time.Now(), &err)

	if requestID == uuid.Nil {
		return "", apperr.Validation("requestId required")
	}

	var outcome models.SwapStatus
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockPendingRequest(tx, "id = ? AND responder_id = ? AND status = ?", requestID, callerID, models.SwapPending)
		if err != nil {
			return err
		}
		mySlot, theirSlot, err := lockPendingSlots(tx, req)
		if err != nil {
			return err
		}

		now := e.now()
		if !accept {
			outcome = models.SwapRejected
			return release(tx, req, mySlot, theirSlot, models.SwapRejected, now)
		}

		if mySlot.UserID != req.RequesterID {
			return apperr.OwnershipMismatch("ownership mismatch for requester slot")
		}
		if theirSlot.UserID != req.ResponderID {
			return apperr.OwnershipMismatch("ownership mismatch for responder slot")
		}

		if err := updatePendingSlot(tx, mySlot, map[string]any{
			"user_id": req.ResponderID, "status": models.StatusBusy, "updated_at": now,
		}); err != nil {
			return err
		}
		if err := updatePendingSlot(tx, theirSlot, map[string]any{
			"user_id": req.RequesterID, "status": models.StatusBusy, "updated_at": now,
		}); err != nil {
			return err
		}

		outcome = models.SwapAccepted
		return resolve(tx, req, models.SwapAccepted, now)
	})
	if database.IsLockConflict(err) {
		return "", apperr.InvalidRequestState("swap request not found or already handled")
	}
	if err != nil {
		return "", err
	}

	e.metrics.SwapCompleted(string(outcome))
	e.logger.Info("swap resolved", "request_id", requestID, "status", outcome)
	return outcome, nil
}

// CancelSwap lets the requester withdraw a PENDING request. Both slots
// become SWAPPABLE again, exactly as on rejection.
func (e *Engine) CancelSwap(ctx context.Context, callerID, requestID uuid.UUID) (_ models.SwapStatus, err error) {
	ctx, span := e.tracer.Start(ctx, "swap.CancelSwap", trace.WithAttributes(
		attribute.String("caller.id", callerID.String()),
		attribute.String("swap.request_id", requestID.String()),
	))
	defer e.finish(span, "cancel", time.Now(), &err)

	if requestID == uuid.Nil {
		return "", apperr.Validation("requestId required")
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockPendingRequest(tx, "id = ? AND requester_id = ? AND status = ?", requestID, callerID, models.SwapPending)
		if err != nil {
			return err
		}
		mySlot, theirSlot, err := lockPendingSlots(tx, req)
		if err != nil {
			return err
		}
		return release(tx, req, mySlot, theirSlot, models.SwapCancelled, e.now())
	})
	if database.IsLockConflict(err) {
		return "", apperr.InvalidRequestState("swap request not found or already handled")
	}
	if err != nil {
		return "", err
	}

	e.metrics.SwapCompleted(string(models.SwapCancelled))
	e.logger.Info("swap resolved", "request_id", requestID, "status", models.SwapCancelled)
	return models.SwapCancelled, nil
}

// -----------------------------
// Transaction steps
// -----------------------------

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports row
// locks. The SQLite dialect drops the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockPendingRequest(tx *gorm.DB, query string, args ...any) (*models.SwapRequest, error) {
	var req models.SwapRequest
	if err := forUpdate(tx).Where(query, args...).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidRequestState("swap request not found or already handled")
		}
		return nil, fmt.Errorf("load swap request: %w", err)
	}
	return &req, nil
}

// lockPendingSlots loads both slots of req and checks that the proposal
// still holds them.
func lockPendingSlots(tx *gorm.DB, req *models.SwapRequest) (mine, theirs *models.Event, err error) {
	slots, err := lockSlots(tx, req.MySlotID, req.TheirSlotID)
	if err != nil {
		return nil, nil, err
	}
	mine, theirs = slots[req.MySlotID], slots[req.TheirSlotID]
	if mine == nil || theirs == nil {
		return nil, nil, apperr.InconsistentState("one or both slots missing")
	}
	if mine.Status != models.StatusSwapPending || theirs.Status != models.StatusSwapPending {
		return nil, nil, apperr.InconsistentState("slots not in SWAP_PENDING state")
	}
	return mine, theirs, nil
}

// lockSlots row-locks the events that exist among ids, always in id order,
// so two transactions over the same pair never hold one row each.
func lockSlots(tx *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]*models.Event, error) {
	var rows []models.Event
	if err := forUpdate(tx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lock slots: %w", err)
	}
	slots := make(map[uuid.UUID]*models.Event, len(rows))
	for i := range rows {
		slots[rows[i].ID] = &rows[i]
	}
	return slots, nil
}

// updatePendingSlot writes fields only if the slot still has the owner and
// SWAP_PENDING status that were read earlier in the transaction.
func updatePendingSlot(tx *gorm.DB, slot *models.Event, fields map[string]any) error {
	res := tx.Model(&models.Event{}).
		Where("id = ? AND user_id = ? AND status = ?", slot.ID, slot.UserID, models.StatusSwapPending).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update slot %s: %w", slot.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.InconsistentState("slot changed while the swap was being resolved")
	}
	return nil
}

// release returns both slots to SWAPPABLE and closes req with status to.
func release(tx *gorm.DB, req *models.SwapRequest, mine, theirs *models.Event, to models.SwapStatus, now time.Time) error {
	for _, slot := range []*models.Event{mine, theirs} {
		if err := updatePendingSlot(tx, slot, map[string]any{
			"status": models.StatusSwappable, "updated_at": now,
		}); err != nil {
			return err
		}
	}
	return resolve(tx, req, to, now)
}

// resolve moves req from PENDING to the terminal status to. A request
// that is no longer PENDING was handled by someone else meanwhile.
func resolve(tx *gorm.DB, req *models.SwapRequest, to models.SwapStatus, now time.Time) error {
	res := tx.Model(&models.SwapRequest{}).
		Where("id = ? AND status = ?", req.ID, models.SwapPending).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("update swap request: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.InvalidRequestState("swap request not found or already handled")
	}
	req.Status = to
	req.UpdatedAt = now
	return nil
}

// -----------------------------
// Instrumentation
// -----------------------------

func (e *Engine) finish(span trace.Span, op string, start time.Time, errp *error) {
	err := *errp
	e.metrics.Observe(op, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logFailure(op, err)
	}
	span.End()
}

func (e *Engine) logFailure(op string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInconsistentState:
		// a PENDING request whose slots were changed behind its back
		e.logger.Error("swap state inconsistency", "operation", op, "error", err)
	case apperr.KindOwnershipMismatch:
		e.logger.Warn("swap ownership mismatch", "operation", op, "error", err)
	case apperr.KindInternal:
		e.logger.Error("swap operation failed", "operation", op, "error", err)
	default:
		e.logger.Info("swap operation rejected", "operation", op, "error", err)
	}
}
