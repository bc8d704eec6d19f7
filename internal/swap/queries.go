package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"slotswap-backend/internal/models"
)

// Requests is the caller's view of swap requests, newest first.
type Requests struct {
	Incoming []models.SwapRequest `json:"incoming"`
	Outgoing []models.SwapRequest `json:"outgoing"`
}

// ListSwappableSlots returns every SWAPPABLE event not owned by the caller,
// earliest start first.
func (e *Engine) ListSwappableSlots(ctx context.Context, callerID uuid.UUID) (_ []models.Event, err error) {
	defer func(start time.Time) { e.metrics.Observe("list_slots", start, err) }(time.Now())

	slots := []models.Event{}
	if err := e.db.WithContext(ctx).
		Where("status = ? AND user_id <> ?", models.StatusSwappable, callerID).
		Order("start_time asc").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list swappable slots: %w", err)
	}
	return slots, nil
}

// ListSwapRequests returns the requests addressed to the caller (incoming)
// and the ones the caller made (outgoing), in every status.
func (e *Engine) ListSwapRequests(ctx context.Context, callerID uuid.UUID) (_ *Requests, err error) {
	defer func(start time.Time) { e.metrics.Observe("list_requests", start, err) }(time.Now())

	out := &Requests{
		Incoming: []models.SwapRequest{},
		Outgoing: []models.SwapRequest{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.db.WithContext(gctx).
			Where("responder_id = ?", callerID).
			Order("created_at desc").
			Find(&out.Incoming).Error
	})
	g.Go(func() error {
		return e.db.WithContext(gctx).
			Where("requester_id = ?", callerID).
			Order("created_at desc").
			Find(&out.Outgoing).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list swap requests: %w", err)
	}
	return out, nil
}
