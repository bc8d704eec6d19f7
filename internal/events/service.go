// Package events manages a user's own calendar slots. Changes that cross
// two users (proposals, swaps) belong to the swap package; this package
// refuses to touch an event while a swap holds it in SWAP_PENDING.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slotswap-backend/internal/apperr"
	"slotswap-backend/internal/models"
)

const lockedMessage = "event is part of a pending swap and cannot be changed"

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Status    models.EventStatus // empty means BUSY
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title     *string
	StartTime *time.Time
	EndTime   *time.Time
	Status    *models.EventStatus
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, in CreateInput) (*models.Event, error) {
	status := in.Status
	if status == "" {
		status = models.StatusBusy
	}
	if !status.OwnerSettable() {
		return nil, apperr.Validation("status must be BUSY or SWAPPABLE")
	}

	ev := models.Event{
		Title:     strings.TrimSpace(in.Title),
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		Status:    status,
		UserID:    owner,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("could not create event: %w", err)
	}

	s.logger.Debug("event created", "event_id", ev.ID, "user_id", owner)
	return &ev, nil
}

// ListMine returns the owner's events, earliest start first.
func (s *Service) ListMine(ctx context.Context, owner uuid.UUID) ([]models.Event, error) {
	events := []models.Event{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("start_time asc").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*models.Event, error) {
	return findOwned(s.db.WithContext(ctx), owner, id)
}

// Update applies in to the owner's event. Events held by a pending swap
// cannot be edited, and SWAP_PENDING cannot be set by hand.
func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, in UpdateInput) (*models.Event, error) {
	if in.Status != nil && !in.Status.OwnerSettable() {
		return nil, apperr.Validation("status must be BUSY or SWAPPABLE")
	}

	var updated models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := findOwned(tx.Clauses(clause.Locking{Strength: "UPDATE"}), owner, id)
		if err != nil {
			return err
		}
		if ev.Status == models.StatusSwapPending {
			return apperr.InvalidSlotState(lockedMessage)
		}

		merged := *ev
		if in.Title != nil {
			merged.Title = strings.TrimSpace(*in.Title)
		}
		if in.StartTime != nil {
			merged.StartTime = in.StartTime.UTC()
		}
		if in.EndTime != nil {
			merged.EndTime = in.EndTime.UTC()
		}
		if in.Status != nil {
			merged.Status = *in.Status
		}
		merged.UpdatedAt = s.now()
		if err := merged.Validate(); err != nil {
			return err
		}

		// the status guard repeats the check above inside the write itself
		res := tx.Model(&models.Event{}).
			Where("id = ? AND user_id = ? AND status <> ?", id, owner, models.StatusSwapPending).
			Updates(map[string]any{
				"title":      merged.Title,
				"start_time": merged.StartTime,
				"end_time":   merged.EndTime,
				"status":     merged.Status,
				"updated_at": merged.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("could not update event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidSlotState(lockedMessage)
		}
		updated = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the owner's event unless a pending swap holds it.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ? AND status <> ?", id, owner, models.StatusSwapPending).
			Delete(&models.Event{})
		if res.Error != nil {
			return fmt.Errorf("delete failed: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}

		// nothing deleted: tell a missing event apart from a locked one
		if _, err := findOwned(tx, owner, id); err != nil {
			return err
		}
		return apperr.InvalidSlotState(lockedMessage)
	})
}

func findOwned(db *gorm.DB, owner, id uuid.UUID) (*models.Event, error) {
	var ev models.Event
	if err := db.Where("id = ? AND user_id = ?", id, owner).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &ev, nil
}
