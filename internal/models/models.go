package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"slotswap-backend/internal/apperr"
)

// User represents a registered user
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// -----------------------------
// Events
// -----------------------------

type EventStatus string

const (
	StatusBusy        EventStatus = "BUSY"
	StatusSwappable   EventStatus = "SWAPPABLE"
	StatusSwapPending EventStatus = "SWAP_PENDING"
)

func (s EventStatus) Valid() bool {
	switch s {
	case StatusBusy, StatusSwappable, StatusSwapPending:
		return true
	}
	return false
}

// OwnerSettable reports whether an owner may put an event into s directly.
// SWAP_PENDING is only ever entered through a swap proposal.
func (s EventStatus) OwnerSettable() bool {
	return s == StatusBusy || s == StatusSwappable
}

// Event is a calendar slot owned by UserID.
type Event struct {
	ID        uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	Title     string      `json:"title" gorm:"not null"`
	StartTime time.Time   `json:"startTime" gorm:"not null;index"`
	EndTime   time.Time   `json:"endTime" gorm:"not null"`
	Status    EventStatus `json:"status" gorm:"type:varchar(16);not null;default:'BUSY';index"`
	UserID    uuid.UUID   `json:"userId" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Validate checks the invariants every stored event must satisfy.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return apperr.Validation("title is required")
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return apperr.Validation("startTime and endTime are required")
	}
	if !e.EndTime.After(e.StartTime) {
		return apperr.Validation("endTime must be after startTime")
	}
	if !e.Status.Valid() {
		return apperr.Validation("status must be one of BUSY, SWAPPABLE, SWAP_PENDING")
	}
	if e.UserID == uuid.Nil {
		return apperr.Validation("event owner is required")
	}
	return nil
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Status == "" {
		e.Status = StatusBusy
	}
	return e.Validate()
}

// -----------------------------
// Swap requests
// -----------------------------

type SwapStatus string

const (
	SwapPending   SwapStatus = "PENDING"
	SwapAccepted  SwapStatus = "ACCEPTED"
	SwapRejected  SwapStatus = "REJECTED"
	SwapCancelled SwapStatus = "CANCELLED"
)

func (s SwapStatus) Terminal() bool {
	return s == SwapAccepted || s == SwapRejected || s == SwapCancelled
}

// SwapRequest proposes trading the requester's MySlotID for the
// responder's TheirSlotID. Rows are never deleted; they form the history
// shown in the incoming/outgoing request lists.
type SwapRequest struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	RequesterID uuid.UUID  `json:"requesterId" gorm:"type:uuid;not null;index:idx_swap_requester_status,priority:1"`
	ResponderID uuid.UUID  `json:"responderId" gorm:"type:uuid;not null;index:idx_swap_responder_status,priority:1"`
	MySlotID    uuid.UUID  `json:"mySlotId" gorm:"type:uuid;not null"`
	TheirSlotID uuid.UUID  `json:"theirSlotId" gorm:"type:uuid;not null"`
	Status      SwapStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index:idx_swap_requester_status,priority:2;index:idx_swap_responder_status,priority:2"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (r *SwapRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = SwapPending
	}
	return nil
}

// All lists every model managed by migrations.
func All() []any {
	return []any{&User{}, &Event{}, &SwapRequest{}}
}
