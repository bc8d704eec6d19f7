package events

import (
	"context"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"slotswap-backend/internal/models"
)

const productID = "-//slotswap//calendar export//EN"

// ExportICS renders the owner's events as an iCalendar document. Slots
// held by a pending swap are exported as TENTATIVE.
func (s *Service) ExportICS(ctx context.Context, owner uuid.UUID) (string, error) {
	events, err := s.ListMine(ctx, owner)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("SlotSwap")

	stamp := s.now()
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID.String())
		ve.SetDtStampTime(stamp)
		ve.SetCreatedTime(ev.CreatedAt)
		ve.SetModifiedAt(ev.UpdatedAt)
		ve.SetStartAt(ev.StartTime)
		ve.SetEndAt(ev.EndTime)
		ve.SetSummary(ev.Title)
		if ev.Status == models.StatusSwapPending {
			ve.SetStatus(ical.ObjectStatusTentative)
		} else {
			ve.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize(), nil
}
