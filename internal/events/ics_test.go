package events

import (
	"context"
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotswap-backend/internal/models"
)

func TestExportICS(t *testing.T) {
	svc, db := newService(t)
	owner := uuid.New()

	busy := create(t, svc, owner, "Dentist", 0, models.StatusBusy)
	held := create(t, svc, owner, "Offered slot", 2, models.StatusSwappable)
	create(t, svc, uuid.New(), "someone else", 1, models.StatusBusy)
	require.NoError(t, db.Model(&models.Event{}).Where("id = ?", held.ID).
		Update("status", models.StatusSwapPending).Error)

	out, err := svc.ExportICS(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	vevents := cal.Events()
	require.Len(t, vevents, 2)

	byUID := map[string]*ical.VEvent{}
	for _, ve := range vevents {
		byUID[ve.GetProperty(ical.ComponentPropertyUniqueId).Value] = ve
	}

	first := byUID[busy.ID.String()]
	require.NotNil(t, first)
	assert.Equal(t, "Dentist", first.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "CONFIRMED", first.GetProperty(ical.ComponentPropertyStatus).Value)
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(busy.StartTime))

	second := byUID[held.ID.String()]
	require.NotNil(t, second)
	assert.Equal(t, "TENTATIVE", second.GetProperty(ical.ComponentPropertyStatus).Value)
}

func TestExportICS_NoEvents(t *testing.T) {
	svc, _ := newService(t)

	out, err := svc.ExportICS(context.Background(), uuid.New())
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, cal.Events())
}
