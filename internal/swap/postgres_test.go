package swap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotswap-backend/internal/apperr"
	"slotswap-backend/internal/config"
	"slotswap-backend/internal/database"
	"slotswap-backend/internal/metrics"
	"slotswap-backend/internal/models"
)

// These tests run against a real Postgres, where FOR UPDATE takes row locks
// and concurrent transactions are not serialized by a single connection.
//
//	SLOTSWAP_TEST_POSTGRES_DSN="host=localhost user=postgres password=postgres dbname=slotswap_test sslmode=disable" go test ./internal/swap/...

func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("SLOTSWAP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SLOTSWAP_TEST_POSTGRES_DSN not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.Open(config.Database{Driver: "postgres", DSN: dsn}, logger)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	m := metrics.New()
	return &fixture{
		db:      db,
		engine:  NewEngine(db, logger, m),
		metrics: m,
		base:    time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour),
	}
}

// cleanup removes the rows a test created for owners.
func (f *fixture) cleanup(t *testing.T, owners ...uuid.UUID) {
	t.Cleanup(func() {
		f.db.Where("requester_id IN ? OR responder_id IN ?", owners, owners).Delete(&models.SwapRequest{})
		f.db.Where("user_id IN ?", owners).Delete(&models.Event{})
	})
}

func TestPostgres_CrossedProposalsNeverFailInternally(t *testing.T) {
	f := newPostgresFixture(t)

	const pairs = 25
	type pair struct {
		a, b   uuid.UUID
		e1, e2 models.Event
	}
	ps := make([]pair, pairs)
	for i := range ps {
		a, b := uuid.New(), uuid.New()
		f.cleanup(t, a, b)
		ps[i] = pair{
			a: a, b: b,
			e1: f.slot(t, a, models.StatusSwappable, 2*i),
			e2: f.slot(t, b, models.StatusSwappable, 2*i+1),
		}
	}

	errs := make([][2]error, pairs)
	var start, done sync.WaitGroup
	start.Add(1)
	for i, p := range ps {
		done.Add(2)
		go func() {
			defer done.Done()
			start.Wait()
			_, errs[i][0] = f.engine.ProposeSwap(context.Background(), p.a, p.e1.ID, p.e2.ID)
		}()
		go func() {
			defer done.Done()
			start.Wait()
			_, errs[i][1] = f.engine.ProposeSwap(context.Background(), p.b, p.e2.ID, p.e1.ID)
		}()
	}
	start.Done()
	done.Wait()

	for i, pe := range errs {
		winners := 0
		for _, err := range pe {
			if err == nil {
				winners++
				continue
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidSlotState, "pair %d", i)
		}
		assert.Equal(t, 1, winners, "pair %d", i)
	}
}

func TestPostgres_RespondAndCancelRace(t *testing.T) {
	f := newPostgresFixture(t)

	for i := 0; i < 10; i++ {
		a, b := uuid.New(), uuid.New()
		f.cleanup(t, a, b)
		e1 := f.slot(t, a, models.StatusSwappable, 2*i)
		e2 := f.slot(t, b, models.StatusSwappable, 2*i+1)
		req, err := f.engine.ProposeSwap(context.Background(), a, e1.ID, e2.ID)
		require.NoError(t, err)

		var respondErr, cancelErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, respondErr = f.engine.RespondToSwap(context.Background(), b, req.ID, true)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = f.engine.CancelSwap(context.Background(), a, req.ID)
		}()
		wg.Wait()

		// exactly one of them resolves the request
		if respondErr == nil {
			assert.ErrorIs(t, cancelErr, apperr.ErrInvalidRequestState)
			assert.Equal(t, models.SwapAccepted, f.request(t, req.ID).Status)
			assert.Equal(t, b, f.reload(t, e1.ID).UserID)
		} else {
			require.NoError(t, cancelErr)
			assert.ErrorIs(t, respondErr, apperr.ErrInvalidRequestState)
			assert.Equal(t, models.SwapCancelled, f.request(t, req.ID).Status)
			assert.Equal(t, models.StatusSwappable, f.reload(t, e1.ID).Status)
		}
	}
}
