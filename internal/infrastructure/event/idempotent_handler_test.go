package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
)

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("processes a first delivery", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		inner := &recordingHandler{types: []string{ledger.EventTypeJournalEntryPosted}}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, handler.Handle(ctx, postedEvent(tenantID)))

		assert.Len(t, inner.events(), 1)
		assert.Equal(t, int64(1), handler.Metrics().Stats().EventsProcessed)
	})

	t.Run("skips a redelivered event", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		inner := &recordingHandler{types: []string{ledger.EventTypeJournalEntryPosted}}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		evt := postedEvent(tenantID)
		require.NoError(t, handler.Handle(ctx, evt))
		require.NoError(t, handler.Handle(ctx, evt))

		assert.Len(t, inner.events(), 1)
		assert.Equal(t, int64(1), handler.Metrics().Stats().EventsDuplicate)
	})

	t.Run("distinct events are both processed", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		inner := &recordingHandler{types: []string{ledger.EventTypeJournalEntryPosted}}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, handler.Handle(ctx, postedEvent(tenantID)))
		require.NoError(t, handler.Handle(ctx, postedEvent(tenantID)))

		assert.Len(t, inner.events(), 2)
	})

	t.Run("handler failure counts as failed and surfaces the error", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		inner := &recordingHandler{
			types: []string{ledger.EventTypeJournalEntryPosted},
			fail:  errors.New("projection update failed"),
		}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		err := handler.Handle(ctx, postedEvent(tenantID))
		require.Error(t, err)
		assert.Equal(t, int64(1), handler.Metrics().Stats().EventsFailed)
	})

	t.Run("disabled config bypasses the store", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		inner := &recordingHandler{types: []string{ledger.EventTypeJournalEntryPosted}}
		handler := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false, TTL: time.Hour}),
		)

		evt := postedEvent(tenantID)
		require.NoError(t, handler.Handle(ctx, evt))
		require.NoError(t, handler.Handle(ctx, evt))

		assert.Len(t, inner.events(), 2)
	})

	t.Run("exposes the wrapped handler's subscriptions", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()

		inner := &recordingHandler{types: []string{ledger.EventTypeJournalEntryReversed}}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		assert.Equal(t, []string{ledger.EventTypeJournalEntryReversed}, handler.EventTypes())
	})
}
