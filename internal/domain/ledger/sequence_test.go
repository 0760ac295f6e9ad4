package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledger/internal/domain/shared"
)

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, "202603", PeriodOf(time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "202612", PeriodOf(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSequenceCounter(t *testing.T) {
	t.Run("allocates monotonic numbers from one", func(t *testing.T) {
		counter, err := NewSequenceCounter(uuid.New(), SeriesJournal, "202603")
		require.NoError(t, err)

		assert.Equal(t, int64(1), counter.Next())
		assert.Equal(t, int64(2), counter.Next())
		assert.Equal(t, int64(3), counter.Next())
		assert.Equal(t, int64(3), counter.LastNumber)
	})

	t.Run("rejects empty series key", func(t *testing.T) {
		_, err := NewSequenceCounter(uuid.New(), "", "202603")
		assert.Equal(t, CodeValidation, shared.ErrorCode(err))
	})

	t.Run("rejects empty period", func(t *testing.T) {
		_, err := NewSequenceCounter(uuid.New(), SeriesJournal, "")
		assert.Equal(t, CodeValidation, shared.ErrorCode(err))
	})

	t.Run("rejects nil tenant", func(t *testing.T) {
		_, err := NewSequenceCounter(uuid.Nil, SeriesJournal, "202603")
		assert.Equal(t, CodeValidation, shared.ErrorCode(err))
	})
}
