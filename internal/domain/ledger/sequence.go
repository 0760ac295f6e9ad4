package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// SeriesJournal is the numbering series for journal entries
const SeriesJournal = "JE"

// PeriodOf formats the numbering period for a date (one period per month)
func PeriodOf(t time.Time) string {
	return t.Format("200601")
}

// SequenceCounter allocates gapless, monotonic numbers per
// (tenant, series, period). It is a database row incremented under row-level
// locking inside the posting transaction - never a process-local singleton -
// so a rolled-back posting releases its number and the series stays gapless.
type SequenceCounter struct {
	shared.BaseEntity
	TenantID   uuid.UUID `json:"tenant_id"`
	SeriesKey  string    `json:"series_key"`
	Period     string    `json:"period"`
	LastNumber int64     `json:"last_number"`
}

// NewSequenceCounter creates a counter starting at zero
func NewSequenceCounter(tenantID uuid.UUID, seriesKey, period string) (*SequenceCounter, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if seriesKey == "" {
		return nil, NewValidationError("Series key cannot be empty")
	}
	if period == "" {
		return nil, NewValidationError("Period cannot be empty")
	}

	return &SequenceCounter{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		SeriesKey:  seriesKey,
		Period:     period,
		LastNumber: 0,
	}, nil
}

// Next increments the counter and returns the allocated number.
// Numbers are never reused, even for voided documents.
func (c *SequenceCounter) Next() int64 {
	c.LastNumber++
	c.Touch()
	return c.LastNumber
}
