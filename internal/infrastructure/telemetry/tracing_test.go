package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartServiceSpan(t *testing.T) {
	ctx, span := StartServiceSpan(context.Background(), "posting", "create_posting")
	defer span.End()

	require.NotNil(t, span)
	assert.NotNil(t, ctx)
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	// All helpers must be no-ops on a nil span
	SetAttributes(nil, "key", "value")
	SetAttribute(nil, "key", "value")
	RecordError(nil, errors.New("boom"))
	AddEvent(nil, "event")
}

func TestRecordError_NilError(t *testing.T) {
	_, span := StartSpan(context.Background(), "test")
	defer span.End()

	RecordError(span, nil)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Equal(t, "", GetTraceID(context.Background()))
}

func TestToAttribute(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		value    interface{}
		expected attribute.KeyValue
	}{
		{"string", "abc", attribute.String("k", "abc")},
		{"int", 42, attribute.Int("k", 42)},
		{"int64", int64(42), attribute.Int64("k", 42)},
		{"float64", 4.2, attribute.Float64("k", 4.2)},
		{"bool", true, attribute.Bool("k", true)},
		{"stringer", id, attribute.String("k", id.String())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toAttribute("k", tt.value))
		})
	}
}
