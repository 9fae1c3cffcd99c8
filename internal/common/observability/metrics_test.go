package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/common/metrics"
)

func TestNew_ExportsOperationMetrics(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := New(Options{ServiceName: "placement-core-test", Registerer: reg})
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	obs.RecordOperation(context.Background(), "approve", "ok", 3*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "core_operations_total")
	assert.Contains(t, names, "core_operation_duration_milliseconds")
}

func TestStartSpan_NilAndNoop(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "approve")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))

	noop := NewNoop()
	_, span = noop.StartSpan(context.Background(), "transition")
	EndSpan(span, nil)
	noop.RecordOperation(context.Background(), "transition", "ok", time.Millisecond)
	assert.NoError(t, noop.Shutdown(context.Background()))
}

func TestTrack_CountsRejections(t *testing.T) {
	obs := NewNoop()

	_, done := obs.Track(context.Background(), "test.op")
	done(nil)

	_, done = obs.Track(context.Background(), "test.op")
	done(apperrors.NewVersionConflictError("e1", 1, 2))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OperationsRejected.WithLabelValues("test.op", "VERSION_CONFLICT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.VersionConflicts.WithLabelValues("test.op")))
}
