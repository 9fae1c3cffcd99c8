package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/common/metrics"
)

// Track opens a span for operation and returns the func that closes it. The
// outcome is "ok" or the error code of err.
func (o *Observability) Track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := o.StartSpan(ctx, operation, attrs...)
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			code := apperrors.CodeOf(err)
			outcome = string(code)
			metrics.OperationsRejected.WithLabelValues(operation, outcome).Inc()
			if code == apperrors.ErrCodeVersionConflict {
				metrics.VersionConflicts.WithLabelValues(operation).Inc()
			}
		}
		o.RecordOperation(ctx, operation, outcome, time.Since(start))
		EndSpan(span, err)
	}
}
