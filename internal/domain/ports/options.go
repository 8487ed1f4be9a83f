package ports

import (
	"mosaicod/internal/domain/models"
)

// RangeOption restricts chunk listing to chunks whose span intersects Range
type RangeOption struct {
	Range models.TimestampRange
}

// WithRange creates an option restricting chunk listing to a time window
func WithRange(r models.TimestampRange) Option {
	return RangeOption{Range: r}
}

// RangeFromOptions returns the first range option, if any
func RangeFromOptions(opts ...Option) (models.TimestampRange, bool) {
	for _, o := range opts {
		if ro, ok := o.(RangeOption); ok {
			return ro.Range, true
		}
	}
	return models.TimestampRange{}, false
}
