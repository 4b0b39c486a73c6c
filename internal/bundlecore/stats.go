package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrStatsUnsupported is returned by relays without a stats endpoint.
var ErrStatsUnsupported = errors.New("bundle stats not supported by relay")

// StatsReporter fetches relay-side bundle statistics. It never fails.
type StatsReporter struct {
	relay Relay
	now   func() time.Time
	log   logrus.FieldLogger
}

// NewStatsReporter creates a stats reporter over relay. Relays that do not
// implement StatsSource produce a record annotated as unsupported.
func NewStatsReporter(relay Relay, log logrus.FieldLogger) *StatsReporter {
	return &StatsReporter{
		relay: relay,
		now:   time.Now,
		log:   log.WithField("component", "stats"),
	}
}

// Report returns whatever the relay knows about bundleID, degrading to a bare
// record with Error set when the relay cannot answer.
func (r *StatsReporter) Report(ctx context.Context, bundleID string, targetBlock uint64) *BundleStats {
	stats := &BundleStats{
		BundleID:  bundleID,
		Timestamp: r.now().UTC(),
		Status:    "submitted",
	}

	fields, err := r.fetch(ctx, bundleID, targetBlock)
	if err != nil {
		stats.Error = err.Error()
		r.log.WithError(err).WithField("bundle_hash", bundleID).Warn("Bundle stats unavailable")
		return stats
	}
	stats.Relay = fields
	r.log.WithFields(logrus.Fields{
		"bundle_hash": bundleID,
		"fields":      len(fields),
	}).Info("Bundle stats fetched")
	return stats
}

func (r *StatsReporter) fetch(ctx context.Context, bundleID string, targetBlock uint64) (fields map[string]any, err error) {
	src, ok := r.relay.(StatsSource)
	if !ok {
		return nil, ErrStatsUnsupported
	}
	defer func() {
		if p := recover(); p != nil {
			fields, err = nil, fmt.Errorf("stats panicked: %v", p)
		}
	}()
	return src.BundleStats(ctx, bundleID, targetBlock)
}
