package bundlecore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Submission is the submitter's answer. Exactly one of Result and
// RejectReason is meaningful: Result when Accepted, RejectReason otherwise.
type Submission struct {
	Accepted     bool
	Result       BundleSubmissionResult
	RejectReason string
}

// Submitter sends a signed bundle to the relay for the block after head.
type Submitter struct {
	relay Relay
	log   logrus.FieldLogger
}

// NewSubmitter creates a relay submitter.
func NewSubmitter(relay Relay, log logrus.FieldLogger) *Submitter {
	return &Submitter{
		relay: relay,
		log:   log.WithField("component", "submitter"),
	}
}

// Submit targets head+1. Transaction order is passed through untouched.
// A relay refusal is reported through Submission, not as an error.
func (s *Submitter) Submit(ctx context.Context, txs []SignedTransaction, head uint64) (Submission, error) {
	target := head + 1

	resp, err := s.relay.SendBundle(ctx, RawTxs(txs), target)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: send bundle for block %d: %w", ErrRelayTransport, target, err)
	}
	if resp.BundleID == "" {
		reason := resp.Reason
		if reason == "" {
			reason = "relay returned no bundle hash"
		}
		s.log.WithFields(logrus.Fields{
			"target_block": target,
			"reason":       reason,
		}).Warn("Bundle rejected by relay")
		return Submission{RejectReason: reason}, nil
	}

	s.log.WithFields(logrus.Fields{
		"bundle_hash":  resp.BundleID,
		"target_block": target,
		"txs":          len(txs),
	}).Info("Bundle submitted")

	return Submission{
		Accepted: true,
		Result: BundleSubmissionResult{
			BundleID:     resp.BundleID,
			TargetBlock:  target,
			Transactions: txs,
		},
	}, nil
}
