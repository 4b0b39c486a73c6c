package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Chain  ChainReader
	Status StatusReader
	Relay  Relay
	Calls  CallEncoder
	Signer *Signer
	Sink   EventSink
}

// Orchestrator runs the bundle lifecycle exactly once per Run call:
// status check, build, sign, submit, watch, report.
type Orchestrator struct {
	chain     ChainReader
	status    StatusReader
	signer    *Signer
	builder   *Builder
	submitter *Submitter
	watcher   *Watcher
	stats     *StatsReporter
	sink      EventSink
	newRunID  func() string
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewOrchestrator validates cfg and wires the pipeline components.
func NewOrchestrator(cfg Config, deps Deps, log logrus.FieldLogger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Chain == nil:
		return nil, fmt.Errorf("%w: chain reader is required", ErrConfiguration)
	case deps.Status == nil:
		return nil, fmt.Errorf("%w: status reader is required", ErrConfiguration)
	case deps.Relay == nil:
		return nil, fmt.Errorf("%w: relay is required", ErrConfiguration)
	case deps.Calls == nil:
		return nil, fmt.Errorf("%w: call encoder is required", ErrConfiguration)
	case deps.Signer == nil:
		return nil, fmt.Errorf("%w: signer is required", ErrConfiguration)
	}
	sink := deps.Sink
	if sink == nil {
		sink = NewLogSink(log)
	}

	return &Orchestrator{
		chain:     deps.Chain,
		status:    deps.Status,
		signer:    deps.Signer,
		builder:   NewBuilder(cfg, deps.Calls, log),
		submitter: NewSubmitter(deps.Relay, log),
		watcher:   NewWatcher(deps.Chain, cfg.MaxWaitBlocks, cfg.BlockInterval, log),
		stats:     NewStatsReporter(deps.Relay, log),
		sink:      sink,
		newRunID:  uuid.NewString,
		now:       time.Now,
		log:       log.WithField("component", "orchestrator"),
	}, nil
}

// run carries the mutable state of a single invocation.
type run struct {
	o       *Orchestrator
	state   State
	outcome *Outcome
}

func (r *run) transition(to State, fields map[string]any) {
	from := r.state
	r.state = to
	r.outcome.State = to
	r.o.sink.Emit(Event{
		RunID:  r.outcome.RunID,
		From:   from,
		To:     to,
		Time:   r.o.now(),
		Fields: fields,
	})
}

// fail moves the run to Failed and returns the error the caller sees.
func (r *run) fail(kind error, err error) (*Outcome, error) {
	if k := KindOf(err); k != nil {
		kind = k
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = ErrAborted
	}
	stepErr := &StepError{Step: r.state, Kind: kind, Err: err}

	from := r.state
	r.state = StateFailed
	r.outcome.State = StateFailed
	r.outcome.Included = false
	r.outcome.ErrorKind = kind.Error()
	r.outcome.Error = stepErr.Error()
	r.o.sink.Emit(Event{
		RunID: r.outcome.RunID,
		From:  from,
		To:    StateFailed,
		Time:  r.o.now(),
		Err:   stepErr,
	})
	return r.outcome, stepErr
}

// Run executes the state machine. On failure the returned Outcome is still
// populated (State == StateFailed) and the error is a *StepError.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	r := &run{
		o:     o,
		state: StateInit,
		outcome: &Outcome{
			RunID:    o.newRunID(),
			State:    StateInit,
			TxHashes: []common.Hash{},
		},
	}
	sender := o.signer.Address()
	log := o.log.WithFields(logrus.Fields{"run_id": r.outcome.RunID, "sender": sender.Hex()})
	log.Info("Run started")

	// Init -> StatusChecked
	status, err := o.status.Status(ctx, sender)
	if err != nil {
		return r.fail(ErrChainRead, fmt.Errorf("read contract status: %w", err))
	}
	r.transition(StateStatusChecked, map[string]any{
		"presale_active":  status.PresaleActive,
		"owner":           status.Owner.Hex(),
		"caller":          sender.Hex(),
		"caller_is_owner": status.CallerIsOwner,
	})
	if !status.CallerIsOwner {
		return r.fail(ErrPrecondition, fmt.Errorf("caller %s is not contract owner %s", sender.Hex(), status.Owner.Hex()))
	}

	// StatusChecked -> Built
	nonce, err := o.chain.NonceAt(ctx, sender)
	if err != nil {
		return r.fail(ErrChainRead, fmt.Errorf("nonce: %w", err))
	}
	gasPrice, err := o.chain.GasPrice(ctx)
	if err != nil {
		return r.fail(ErrChainRead, fmt.Errorf("gas price: %w", err))
	}
	pending, err := o.builder.Build(nonce, gasPrice)
	if err != nil {
		return r.fail(ErrConfiguration, err)
	}
	r.transition(StateBuilt, map[string]any{
		"nonce":     nonce,
		"gas_price": pending[0].GasPrice.String(),
	})

	// Built -> Submitted
	signed, err := o.signer.Sign(pending)
	if err != nil {
		return r.fail(ErrSigning, err)
	}
	head, err := o.chain.BlockNumber(ctx)
	if err != nil {
		return r.fail(ErrChainRead, fmt.Errorf("block number: %w", err))
	}
	current, err := o.chain.NonceAt(ctx, sender)
	if err != nil {
		return r.fail(ErrChainRead, fmt.Errorf("nonce: %w", err))
	}
	if err := (Bundle{Transactions: signed}).CheckNonces(current); err != nil {
		return r.fail(ErrSubmissionRejected, fmt.Errorf("stale bundle: %w", err))
	}
	sub, err := o.submitter.Submit(ctx, signed, head)
	if err != nil {
		return r.fail(ErrRelayTransport, err)
	}
	if !sub.Accepted {
		return r.fail(ErrSubmissionRejected, errors.New(sub.RejectReason))
	}
	r.outcome.BundleID = sub.Result.BundleID
	r.outcome.TargetBlock = sub.Result.TargetBlock
	r.transition(StateSubmitted, map[string]any{
		"bundle_hash":  sub.Result.BundleID,
		"target_block": sub.Result.TargetBlock,
	})

	// Submitted -> Included | NotIncluded
	inclusion, err := o.watcher.Watch(ctx, sub.Result)
	if err != nil {
		return r.fail(ErrChainRead, err)
	}
	r.outcome.Included = inclusion.Included
	if inclusion.Included {
		r.outcome.InclusionBlock = inclusion.BlockNumber
		r.outcome.TxHashes = inclusion.TxHashes
		r.transition(StateIncluded, map[string]any{
			"block":    inclusion.BlockNumber,
			"attempts": inclusion.Attempts,
		})
	} else {
		r.transition(StateNotIncluded, map[string]any{
			"attempts": inclusion.Attempts,
		})
	}

	// -> Reported -> Done
	r.outcome.Stats = o.stats.Report(ctx, sub.Result.BundleID, sub.Result.TargetBlock)
	r.transition(StateReported, map[string]any{
		"stats_error": r.outcome.Stats.Error,
	})
	r.transition(StateDone, map[string]any{
		"included": r.outcome.Included,
	})
	log.WithField("included", r.outcome.Included).Info("Run finished")
	return r.outcome, nil
}

// Preview builds and signs the bundle without submitting it. It enforces the
// same owner precondition as Run.
func (o *Orchestrator) Preview(ctx context.Context) (Bundle, error) {
	sender := o.signer.Address()
	status, err := o.status.Status(ctx, sender)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: read contract status: %w", ErrChainRead, err)
	}
	if !status.CallerIsOwner {
		return Bundle{}, fmt.Errorf("%w: caller %s is not contract owner %s", ErrPrecondition, sender.Hex(), status.Owner.Hex())
	}
	nonce, err := o.chain.NonceAt(ctx, sender)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: nonce: %w", ErrChainRead, err)
	}
	gasPrice, err := o.chain.GasPrice(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: gas price: %w", ErrChainRead, err)
	}
	head, err := o.chain.BlockNumber(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: block number: %w", ErrChainRead, err)
	}
	pending, err := o.builder.Build(nonce, gasPrice)
	if err != nil {
		return Bundle{}, err
	}
	signed, err := o.signer.Sign(pending)
	if err != nil {
		return Bundle{}, err
	}
	o.log.WithFields(logrus.Fields{
		"nonce":        nonce,
		"target_block": head + 1,
	}).Info("Bundle prepared for preview")
	return Bundle{Transactions: signed, TargetBlock: head + 1}, nil
}
