// Package lifecycle owns instance construction for one wallet connection.
//
// The lifecycle moves between idle, loading, ready and error. A change of
// target or enablement cancels any in-flight construction and starts over;
// results of a cancelled construction are discarded. Every construction is
// stamped with a generation number and only the construction matching the
// current generation may commit its result.
package lifecycle

import (
	"context"
	"sync"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/instanceBuilder"
	"github.com/Layr-Labs/fhevm-session-go/pkg/metrics"
	"go.uber.org/zap"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State is a snapshot of the lifecycle.
type State struct {
	Status   Status
	Instance fhevm.Instance
	// Err is the latest construction error, set only in StatusError.
	Err error
	// Generation identifies the construction that produced this state.
	Generation uint64
}

type Lifecycle struct {
	builder instanceBuilder.IInstanceBuilder
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu         sync.Mutex
	state      State
	target     *fhevm.ChainTarget
	enabled    bool
	generation uint64
	cancel     context.CancelFunc
	settled    chan struct{}
	closed     bool
	subs       []chan State
}

// NewLifecycle creates an idle lifecycle. metrics may be nil.
func NewLifecycle(builder instanceBuilder.IInstanceBuilder, m *metrics.Metrics, l *zap.Logger) *Lifecycle {
	return &Lifecycle{
		builder: builder,
		metrics: m,
		logger:  l,
		state:   State{Status: StatusIdle},
	}
}

// State returns the current snapshot.
func (lc *Lifecycle) State() State {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state
}

// Target returns the current target, nil when none is set.
func (lc *Lifecycle) Target() *fhevm.ChainTarget {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.target
}

// Subscribe returns a channel that always holds the most recent state not
// yet received. The channel is closed by Close.
func (lc *Lifecycle) Subscribe() <-chan State {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	ch := make(chan State, 1)
	if lc.closed {
		close(ch)
		return ch
	}
	ch <- lc.state
	lc.subs = append(lc.subs, ch)
	return ch
}

// SetTarget points the lifecycle at target. A nil target or enabled=false
// cancels any construction and returns to idle. Setting the same target
// again while enabled is a no-op.
func (lc *Lifecycle) SetTarget(target *fhevm.ChainTarget, enabled bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed {
		return
	}

	if !enabled || target == nil {
		lc.cancelLocked()
		lc.generation++
		lc.target = target
		lc.enabled = enabled
		if lc.state.Status != StatusIdle || lc.state.Instance != nil {
			lc.setStateLocked(State{Status: StatusIdle, Generation: lc.generation})
		}
		return
	}

	if lc.enabled && lc.target.SameAs(target) {
		return
	}
	lc.target = target
	lc.enabled = true
	lc.startLocked(false)
}

// Refresh re-runs construction for the current target. It returns false and
// does nothing when no target is set or a construction is already pending.
func (lc *Lifecycle) Refresh() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed || !lc.enabled || lc.target == nil || lc.state.Status == StatusLoading {
		return false
	}
	lc.startLocked(true)
	return true
}

// WaitSettled blocks until no construction is pending, or until the one it
// waited on has settled, then returns the state.
func (lc *Lifecycle) WaitSettled(ctx context.Context) (State, error) {
	for {
		lc.mu.Lock()
		state, settled, closed := lc.state, lc.settled, lc.closed
		lc.mu.Unlock()

		if state.Status != StatusLoading || closed || settled == nil {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, fhevmErrors.Abort(ctx)
		case <-settled:
		}

		lc.mu.Lock()
		state, current := lc.state, lc.settled
		lc.mu.Unlock()
		if current == settled {
			return state, nil
		}
	}
}

// Close cancels any construction and freezes the state at its last value.
func (lc *Lifecycle) Close() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed {
		return
	}
	lc.cancelLocked()
	lc.generation++
	lc.closed = true
	for _, ch := range lc.subs {
		close(ch)
	}
	lc.subs = nil
}

func (lc *Lifecycle) cancelLocked() {
	if lc.cancel != nil {
		lc.cancel()
		lc.cancel = nil
	}
}

func (lc *Lifecycle) startLocked(keepInstance bool) {
	lc.cancelLocked()
	lc.generation++
	gen := lc.generation
	target := lc.target

	ctx, cancel := context.WithCancel(context.Background())
	lc.cancel = cancel
	done := make(chan struct{})
	lc.settled = done

	next := State{Status: StatusLoading, Generation: gen}
	if keepInstance {
		next.Instance = lc.state.Instance
	}
	lc.setStateLocked(next)

	lc.logger.Sugar().Debugw("Starting instance construction",
		zap.Uint64("generation", gen),
		zap.Uint64("chainId", target.ChainID),
		zap.String("provider", target.Identity()),
	)

	go func() {
		defer close(done)
		inst, err := lc.builder.Build(ctx, target)
		lc.finish(ctx, gen, inst, err)
	}()
}

func (lc *Lifecycle) finish(ctx context.Context, gen uint64, inst fhevm.Instance, err error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if gen != lc.generation || ctx.Err() != nil || lc.closed {
		lc.logger.Sugar().Debugw("Discarding superseded construction result",
			zap.Uint64("generation", gen),
			zap.Uint64("current", lc.generation),
		)
		return
	}
	lc.cancelLocked()

	// ctx is still live here, so any error is a real failure of this build.
	if err != nil {
		lc.logger.Sugar().Warnw("Instance construction failed",
			zap.Uint64("generation", gen),
			zap.String("kind", string(fhevmErrors.KindOf(err))),
			zap.Error(err),
		)
		lc.setStateLocked(State{Status: StatusError, Err: err, Generation: gen})
		return
	}
	lc.setStateLocked(State{Status: StatusReady, Instance: inst, Generation: gen})
}

func (lc *Lifecycle) setStateLocked(s State) {
	lc.state = s
	lc.metrics.LifecycleTransition(string(s.Status))
	for _, ch := range lc.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
