package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type buildResult struct {
	inst fhevm.Instance
	err  error
}

type buildCall struct {
	ctx     context.Context
	target  *fhevm.ChainTarget
	release chan buildResult
}

// stubBuilder hands every Build call to the test and blocks until released.
type stubBuilder struct {
	started chan *buildCall
}

func newStubBuilder() *stubBuilder {
	return &stubBuilder{started: make(chan *buildCall, 8)}
}

func (s *stubBuilder) Build(ctx context.Context, target *fhevm.ChainTarget) (fhevm.Instance, error) {
	c := &buildCall{ctx: ctx, target: target, release: make(chan buildResult, 1)}
	s.started <- c
	r := <-c.release
	return r.inst, r.err
}

func (s *stubBuilder) next(t *testing.T) *buildCall {
	t.Helper()
	select {
	case c := <-s.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a Build call")
		return nil
	}
}

func (s *stubBuilder) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case <-s.started:
		t.Fatal("unexpected Build call")
	case <-time.After(50 * time.Millisecond):
	}
}

func waitSettled(t *testing.T, lc *Lifecycle) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := lc.WaitSettled(ctx)
	require.NoError(t, err)
	return s
}

func target(chainID uint64, url string) *fhevm.ChainTarget {
	return &fhevm.ChainTarget{ChainID: chainID, RpcURL: url}
}

func Test_SetTargetBuildsInstance(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	assert.Equal(t, StatusIdle, lc.State().Status)

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	assert.Equal(t, StatusLoading, lc.State().Status)

	inst := fhevm.NewMockInstance(t)
	sb.next(t).release <- buildResult{inst: inst}

	s := waitSettled(t, lc)
	assert.Equal(t, StatusReady, s.Status)
	assert.Same(t, inst, s.Instance)
	assert.Nil(t, s.Err)
}

func Test_TargetChangeDiscardsLateResult(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	first := sb.next(t)

	lc.SetTarget(target(11155111, "https://sepolia.example"), true)
	second := sb.next(t)

	// The superseded construction observes cancellation.
	<-first.ctx.Done()
	assert.True(t, fhevmErrors.IsAbort(fhevmErrors.Abort(first.ctx)))

	// Its late result must not reach the lifecycle.
	stale := fhevm.NewMockInstance(t)
	first.release <- buildResult{inst: stale}
	assert.Equal(t, StatusLoading, lc.State().Status)

	fresh := fhevm.NewMockInstance(t)
	second.release <- buildResult{inst: fresh}
	s := waitSettled(t, lc)
	assert.Equal(t, StatusReady, s.Status)
	assert.Same(t, fresh, s.Instance)
	assert.Equal(t, uint64(11155111), lc.Target().ChainID)
}

func Test_SameTargetDoesNotRebuild(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	sb.next(t).release <- buildResult{inst: fhevm.NewMockInstance(t)}
	waitSettled(t, lc)

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	sb.assertNoCall(t)
	assert.Equal(t, StatusReady, lc.State().Status)
}

func Test_RefreshWhileLoadingIsNoop(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	assert.False(t, lc.Refresh(), "refresh without a target")

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	c := sb.next(t)

	assert.False(t, lc.Refresh())
	sb.assertNoCall(t)
	assert.NoError(t, c.ctx.Err())

	c.release <- buildResult{inst: fhevm.NewMockInstance(t)}
	waitSettled(t, lc)
}

func Test_RefreshRebuildsAndKeepsInstanceWhileLoading(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	first := fhevm.NewMockInstance(t)
	sb.next(t).release <- buildResult{inst: first}
	before := waitSettled(t, lc)

	require.True(t, lc.Refresh())
	loading := lc.State()
	assert.Equal(t, StatusLoading, loading.Status)
	assert.Same(t, first, loading.Instance)
	assert.Greater(t, loading.Generation, before.Generation)

	second := fhevm.NewMockInstance(t)
	sb.next(t).release <- buildResult{inst: second}
	s := waitSettled(t, lc)
	assert.Same(t, second, s.Instance)
}

func Test_ConstructionError(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(1, "https://mainnet.example"), true)
	buildErr := fhevmErrors.Newf(fhevmErrors.KindUnsupportedChain, "chain id 1 is not supported")
	sb.next(t).release <- buildResult{err: buildErr}

	s := waitSettled(t, lc)
	assert.Equal(t, StatusError, s.Status)
	assert.Nil(t, s.Instance)
	assert.True(t, errors.Is(s.Err, fhevmErrors.ErrUnsupportedChain))

	// A retry that succeeds clears the error.
	require.True(t, lc.Refresh())
	sb.next(t).release <- buildResult{inst: fhevm.NewMockInstance(t)}
	s = waitSettled(t, lc)
	assert.Equal(t, StatusReady, s.Status)
	assert.Nil(t, s.Err)
}

func Test_AbortErrorIsNeverSurfaced(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	first := sb.next(t)
	lc.SetTarget(target(31337, "http://127.0.0.1:8545"), true)
	second := sb.next(t)

	first.release <- buildResult{err: fhevmErrors.Abort(first.ctx)}
	second.release <- buildResult{inst: fhevm.NewMockInstance(t)}

	s := waitSettled(t, lc)
	assert.Equal(t, StatusReady, s.Status)
	assert.Nil(t, s.Err)
}

func Test_FailureWrappingTimeoutIsSurfaced(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	c := sb.next(t)
	require.NoError(t, c.ctx.Err())
	c.release <- buildResult{err: fhevmErrors.New(fhevmErrors.KindNetworkUnreachable, "failed to query chain id", context.DeadlineExceeded)}

	s := waitSettled(t, lc)
	assert.Equal(t, StatusError, s.Status)
	assert.True(t, errors.Is(s.Err, fhevmErrors.ErrNetworkUnreachable))
	assert.False(t, fhevmErrors.IsAbort(s.Err))

	require.True(t, lc.Refresh())
	sb.next(t).release <- buildResult{inst: fhevm.NewMockInstance(t)}
	assert.Equal(t, StatusReady, waitSettled(t, lc).Status)
}

func Test_AbortKindWithLiveContextSettles(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	sb.next(t).release <- buildResult{err: fhevmErrors.Newf(fhevmErrors.KindAbort, "bundle gave up")}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := lc.WaitSettled(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusError, s.Status)
	assert.NotEqual(t, StatusLoading, lc.State().Status)
}

func Test_DisableReturnsToIdle(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	c := sb.next(t)

	lc.SetTarget(target(31337, "http://localhost:8545"), false)
	s := lc.State()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Nil(t, s.Instance)
	assert.Nil(t, s.Err)
	<-c.ctx.Done()

	c.release <- buildResult{inst: fhevm.NewMockInstance(t)}
	assert.Equal(t, StatusIdle, waitSettled(t, lc).Status)
	assert.False(t, lc.Refresh())

	// Re-enabling the same target rebuilds.
	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	sb.next(t).release <- buildResult{inst: fhevm.NewMockInstance(t)}
	assert.Equal(t, StatusReady, waitSettled(t, lc).Status)

	lc.SetTarget(nil, true)
	assert.Equal(t, StatusIdle, lc.State().Status)
	assert.Nil(t, lc.State().Instance)
}

func Test_CloseFreezesState(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	sub := lc.Subscribe()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	c := sb.next(t)
	lc.Close()
	<-c.ctx.Done()

	c.release <- buildResult{inst: fhevm.NewMockInstance(t)}
	assert.Equal(t, StatusLoading, waitSettled(t, lc).Status)

	lc.SetTarget(target(1, "https://mainnet.example"), true)
	sb.assertNoCall(t)
	assert.False(t, lc.Refresh())

	// The subscription drains its last state and is closed.
	var last State
	for s := range sub {
		last = s
	}
	assert.Equal(t, StatusLoading, last.Status)
}

func Test_SubscribeSeesLatestState(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	sub := lc.Subscribe()
	assert.Equal(t, StatusIdle, (<-sub).Status)

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	assert.Equal(t, StatusLoading, (<-sub).Status)

	sb.next(t).release <- buildResult{inst: fhevm.NewMockInstance(t)}
	select {
	case s := <-sub:
		assert.Equal(t, StatusReady, s.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a ready notification")
	}
}

func Test_WaitSettledHonoursContext(t *testing.T) {
	sb := newStubBuilder()
	lc := NewLifecycle(sb, nil, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	c := sb.next(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := lc.WaitSettled(ctx)
	assert.True(t, fhevmErrors.IsAbort(err))
	assert.Equal(t, StatusLoading, s.Status)

	c.release <- buildResult{inst: fhevm.NewMockInstance(t)}
	waitSettled(t, lc)
}

func Test_TransitionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	sb := newStubBuilder()
	lc := NewLifecycle(sb, m, zap.NewNop())
	defer lc.Close()

	lc.SetTarget(target(31337, "http://localhost:8545"), true)
	sb.next(t).release <- buildResult{inst: fhevm.NewMockInstance(t)}
	waitSettled(t, lc)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LifecycleTransitionCounter(string(StatusLoading))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LifecycleTransitionCounter(string(StatusReady))))
}
