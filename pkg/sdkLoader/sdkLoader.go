// Package sdkLoader loads and initializes the external encryption SDK bundle
// once per process. Concurrent Load and Init calls share one in-flight
// attempt; failed attempts are not cached so a later call retries.
package sdkLoader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// InitOptions are passed to the bundle's one-time parameter setup.
type InitOptions struct {
	// Threads sets the worker count for parameter setup, 0 lets the bundle decide.
	Threads int
}

// Bundle is a loaded SDK.
type Bundle interface {
	Version() string
	InitSDK(ctx context.Context, opts *InitOptions) (bool, error)
	// Configs returns the named protocol configurations shipped with the bundle.
	Configs() map[string]*fhevm.ProtocolConfig
	CreateInstance(ctx context.Context, cfg *fhevm.ProtocolConfig, network *fhevm.ChainTarget) (fhevm.Instance, error)
}

// Host supplies the SDK bundle. Headless environments use UnavailableHost.
type Host interface {
	IsAvailable() bool
	LoadScript(ctx context.Context, source string) (Bundle, error)
}

// LoaderConfig controls where the bundle comes from and which versions are accepted.
type LoaderConfig struct {
	// Source is passed to Host.LoadScript (a plugin path or a script URL).
	Source string
	// MinVersion is the lowest accepted bundle version, empty accepts any.
	MinVersion string
}

type Loader struct {
	host   Host
	config *LoaderConfig
	logger *zap.Logger

	scriptLoaded atomic.Bool
	initialized  atomic.Bool

	mu     sync.RWMutex
	bundle Bundle

	group singleflight.Group
}

// NewLoader creates a Loader. Most callers want Shared instead.
func NewLoader(host Host, cfg *LoaderConfig, l *zap.Logger) *Loader {
	if cfg == nil {
		cfg = &LoaderConfig{}
	}
	return &Loader{host: host, config: cfg, logger: l}
}

var (
	sharedMu sync.Mutex
	shared   *Loader
)

// Shared returns the process-wide loader, creating it from the arguments on
// the first call. Later calls ignore their arguments.
func Shared(host Host, cfg *LoaderConfig, l *zap.Logger) *Loader {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = NewLoader(host, cfg, l)
	}
	return shared
}

// IsLoaded reports whether the bundle has been loaded.
func (l *Loader) IsLoaded() bool {
	return l.scriptLoaded.Load()
}

// IsInitialized reports whether InitSDK has succeeded.
func (l *Loader) IsInitialized() bool {
	return l.initialized.Load()
}

// Bundle returns the loaded bundle or nil.
func (l *Loader) Bundle() Bundle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bundle
}

// Load loads the bundle exactly once. A cancelled ctx stops the caller from
// waiting but does not abort the shared attempt.
func (l *Loader) Load(ctx context.Context) (Bundle, error) {
	if err := fhevmErrors.Abort(ctx); err != nil {
		return nil, err
	}
	if l.scriptLoaded.Load() {
		return l.Bundle(), nil
	}
	if l.host == nil || !l.host.IsAvailable() {
		return nil, fhevmErrors.Newf(fhevmErrors.KindSdkUnavailable, "the encryption SDK cannot be loaded in this environment")
	}

	ch := l.group.DoChan("load", func() (any, error) {
		if l.scriptLoaded.Load() {
			return l.Bundle(), nil
		}
		l.logger.Sugar().Infow("Loading encryption SDK", zap.String("source", l.config.Source))

		b, err := l.host.LoadScript(context.WithoutCancel(ctx), l.config.Source)
		if err != nil {
			return nil, fhevmErrors.New(fhevmErrors.KindSdkUnavailable, "failed to load the encryption SDK", err)
		}
		if b == nil {
			return nil, fhevmErrors.Newf(fhevmErrors.KindSdkUnavailable, "the SDK host returned no bundle")
		}
		if err := l.checkVersion(b); err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.bundle = b
		l.mu.Unlock()
		l.scriptLoaded.Store(true)

		l.logger.Sugar().Infow("Loaded encryption SDK", zap.String("version", b.Version()))
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, fhevmErrors.Abort(ctx)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Bundle), nil
	}
}

// Init loads the bundle if needed and runs its one-time setup. Later calls
// are no-ops returning nil.
func (l *Loader) Init(ctx context.Context, opts *InitOptions) error {
	if err := fhevmErrors.Abort(ctx); err != nil {
		return err
	}
	if l.initialized.Load() {
		return nil
	}
	b, err := l.Load(ctx)
	if err != nil {
		return err
	}
	if opts == nil {
		opts = &InitOptions{}
	}

	ch := l.group.DoChan("init", func() (any, error) {
		if l.initialized.Load() {
			return nil, nil
		}
		ok, err := b.InitSDK(context.WithoutCancel(ctx), opts)
		if err != nil {
			return nil, fhevmErrors.New(fhevmErrors.KindSdkInitFailed, "failed to initialize the encryption SDK", err)
		}
		if !ok {
			return nil, fhevmErrors.Newf(fhevmErrors.KindSdkInitFailed, "the encryption SDK reported an unsuccessful initialization")
		}
		l.initialized.Store(true)
		l.logger.Sugar().Infow("Initialized encryption SDK", zap.Int("threads", opts.Threads))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return fhevmErrors.Abort(ctx)
	case res := <-ch:
		return res.Err
	}
}

func (l *Loader) checkVersion(b Bundle) error {
	if l.config.MinVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + l.config.MinVersion)
	if err != nil {
		return fhevmErrors.New(fhevmErrors.KindInvalidConfig, fmt.Sprintf("invalid minimum SDK version %q", l.config.MinVersion), err)
	}
	v, err := semver.NewVersion(b.Version())
	if err != nil {
		return fhevmErrors.New(fhevmErrors.KindSdkUnavailable, fmt.Sprintf("SDK bundle reports an invalid version %q", b.Version()), err)
	}
	if !constraint.Check(v) {
		return fhevmErrors.Newf(fhevmErrors.KindSdkUnavailable, "SDK bundle version %s is older than the required %s", v, l.config.MinVersion)
	}
	return nil
}
