package sdkLoader

import (
	"context"
	"fmt"
	"os"
	"plugin"
	"runtime"
)

// PluginSymbol is the variable a plugin bundle must export.
const PluginSymbol = "RelayerSDK"

// StaticHost serves a bundle linked into the binary.
type StaticHost struct {
	Bundle Bundle
}

func (h *StaticHost) IsAvailable() bool {
	return h.Bundle != nil
}

func (h *StaticHost) LoadScript(_ context.Context, _ string) (Bundle, error) {
	if h.Bundle == nil {
		return nil, fmt.Errorf("no bundle linked")
	}
	return h.Bundle, nil
}

// UnavailableHost is used where no SDK can be supplied.
type UnavailableHost struct{}

func (UnavailableHost) IsAvailable() bool { return false }

func (UnavailableHost) LoadScript(context.Context, string) (Bundle, error) {
	return nil, fmt.Errorf("SDK host unavailable")
}

// PluginHost opens a Go plugin exporting PluginSymbol as a Bundle.
type PluginHost struct{}

func (PluginHost) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd":
		return true
	}
	return false
}

func (PluginHost) LoadScript(_ context.Context, source string) (Bundle, error) {
	if source == "" {
		return nil, fmt.Errorf("no plugin path configured")
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("failed to stat plugin %s: %w", source, err)
	}
	p, err := plugin.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin %s: %w", source, err)
	}
	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s in plugin %s: %w", PluginSymbol, source, err)
	}
	switch b := sym.(type) {
	case *Bundle:
		return *b, nil
	case Bundle:
		return b, nil
	}
	return nil, fmt.Errorf("plugin symbol %s has unexpected type %T", PluginSymbol, sym)
}
