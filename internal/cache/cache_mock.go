package cache

import (
	"context"
	"sync"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/rs/zerolog"
)

// MockRefresher is a mock implementation of Refresher for testing
type MockRefresher struct {
	RefreshAfterInstallFunc func(ctx context.Context, format core.PackageFormat, log *zerolog.Logger)

	mu      sync.Mutex
	formats []core.PackageFormat
}

// RefreshAfterInstall implements Refresher.RefreshAfterInstall
func (m *MockRefresher) RefreshAfterInstall(ctx context.Context, format core.PackageFormat, log *zerolog.Logger) {
	m.mu.Lock()
	m.formats = append(m.formats, format)
	m.mu.Unlock()
	if m.RefreshAfterInstallFunc != nil {
		m.RefreshAfterInstallFunc(ctx, format, log)
	}
}

// Formats returns the formats refreshed so far
func (m *MockRefresher) Formats() []core.PackageFormat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.PackageFormat(nil), m.formats...)
}
