package helpers

import (
	"context"
	"sync"

	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/export"
)

// MockExporter records every batch it is asked to dispatch
type MockExporter struct {
	batches []*export.Batch
	err     error
	block   chan struct{}
	mu      sync.Mutex
}

// NewTestConfig creates a valid configuration with debug logging enabled
// and placeholder Flow URLs
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Platform.ProxyFlowURL = "http://localhost:9001/proxy"
	cfg.Platform.AccessKey = "test-access"
	cfg.Platform.SecretKey = "test-secret"
	cfg.Trigger.FlowURL = "http://localhost:9001/translate"
	cfg.Export.FlowURL = "http://localhost:9001/export"
	return cfg
}

// NewMockExporter creates an exporter that accepts every batch
func NewMockExporter() *MockExporter {
	return &MockExporter{}
}

// Dispatch records the batch and returns the configured error
func (m *MockExporter) Dispatch(_ context.Context, b *export.Batch) error {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, b)
	return m.err
}

// SetError makes subsequent dispatches fail with err
func (m *MockExporter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Hold blocks dispatches until the returned release func is called
func (m *MockExporter) Hold() func() {
	ch := make(chan struct{})
	m.mu.Lock()
	m.block = ch
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.block = nil
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Batches returns the dispatched batches in call order
func (m *MockExporter) Batches() []*export.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]*export.Batch, len(m.batches))
	copy(res, m.batches)
	return res
}

// Count returns the number of dispatch attempts
func (m *MockExporter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}
