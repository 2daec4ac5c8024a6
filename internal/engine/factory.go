package engine

import "time"

// RemoteFactory creates HTTP clients for a remote reasoning worker.
type RemoteFactory struct {
	Endpoint string
	Timeout  time.Duration
}

var _ Factory = (*RemoteFactory)(nil)

// New returns a client bound to the given model.
func (f *RemoteFactory) New(modelID string) (Engine, error) {
	return NewClient(f.Endpoint, modelID, f.Timeout), nil
}

// MockFactory creates mock engines; used when no worker endpoint is
// configured and in tests.
type MockFactory struct {
	// Delay is passed through to created engines.
	Delay time.Duration
}

var _ Factory = (*MockFactory)(nil)

// New returns a fresh mock engine for the model.
func (f *MockFactory) New(modelID string) (Engine, error) {
	m := NewMockEngine(modelID)
	m.Delay = f.Delay
	return m, nil
}
