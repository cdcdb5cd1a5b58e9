package capture

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/expkit/camrec/pkg/device"
	"github.com/google/uuid"
)

// Manager maps backend names to factories and keeps track of open streams.
// It replaces process wide registries: every Camera is handed a Manager.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	backends map[string]Factory
	streams  map[string]*Stream
}

// NewManager creates a Manager without any backend registered.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		backends: make(map[string]Factory),
		streams:  make(map[string]*Stream),
	}
}

// Config returns the configuration passed to factories.
func (m *Manager) Config() Config {
	return m.cfg
}

// Register adds a backend under name.
func (m *Manager) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("backend needs a name and a factory")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backends[name]; ok {
		return fmt.Errorf("%w: %s", ErrBackendExists, name)
	}
	m.backends[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (m *Manager) Lookup(name string) (Factory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f, nil
}

// Backends returns the registered backend names in sorted order.
func (m *Manager) Backends() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.backends))
	for name := range m.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStream builds a stream for desc using the named backend. An empty backend
// name selects the backend named by desc.Library. The stream is tracked by the
// manager between a successful Open and Close.
func (m *Manager) NewStream(desc device.Descriptor, backend string, opts StreamOptions) (*Stream, error) {
	if backend == "" {
		backend = desc.Library
	}
	f, err := m.Lookup(backend)
	if err != nil {
		return nil, err
	}
	src, err := f(desc, m.cfg)
	if err != nil {
		return nil, err
	}

	s := NewStream(src, desc, opts)
	s.id = uuid.NewString()
	s.onOpen = m.track
	s.onClose = m.untrack
	return s, nil
}

// Streams returns the streams that are currently open.
func (m *Manager) Streams() []*Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		results = append(results, s)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].desc.Index < results[j].desc.Index
	})
	return results
}

// CloseAll closes every open stream.
func (m *Manager) CloseAll() error {
	var errs []error
	for _, s := range m.Streams() {
		if err := s.Close(); err != nil && !errors.Is(err, ErrNotOpen) {
			errs = append(errs, fmt.Errorf("%s: %w", s.desc.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) track(s *Stream) {
	m.mu.Lock()
	m.streams[s.id] = s
	m.mu.Unlock()
}

func (m *Manager) untrack(s *Stream) {
	m.mu.Lock()
	delete(m.streams, s.id)
	m.mu.Unlock()
}
