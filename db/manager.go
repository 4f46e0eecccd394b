package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

// Mode is the storage variant chosen at initialization.
type Mode int

const (
	ModeNone Mode = iota
	ModeReal
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeReal:
		return "real"
	case ModeFallback:
		return "fallback"
	}
	return "none"
}

// State is the connection lifecycle: uninitialized -> connecting -> ready -> closed.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "uninitialized"
}

// Options configure the primary database connection.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	Indexes        []IndexSpec
}

// Dialer opens the primary backend. It must respect ctx and verify liveness before returning.
type Dialer func(ctx context.Context, opts Options) (Backend, error)

// SeedFunc produces the documents the fallback store starts with, keyed by collection name.
type SeedFunc func() (map[string][]bson.M, error)

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithDialer replaces the MongoDB dialer.
func WithDialer(d Dialer) ManagerOption {
	return func(m *Manager) { m.dial = d }
}

// WithFallbackSeed sets the dataset loaded into the fallback store.
func WithFallbackSeed(seed SeedFunc) ManagerOption {
	return func(m *Manager) { m.seed = seed }
}

// Manager selects between the primary database and the in-memory fallback, once per
// initialization, and hands out collection handles from whichever was chosen.
// The chosen mode stays fixed until Close.
type Manager struct {
	opts Options
	log  zerolog.Logger
	dial Dialer
	seed SeedFunc

	mu      sync.Mutex
	state   State
	mode    Mode
	backend Backend
}

// NewManager returns an uninitialized manager.
func NewManager(opts Options, log zerolog.Logger, managerOpts ...ManagerOption) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	m := &Manager{
		opts: opts,
		log:  log.With().Str("component", "storage").Logger(),
		dial: dialMongo,
		seed: func() (map[string][]bson.M, error) { return nil, nil },
	}
	for _, o := range managerOpts {
		o(m)
	}
	return m
}

func dialMongo(ctx context.Context, opts Options) (Backend, error) {
	return DialMongo(ctx, opts.URI, opts.Database, opts.ConnectTimeout)
}

// Initialize connects to the primary database, falling back to the in-memory store when
// it is unreachable. It is idempotent and safe for concurrent callers; only one attempt runs.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) error {
	if m.state == StateReady {
		return nil
	}
	m.state = StateConnecting

	backend, err := m.connectPrimary(ctx)
	if err == nil {
		m.ready(backend, ModeReal)
		return nil
	}

	m.log.Warn().Err(err).Msg("primary database unavailable, switching to in-memory fallback")

	seed, err := m.seed()
	if err == nil {
		var fb *MemoryBackend
		fb, err = NewMemoryBackend(seed)
		if err == nil {
			m.ready(fb, ModeFallback)
			return nil
		}
	}

	m.state = StateUninitialized
	m.log.Error().Stack().Err(err).Msg("fallback store could not be constructed")
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// connectPrimary detaches from the caller's cancellation: the outcome is kept for
// every later caller, so a cancelled first request must not pin the fallback.
func (m *Manager) connectPrimary(ctx context.Context) (Backend, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ConnectTimeout)
	defer cancel()

	backend, err := m.dial(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	if len(m.opts.Indexes) > 0 {
		if err := backend.EnsureIndexes(ctx, m.opts.Indexes); err != nil {
			m.log.Warn().Err(err).Msg("failed to create indexes")
		}
	}
	return backend, nil
}

func (m *Manager) ready(backend Backend, mode Mode) {
	m.backend = backend
	m.mode = mode
	m.state = StateReady
	m.log.Info().Str("mode", mode.String()).Str("database", m.opts.Database).Msg("storage backend selected")
}

// active returns the backend, initializing on first use.
func (m *Manager) active(ctx context.Context) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.initializeLocked(ctx); err != nil {
		return nil, err
	}
	return m.backend, nil
}

// Collection returns a handle on the named collection of the active backend.
func (m *Manager) Collection(ctx context.Context, name string) (Collection, error) {
	backend, err := m.active(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Collection(name), nil
}

// NewID creates an identifier in the active backend's format. A non-empty seed is validated and wrapped.
func (m *Manager) NewID(ctx context.Context, seed string) (ID, error) {
	backend, err := m.active(ctx)
	if err != nil {
		return ID{}, err
	}
	return backend.NewID(seed)
}

// ParseID parses s in the active backend's format.
func (m *Manager) ParseID(ctx context.Context, s string) (ID, error) {
	backend, err := m.active(ctx)
	if err != nil {
		return ID{}, err
	}
	return backend.ParseID(s)
}

// Ping checks the active backend. It does not initialize.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	backend := m.backend
	m.mu.Unlock()
	if backend == nil {
		return fmt.Errorf("%w: not initialized", ErrStorageUnavailable)
	}
	return backend.Ping(ctx)
}

func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close releases the primary connection, if any. A later Initialize starts over.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.backend != nil {
		err = m.backend.Close(ctx)
	}
	m.backend = nil
	m.mode = ModeNone
	m.state = StateClosed
	return err
}
