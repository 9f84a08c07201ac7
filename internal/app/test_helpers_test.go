package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/bark/internal/domain"
	"github.com/example/bark/internal/ports/secondary"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.Add(time.Duration(n) * 24 * time.Hour) }

// ============================================================================
// Mock Implementations
// ============================================================================

// mockStore is an in-memory job and ledger store shared by the repository
// mocks so the mock transactor can snapshot and restore both together.
type mockStore struct {
	mu          sync.Mutex
	jobs        map[string]*secondary.JobRecord
	transitions []*secondary.TransitionRecord // insertion order
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[string]*secondary.JobRecord)}
}

func (s *mockStore) snapshot() (map[string]*secondary.JobRecord, []*secondary.TransitionRecord) {
	jobs := make(map[string]*secondary.JobRecord, len(s.jobs))
	for id, j := range s.jobs {
		c := *j
		jobs[id] = &c
	}
	transitions := make([]*secondary.TransitionRecord, len(s.transitions))
	for i, r := range s.transitions {
		c := *r
		transitions[i] = &c
	}
	return jobs, transitions
}

// mockJobRepository implements secondary.JobRepository for testing.
type mockJobRepository struct {
	store          *mockStore
	updatePhaseErr error
	countErr       error
}

func (m *mockJobRepository) Create(ctx context.Context, job *secondary.JobRecord) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	c := *job
	m.store.jobs[job.ID] = &c
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id string) (*secondary.JobRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	j, ok := m.store.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	c := *j
	return &c, nil
}

func (m *mockJobRepository) List(ctx context.Context, filters secondary.JobFilters) ([]*secondary.JobRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*secondary.JobRecord
	for _, j := range m.store.jobs {
		if len(filters.Phases) > 0 && !contains(filters.Phases, j.Phase) {
			continue
		}
		if filters.Insurer != "" && j.Dimensions.Insurer != filters.Insurer {
			continue
		}
		c := *j
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (m *mockJobRepository) UpdatePhase(ctx context.Context, id, phase string, updatedAt time.Time) error {
	if m.updatePhaseErr != nil {
		return m.updatePhaseErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	j, ok := m.store.jobs[id]
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	j.Phase = phase
	j.UpdatedAt = updatedAt
	return nil
}

func (m *mockJobRepository) UpdateDimensions(ctx context.Context, id string, dims secondary.DimensionsRecord) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	j, ok := m.store.jobs[id]
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	j.Dimensions = dims
	return nil
}

func (m *mockJobRepository) Dimensions(ctx context.Context, jobIDs []string) (map[string]secondary.DimensionsRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := make(map[string]secondary.DimensionsRecord)
	for _, id := range jobIDs {
		if j, ok := m.store.jobs[id]; ok {
			out[id] = j.Dimensions
		}
	}
	return out, nil
}

func (m *mockJobRepository) CountByPhase(ctx context.Context, q secondary.PhaseCountQuery) (map[string]secondary.PhaseCount, error) {
	if m.countErr != nil {
		return nil, m.countErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := make(map[string]secondary.PhaseCount)
	for _, j := range m.store.jobs {
		if (!q.UpdatedFrom.IsZero() && j.UpdatedAt.Before(q.UpdatedFrom)) || (!q.UpdatedTo.IsZero() && !j.UpdatedAt.Before(q.UpdatedTo)) {
			continue
		}
		c := out[j.Phase]
		c.Jobs++
		c.Amount += j.Dimensions.Amount
		out[j.Phase] = c
	}
	return out, nil
}

func (m *mockJobRepository) GetNextID(ctx context.Context) (string, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return fmt.Sprintf("JOB-%04d", len(m.store.jobs)+1), nil
}

// mockTransitionRepository implements secondary.TransitionRepository for testing.
type mockTransitionRepository struct {
	store     *mockStore
	createErr error
}

// ordered returns records sorted by timestamp, ties by insertion order.
func (m *mockTransitionRepository) ordered(jobID string) []*secondary.TransitionRecord {
	var out []*secondary.TransitionRecord
	for _, r := range m.store.transitions {
		if jobID == "" || r.JobID == jobID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (m *mockTransitionRepository) Create(ctx context.Context, rec *secondary.TransitionRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.jobs[rec.JobID]; !ok {
		return fmt.Errorf("FOREIGN KEY constraint failed")
	}
	c := *rec
	m.store.transitions = append(m.store.transitions, &c)
	return nil
}

func (m *mockTransitionRepository) GetByID(ctx context.Context, id string) (*secondary.TransitionRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, r := range m.store.transitions {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: transition %s", domain.ErrNotFound, id)
}

func (m *mockTransitionRepository) ListByJob(ctx context.Context, jobID string) ([]*secondary.TransitionRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.ordered(jobID), nil
}

func (m *mockTransitionRepository) Tail(ctx context.Context, jobID string) (*secondary.TransitionRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	records := m.ordered(jobID)
	if len(records) == 0 {
		return nil, nil
	}
	return records[len(records)-1], nil
}

func (m *mockTransitionRepository) UpdateTimestamp(ctx context.Context, id string, ts time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, r := range m.store.transitions {
		if r.ID == id {
			r.Timestamp = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: transition %s", domain.ErrNotFound, id)
}

func (m *mockTransitionRepository) FirstOccurrences(ctx context.Context, q secondary.OccurrenceQuery) (map[string]time.Time, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	first := make(map[string]time.Time)
	for _, r := range m.store.transitions {
		if !contains(q.Phases, r.NewPhase) {
			continue
		}
		if q.JobIDs != nil && !contains(q.JobIDs, r.JobID) {
			continue
		}
		if cur, ok := first[r.JobID]; !ok || r.Timestamp.Before(cur) {
			first[r.JobID] = r.Timestamp
		}
	}
	for id, ts := range first {
		if (!q.Start.IsZero() && ts.Before(q.Start)) || (!q.End.IsZero() && !ts.Before(q.End)) {
			delete(first, id)
		}
	}
	return first, nil
}

func (m *mockTransitionRepository) ListWithDuration(ctx context.Context, start, end time.Time) ([]*secondary.TransitionRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*secondary.TransitionRecord
	for _, r := range m.ordered("") {
		if r.Duration != nil && !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockTransitionRepository) GetNextID(ctx context.Context) (string, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return fmt.Sprintf("TR-%04d", len(m.store.transitions)+1), nil
}

// mockTransactor restores the store when fn fails, like a rollback.
type mockTransactor struct {
	store *mockStore
	calls int
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	m.store.mu.Lock()
	jobs, transitions := m.store.snapshot()
	m.store.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.store.mu.Lock()
		m.store.jobs, m.store.transitions = jobs, transitions
		m.store.mu.Unlock()
		return err
	}
	return nil
}

// mockAuthorizer grants correction rights to a fixed set of actors.
type mockAuthorizer struct {
	editors map[string]bool
	err     error
}

func (m *mockAuthorizer) CanCorrectHistory(ctx context.Context, actorID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.editors[actorID], nil
}

// mockClock returns a settable instant.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []secondary.TransitionEvent
	err    error
}

func (m *mockPublisher) PublishTransition(ctx context.Context, evt secondary.TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

// mockMetrics counts calls.
type mockMetrics struct {
	mu          sync.Mutex
	transitions int
	applied     int
	rejected    map[string]int
	queries     map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{rejected: make(map[string]int), queries: make(map[string]int)}
}

func (m *mockMetrics) TransitionRecorded(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions++
}

func (m *mockMetrics) CorrectionApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied++
}

func (m *mockMetrics) CorrectionRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *mockMetrics) QueryServed(name string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[name]++
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ============================================================================
// Test Fixture
// ============================================================================

type ledgerFixture struct {
	service     *LedgerServiceImpl
	store       *mockStore
	jobs        *mockJobRepository
	transitions *mockTransitionRepository
	tx          *mockTransactor
	clock       *mockClock
	publisher   *mockPublisher
	metrics     *mockMetrics
}

func newLedgerFixture() *ledgerFixture {
	store := newMockStore()
	f := &ledgerFixture{
		store:       store,
		jobs:        &mockJobRepository{store: store},
		transitions: &mockTransitionRepository{store: store},
		tx:          &mockTransactor{store: store},
		clock:       &mockClock{now: t0},
		publisher:   &mockPublisher{},
		metrics:     newMockMetrics(),
	}
	f.service = NewLedgerService(LedgerDeps{
		Jobs:        f.jobs,
		Transitions: f.transitions,
		Tx:          f.tx,
		Authorizer:  &mockAuthorizer{editors: map[string]bool{"admin": true}},
		Clock:       f.clock,
		Publisher:   f.publisher,
		Metrics:     f.metrics,
		Location:    time.UTC,
	})
	return f
}
