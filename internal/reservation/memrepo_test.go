package reservation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/court-reservation/internal/interval"
)

// memRepository is an in-memory Repository with the same locking contract as
// the Postgres one: one mutex per court serialises check-then-insert, writes
// staged inside a transaction become visible only when fn succeeds.
type memRepository struct {
	mu   sync.Mutex
	rows map[string]*Reservation

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	// failCreate, when set, can reject an insert with an arbitrary error.
	failCreate func(r *Reservation) error
}

func newMemRepository() *memRepository {
	return &memRepository{
		rows:  make(map[string]*Reservation),
		locks: make(map[string]*sync.Mutex),
	}
}

func clone(r *Reservation) *Reservation {
	c := *r
	return &c
}

func (m *memRepository) seed(r *Reservation) *Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.DurationHours == 0 {
		r.DurationHours = r.Interval().Hours()
	}
	m.rows[r.ID] = clone(r)
	return r
}

func (m *memRepository) resourceLock(resourceID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[resourceID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[resourceID] = l
	}
	return l
}

func (m *memRepository) GetByID(_ context.Context, id string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

func (m *memRepository) List(_ context.Context, filter Filter) ([]*Reservation, int, error) {
	m.mu.Lock()
	var items []*Reservation
	for _, r := range m.rows {
		if filter.ResourceID != "" && r.ResourceID != filter.ResourceID {
			continue
		}
		if filter.RequesterID != "" && r.RequesterID != filter.RequesterID {
			continue
		}
		if filter.Status != "" && string(r.Status) != filter.Status {
			continue
		}
		if filter.StartTime != nil && !r.EndTime.After(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && !r.StartTime.Before(*filter.EndTime) {
			continue
		}
		items = append(items, clone(r))
	}
	m.mu.Unlock()

	sortByStart(items)
	total := len(items)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	from := min((filter.Page-1)*filter.PageSize, total)
	to := min(from+filter.PageSize, total)
	return items[from:to], total, nil
}

func (m *memRepository) ListInWindow(_ context.Context, q WindowQuery) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Reservation
	for _, r := range m.rows {
		if r.ResourceID != q.ResourceID || !r.Interval().Overlaps(q.Window) {
			continue
		}
		if q.ActiveOnly && !r.Status.IsActive() {
			continue
		}
		if q.ExcludeID != "" && r.ID == q.ExcludeID {
			continue
		}
		items = append(items, clone(r))
	}
	sortByStart(items)
	return items, nil
}

func (m *memRepository) WithResourceLock(_ context.Context, resourceID string, fn func(tx Tx) error) error {
	l := m.resourceLock(resourceID)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{repo: m}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *memRepository) WithReservation(ctx context.Context, id string, fn func(tx Tx, r *Reservation) error) error {
	current, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	l := m.resourceLock(current.ResourceID)
	l.Lock()
	defer l.Unlock()

	// Re-read under the lock, as SELECT ... FOR UPDATE would.
	locked, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	tx := &memTx{repo: m}
	if err := fn(tx, locked); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	repo   *memRepository
	staged []*Reservation
}

func (t *memTx) HasOverlap(_ context.Context, resourceID string, iv interval.Interval, excludeID string) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, r := range t.repo.rows {
		if r.ResourceID == resourceID && blocks(r, iv, excludeID) {
			return true, nil
		}
	}
	for _, r := range t.staged {
		if r.ResourceID == resourceID && blocks(r, iv, excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Create(_ context.Context, r *Reservation) error {
	if t.repo.failCreate != nil {
		if err := t.repo.failCreate(r); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	r.ID = uuid.NewString()
	r.CreatedAt = now
	r.UpdatedAt = now
	t.staged = append(t.staged, clone(r))
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, r *Reservation, from Status) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	stored, ok := t.repo.rows[r.ID]
	if !ok || stored.Status != from {
		return ErrInvalidTransition
	}
	r.UpdatedAt = time.Now().UTC()
	t.staged = append(t.staged, clone(r))
	return nil
}

func (t *memTx) commit() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, r := range t.staged {
		t.repo.rows[r.ID] = r
	}
}

func sortByStart(items []*Reservation) {
	slices.SortFunc(items, func(a, b *Reservation) int {
		return a.StartTime.Compare(b.StartTime)
	})
}
