package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	sets     map[string]model.PointSet // id -> point set
	setOrder []string                  // insertion order for stable listing
	plans    map[string]model.Plan     // id -> plan
	planOrd  []string
	byFp     map[string]string // fingerprint -> latest plan id
}

func NewMemory() *Memory {
	return &Memory{
		sets:  map[string]model.PointSet{},
		plans: map[string]model.Plan{},
		byFp:  map[string]string{},
	}
}

func (m *Memory) CreatePointSet(_ context.Context, in model.PointSetIn) (model.PointSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := model.PointSet{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Points:    append([]model.Waypoint(nil), in.Points...),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	m.sets[ps.ID] = ps
	m.setOrder = append(m.setOrder, ps.ID)
	return ps, nil
}

func (m *Memory) GetPointSet(_ context.Context, id string) (model.PointSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.sets[id]
	if !ok {
		return model.PointSet{}, ErrNotFound
	}
	return ps, nil
}

func (m *Memory) ListPointSets(_ context.Context, cursor string, limit int) ([]model.PointSet, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pageByID(m.setOrder, m.sets, cursor, limit)
}

func (m *Memory) DeletePointSet(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sets[id]; !ok {
		return ErrNotFound
	}
	delete(m.sets, id)
	for i, sid := range m.setOrder {
		if sid == id {
			m.setOrder = append(m.setOrder[:i], m.setOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) SavePlan(_ context.Context, p model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.plans[p.ID] = p
	m.planOrd = append(m.planOrd, p.ID)
	if p.Fingerprint != "" {
		m.byFp[p.Fingerprint] = p.ID
	}
	return p, nil
}

func (m *Memory) GetPlan(_ context.Context, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(_ context.Context, cursor string, limit int) ([]model.Plan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pageByID(m.planOrd, m.plans, cursor, limit)
}

func (m *Memory) FindPlanByFingerprint(_ context.Context, fp string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byFp[fp]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return m.plans[id], nil
}

// pageByID walks ids in insertion order, resuming after cursor.
func pageByID[T any](ids []string, byID map[string]T, cursor string, limit int) ([]T, string, error) {
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		found := false
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				found = true
				break
			}
		}
		// An unknown or stale cursor yields an empty page rather than
		// restarting the scan from the top.
		if !found {
			return []T{}, "", nil
		}
	}
	out := make([]T, 0, limit)
	next := ""
	for i := start; i < len(ids); i++ {
		if len(out) == limit {
			next = ids[i-1]
			break
		}
		out = append(out, byID[ids[i]])
	}
	return out, next, nil
}
