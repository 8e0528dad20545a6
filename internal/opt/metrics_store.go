package opt

import "sync"

// In-process record of solver metrics per plan, surfaced by the admin API.

var (
	mu    sync.Mutex
	store = map[string]Metrics{}
)

func RecordMetrics(planID string, m Metrics) {
	mu.Lock()
	store[planID] = m
	mu.Unlock()
}

func GetMetrics(planID string) (Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := store[planID]
	return m, ok
}
