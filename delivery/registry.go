package delivery

import "sync"

/* Registry is the in-memory delivery store owned by the Client
 * Insertion-ordered and append-only: records are updated in place but
 * never removed for the lifetime of the engine. All mutations happen
 * under the write lock, so a reader can never observe a status
 * regression on a record.
 */
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Delivery
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Delivery),
	}
}

// Add registers a new delivery record
func (r *Registry) Add(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := d.clone()
	r.records[d.ID] = &rec
	r.order = append(r.order, d.ID)
}

/* Update applies fn to the stored record under the write lock and
 * returns a snapshot of the result. Terminal records are left untouched.
 */
func (r *Registry) Update(id string, fn func(*Delivery)) (Delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return Delivery{}, false
	}
	if !rec.Status.IsFinal() {
		fn(rec)
	}
	return rec.clone(), true
}

// Get returns a snapshot of the delivery with the given ID
func (r *Registry) Get(id string) (Delivery, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return Delivery{}, false
	}
	return rec.clone(), true
}

// All returns snapshots of every delivery in insertion order
func (r *Registry) All() []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Delivery, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.records[id].clone())
	}
	return result
}

// ByStatus returns snapshots of all deliveries in the given status,
// in insertion order
func (r *Registry) ByStatus(status Status) []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Delivery
	for _, id := range r.order {
		if rec := r.records[id]; rec.Status == status {
			result = append(result, rec.clone())
		}
	}
	return result
}

// Stats returns the count of deliveries per status, including zero-counts
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int, len(Statuses()))
	for _, s := range Statuses() {
		stats[s.String()] = 0
	}
	for _, rec := range r.records {
		stats[rec.Status.String()]++
	}
	return stats
}

// Len returns the number of registered deliveries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
