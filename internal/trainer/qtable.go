package trainer

import (
	"sync"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// QTable maps a packed grid to one value per direction. Unseen states read
// as all zeros.
type QTable struct {
	mu     sync.RWMutex
	values map[uint64][core.NumDirections]float64
}

func NewQTable() *QTable {
	return &QTable{values: make(map[uint64][core.NumDirections]float64)}
}

// Values returns the action values for key.
func (q *QTable) Values(key uint64) [core.NumDirections]float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.values[key]
}

// Max returns the largest action value for key.
func (q *QTable) Max(key uint64) float64 {
	values := q.Values(key)
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// Best returns the available direction with the highest value. Ties go to
// the later direction. ok is false when available is empty.
func (q *QTable) Best(key uint64, available []core.Direction) (d core.Direction, ok bool) {
	if len(available) == 0 {
		return 0, false
	}
	values := q.Values(key)
	d = available[0]
	for _, a := range available[1:] {
		if values[a] >= values[d] {
			d = a
		}
	}
	return d, true
}

// Update moves Q(key, a) toward target by learningRate and returns the new value.
func (q *QTable) Update(key uint64, a core.Direction, target, learningRate float64) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	values := q.values[key]
	values[a] += learningRate * (target - values[a])
	q.values[key] = values
	return values[a]
}

// Len returns the number of states that have been updated at least once.
func (q *QTable) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.values)
}
