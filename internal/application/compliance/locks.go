package compliance

import "sync"

// saleLocks entrega un mutex por id de venta. Una entrada vive solo mientras
// alguien lo tiene o lo espera.
type saleLocks struct {
	mu      sync.Mutex
	entries map[string]*saleLock
}

type saleLock struct {
	mu   sync.Mutex
	refs int
}

func newSaleLocks() *saleLocks {
	return &saleLocks{entries: make(map[string]*saleLock)}
}

// lock bloquea hasta que saleID quede libre y devuelve la función que lo libera.
func (l *saleLocks) lock(saleID string) func() {
	l.mu.Lock()
	e, ok := l.entries[saleID]
	if !ok {
		e = &saleLock{}
		l.entries[saleID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, saleID)
		}
		l.mu.Unlock()
	}
}

func (l *saleLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
