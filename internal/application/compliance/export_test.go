package compliance

// HeldLocks indica cuántos bloqueos de venta sigue registrando m.
func HeldLocks(m *Manager) int { return m.locks.len() }
