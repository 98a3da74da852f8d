package account

import "sync"

// lockTable hands out one RWMutex per user id. Entries are never evicted;
// the table grows with the number of distinct accounts.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.RWMutex)}
}

func (t *lockTable) get(userID string) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[userID]
	if !ok {
		l = &sync.RWMutex{}
		t.locks[userID] = l
	}
	return l
}
