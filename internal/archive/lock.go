package archive

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logvault/logvault/pkg/types"
)

// Locker serializes archival runs per (type, date). Locks carry a TTL so a
// crashed run cannot wedge a key forever; a manual re-run after the TTL
// elapses proceeds and relies on the job's skip-if-exists check for safety.
type Locker struct {
	mu   sync.Mutex
	held map[string]lockEntry
}

type lockEntry struct {
	owner   string
	expires time.Time
}

// NewLocker creates an empty lock registry.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]lockEntry)}
}

// lockKey derives the registry key for one (type, date).
func lockKey(logType types.LogType, date types.Date) string {
	return fmt.Sprintf("%s/%s", logType, date)
}

// TryAcquire attempts to take the lock for (type, date). On success it
// returns a release func and true; if the lock is held and unexpired it
// returns false.
func (l *Locker) TryAcquire(logType types.LogType, date types.Date, ttl time.Duration) (func(), bool) {
	key := lockKey(logType, date)
	owner := uuid.New().String()
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, false
	}

	l.held[key] = lockEntry{owner: owner, expires: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Only the acquiring run may release; an expired-and-reacquired
		// lock belongs to the newer owner.
		if entry, ok := l.held[key]; ok && entry.owner == owner {
			delete(l.held, key)
		}
	}
	return release, true
}

// Held reports whether an unexpired lock exists for (type, date).
func (l *Locker) Held(logType types.LogType, date types.Date) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.held[lockKey(logType, date)]
	return ok && time.Now().Before(entry.expires)
}
