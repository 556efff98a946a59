package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// Sortable returns a ULID; ledger ids sort by checkout time.
func Sortable() string {
	return SortableAt(time.Now())
}

// SortableAt returns a ULID stamped with t.
func SortableAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// New returns a random UUID string for directory rows and sessions.
func New() string { return uuid.NewString() }
