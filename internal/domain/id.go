package domain

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idGen mints collision-resistant, lexically sortable entity ids.
// A single monotonic entropy source is shared behind a mutex so that
// ids minted within the same millisecond still sort in creation order.
var idGen = struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}{
	entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

// NewID returns a new ULID string prefixed with the given entity tag,
// e.g. NewID("auc") → "auc_01J3ZK...". Safe for concurrent use.
func NewID(prefix string) string {
	idGen.mu.Lock()
	id := ulid.MustNew(ulid.Now(), idGen.entropy)
	idGen.mu.Unlock()
	return prefix + "_" + id.String()
}
