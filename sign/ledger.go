package sign

import (
	"fmt"
	"sync"

	"github.com/bitshard-io/bitshard-sdk/internal/errs"
)

// spentLedger is the process-scoped set of spent session identifiers: a
// mutex-guarded set so a deserialized, resurrected SignSession cannot be
// replayed against a second digest even from a different session object
// in the same process.
var spentLedger = struct {
	mu    sync.Mutex
	spent map[[16]byte]struct{}
}{spent: make(map[[16]byte]struct{})}

// markSpent records id as spent, failing if it was already present.
func markSpent(id [16]byte) error {
	spentLedger.mu.Lock()
	defer spentLedger.mu.Unlock()
	if _, ok := spentLedger.spent[id]; ok {
		return fmt.Errorf("sign: session id already spent: %w", errs.ErrSessionSpent)
	}
	spentLedger.spent[id] = struct{}{}
	return nil
}
