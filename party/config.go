package party

import (
	"fmt"

	"github.com/bitshard-io/bitshard-sdk/internal/errs"
)

// Config is the threshold configuration a keygen or sign session is
// built over: the party set and threshold. Every invariant is checked
// eagerly at construction rather than discovered mid-protocol.
type Config struct {
	n   int
	t   int
	ids IDSlice
}

// NewConfig validates and constructs a ThresholdConfig: n total parties
// (n >= 2), threshold t (2 <= t <= n), and exactly n distinct ids.
func NewConfig(n, t int, ids ...ID) (*Config, error) {
	if n < 2 {
		return nil, fmt.Errorf("party: n=%d must be >= 2: %w", n, errs.ErrConfigInvalid)
	}
	if t < 2 || t > n {
		return nil, fmt.Errorf("party: threshold t=%d must satisfy 2<=t<=n=%d: %w", t, n, errs.ErrConfigInvalid)
	}
	if len(ids) != n {
		return nil, fmt.Errorf("party: got %d ids, want n=%d: %w", len(ids), n, errs.ErrConfigInvalid)
	}
	seen := make(map[ID]struct{}, n)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("party: duplicate id %d: %w", id, errs.ErrPartyIDDuplicate)
		}
		seen[id] = struct{}{}
	}
	cp := make(IDSlice, n)
	copy(cp, ids)
	return &Config{n: n, t: t, ids: cp.Sorted()}, nil
}

// N returns the total party count.
func (c *Config) N() int { return c.n }

// T returns the signing threshold.
func (c *Config) T() int { return c.t }

// IDs returns a sorted copy of the configured party ids.
func (c *Config) IDs() IDSlice {
	out := make(IDSlice, len(c.ids))
	copy(out, c.ids)
	return out
}

// Has reports whether id is a member of this configuration.
func (c *Config) Has(id ID) bool {
	return c.ids.Contains(id)
}

// Equal reports whether c and o describe the same (n, t, ids) triple.
func (c *Config) Equal(o *Config) bool {
	if o == nil || c.n != o.n || c.t != o.t || len(c.ids) != len(o.ids) {
		return false
	}
	for i := range c.ids {
		if c.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

// ValidateSubset checks that ids is a subset of c's members, of size
// exactly c.T(), with no duplicates, the shape a SignSession requires
// for its participant set.
func (c *Config) ValidateSubset(ids []ID) error {
	if len(ids) != c.t {
		return fmt.Errorf("party: signing subset has %d ids, want threshold %d: %w", len(ids), c.t, errs.ErrConfigInvalid)
	}
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("party: duplicate id %d in signing subset: %w", id, errs.ErrPartyIDDuplicate)
		}
		seen[id] = struct{}{}
		if !c.Has(id) {
			return fmt.Errorf("party: id %d not a member of this config: %w", id, errs.ErrPartyIDUnknown)
		}
	}
	return nil
}
