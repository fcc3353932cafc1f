package wallet

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/party"
)

// FanOut drives handle concurrently across every Party in parties,
// mirroring the example pack's errgroup-based per-party round dispatch
// for simulated multi-party protocols, and collects whatever frames
// each invocation produces. If any invocation errors, FanOut returns
// the first error encountered and discards partial output.
func FanOut(parties map[party.ID]*Party, handle func(*Party) ([]frame.Frame, error)) ([]frame.Frame, error) {
	var (
		mu  sync.Mutex
		out []frame.Frame
		eg  errgroup.Group
	)
	for _, p := range parties {
		p := p
		eg.Go(func() error {
			produced, err := handle(p)
			if err != nil {
				return err
			}
			if len(produced) == 0 {
				return nil
			}
			mu.Lock()
			out = append(out, produced...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
