package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/keygen"
	"github.com/bitshard-io/bitshard-sdk/party"
)

var (
	keygenParties   int
	keygenThreshold int
	keygenOutDir    string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Run an n-of-t key generation and write one keyshare file per party",
	RunE:  runKeygen,
}

func init() {
	keygenCmd.Flags().IntVarP(&keygenParties, "parties", "n", 3, "total number of parties")
	keygenCmd.Flags().IntVarP(&keygenThreshold, "threshold", "t", 2, "signing threshold")
	keygenCmd.Flags().StringVarP(&keygenOutDir, "out-dir", "o", "./walletcli-shares", "directory to write keyshare files into")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	ids := make([]party.ID, keygenParties)
	for i := range ids {
		ids[i] = party.ID(i)
	}
	cfg, err := party.NewConfig(keygenParties, keygenThreshold, ids...)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sessions := make(map[party.ID]*keygen.Session, keygenParties)
	for _, id := range ids {
		s, err := keygen.New(cfg, id)
		if err != nil {
			return err
		}
		sessions[id] = s
	}

	fmt.Printf("running %d-of-%d keygen...\n", keygenThreshold, keygenParties)

	r1 := make([]frame.Frame, 0, len(sessions))
	for _, s := range sessions {
		f, err := s.FirstMessage()
		if err != nil {
			return err
		}
		r1 = append(r1, f)
	}

	r2, err := fanOutKeygen(sessions, r1)
	if err != nil {
		return err
	}

	ccs := make(map[party.ID]keygen.RoundCommitments, len(sessions))
	for id, s := range sessions {
		cc, err := s.ChainCodeCommitment()
		if err != nil {
			return err
		}
		ccs[id] = cc
	}

	r3 := make([]frame.Frame, 0)
	for id, s := range sessions {
		out, err := s.Handle(r2, ccs[id])
		if err != nil {
			return err
		}
		r3 = append(r3, out...)
	}

	r4, err := fanOutKeygen(sessions, r3)
	if err != nil {
		return err
	}
	if _, err := fanOutKeygen(sessions, r4); err != nil {
		return err
	}

	if err := os.MkdirAll(keygenOutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var publicKey []byte
	for id, s := range sessions {
		ks, err := s.Finalize()
		if err != nil {
			return err
		}
		publicKey = ks.PublicKey
		data, err := ks.Serialize()
		if err != nil {
			return err
		}
		path := filepath.Join(keygenOutDir, fmt.Sprintf("share-%d.cbor", id))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("wrote %s\n", path)
	}

	fmt.Printf("public key: %x\n", publicKey)
	return nil
}

// fanOutKeygen dispatches frames to every session concurrently and
// collects the frames each produces in response, the same way the
// example pack drives independent per-party protocol steps with an
// errgroup.
func fanOutKeygen(sessions map[party.ID]*keygen.Session, frames []frame.Frame) ([]frame.Frame, error) {
	var (
		mu  sync.Mutex
		out []frame.Frame
		eg  errgroup.Group
	)
	for _, s := range sessions {
		s := s
		eg.Go(func() error {
			produced, err := s.Handle(frames)
			if err != nil {
				return err
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
