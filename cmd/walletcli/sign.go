package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/keyshare"
	"github.com/bitshard-io/bitshard-sdk/party"
	"github.com/bitshard-io/bitshard-sdk/recovery"
	"github.com/bitshard-io/bitshard-sdk/sign"
)

var (
	signDir     string
	signersCSV  string
	signMessage string
	signDigest  string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Run a t-of-n signature over keyshares written by keygen",
	RunE:  runSign,
}

func init() {
	signCmd.Flags().StringVarP(&signDir, "dir", "d", "./walletcli-shares", "directory containing keyshare files")
	signCmd.Flags().StringVarP(&signersCSV, "signers", "s", "", "comma-separated signer party ids (required)")
	signCmd.Flags().StringVarP(&signMessage, "message", "m", "", "message to hash and sign")
	signCmd.Flags().StringVar(&signDigest, "digest", "", "32-byte digest to sign, hex encoded (alternative to --message)")
	signCmd.MarkFlagRequired("signers")
}

func runSign(cmd *cobra.Command, args []string) error {
	signerIDs, err := parseSignerIDs(signersCSV)
	if err != nil {
		return err
	}

	digest, err := resolveDigest(signMessage, signDigest)
	if err != nil {
		return err
	}

	shares := make(map[party.ID]*keyshare.Keyshare, len(signerIDs))
	for _, id := range signerIDs {
		path := filepath.Join(signDir, fmt.Sprintf("share-%d.cbor", id))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		ks, err := keyshare.Deserialize(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		shares[id] = ks
	}

	signers := party.IDSlice(signerIDs)
	sessions := make(map[party.ID]*sign.Session, len(signerIDs))
	for _, id := range signerIDs {
		s, err := sign.New(shares[id], sign.IdentityDerivationPath, signers)
		if err != nil {
			return err
		}
		sessions[id] = s
	}

	fmt.Printf("signing digest %x with signers %v...\n", digest, signerIDs)

	r1 := make([]frame.Frame, 0)
	for _, s := range sessions {
		f, err := s.FirstMessage()
		if err != nil {
			return err
		}
		r1 = append(r1, f)
		r1 = append(r1, s.PendingP2P()...)
	}

	r2, err := fanOutSign(sessions, r1)
	if err != nil {
		return err
	}
	r3, err := fanOutSign(sessions, r2)
	if err != nil {
		return err
	}
	if _, err := fanOutSign(sessions, r3); err != nil {
		return err
	}

	online := make([]frame.Frame, 0, len(sessions))
	for _, s := range sessions {
		f, err := s.LastMessage(digest)
		if err != nil {
			return err
		}
		online = append(online, f)
	}

	var rBytes, sBytes []byte
	for _, s := range sessions {
		r, sig, err := s.Combine(online)
		if err != nil {
			return err
		}
		rBytes, sBytes = r.Bytes(), sig.Bytes()
	}

	var pubKey []byte
	for _, ks := range shares {
		pubKey = ks.PublicKey
		break
	}
	rScalar, err := curve.ScalarFromBytes(rBytes)
	if err != nil {
		return err
	}
	sScalar, err := curve.ScalarFromBytes(sBytes)
	if err != nil {
		return err
	}
	v, err := recovery.Resolve(rScalar, sScalar, digest, pubKey)
	if err != nil {
		return fmt.Errorf("resolving recovery id: %w", err)
	}

	fmt.Printf("r: %x\n", rBytes)
	fmt.Printf("s: %x\n", sBytes)
	fmt.Printf("v: %d\n", v)
	return nil
}

func fanOutSign(sessions map[party.ID]*sign.Session, frames []frame.Frame) ([]frame.Frame, error) {
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

func parseSignerIDs(csv string) ([]party.ID, error) {
	parts := strings.Split(csv, ",")
	out := make([]party.ID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid party id %q: %w", p, err)
		}
		out = append(out, party.ID(n))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--signers must list at least one party id")
	}
	return out, nil
}

func resolveDigest(message, digestHex string) ([]byte, error) {
	if digestHex != "" {
		d, err := hex.DecodeString(digestHex)
		if err != nil {
			return nil, fmt.Errorf("decoding --digest: %w", err)
		}
		if len(d) != 32 {
			return nil, fmt.Errorf("--digest must be 32 bytes, got %d", len(d))
		}
		return d, nil
	}
	if message == "" {
		return nil, fmt.Errorf("one of --message or --digest is required")
	}
	sum := sha256.Sum256([]byte(message))
	return sum[:], nil
}
