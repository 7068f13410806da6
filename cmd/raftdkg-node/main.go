// Command raftdkg-node is a demonstration harness: it spins up a small
// cluster of in-process peers over an in-memory transport, runs a DKG
// session to derive a joint public key, then elects a Raft leader and
// submits one client entry so committed delivery can be observed end to
// end. It is not a production entrypoint: the real TCP transport and
// configuration loading live outside this repository.
package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/quorumkit/raftdkg/dkg"
	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/node"
)

// demoSafePrime is a fixed 128-bit safe prime (p = 2q+1, q prime) used as
// the demo group's modulus. Production deployments would instead use a
// vetted standardized MODP group; this constant only needs to be large
// enough to make discrete logs infeasible to brute force in a demo run.
const demoSafePrime = "B7E151629AA5C8C7BE22E8C47CFC84B7"

type loggingSink struct {
	id int
}

func (s loggingSink) Deliver(payload []byte) {
	log.Info().Int("node", s.id).Str("payload", string(payload)).Msg("raftdkg: committed entry delivered")
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	session := c.String("session")

	prime, ok := new(big.Int).SetString(demoSafePrime, 16)
	if !ok {
		return fmt.Errorf("raftdkg-node: failed to parse built-in group prime")
	}

	cfg := node.Config{
		SelfID:    0,
		Peers:     strings.Split(c.String("peers"), ","),
		Debug:     c.Bool("debug"),
		Prime:     prime,
		Generator: big.NewInt(2),
	}
	n := cfg.PeerCount()
	if n < 1 {
		return fmt.Errorf("raftdkg-node: --peers must name at least one peer")
	}

	ctx, err := group.NewContext(cfg.Prime, cfg.Generator)
	if err != nil {
		return fmt.Errorf("raftdkg-node: %w", err)
	}

	hub := node.NewInMemoryHub(n, 256)
	peers := make([]*node.Peer, n)
	for i := 0; i < n; i++ {
		peers[i] = node.NewPeer(i, n, ctx, hub.Transport(i), loggingSink{id: i})
	}

	for i := 0; i < n; i++ {
		i := i
		go func() {
			for payload := range hub.Inbox(i) {
				peers[i].Dispatch(-1, payload)
			}
		}()
	}

	type dkgResult struct {
		id    int
		share *dkg.KeyShare
		err   error
	}
	results := make(chan dkgResult, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			share, err := peers[i].StartDKG(session)
			results <- dkgResult{id: i, share: share, err: err}
		}()
	}
	keyShares := make([]*dkg.KeyShare, n)
	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			return fmt.Errorf("raftdkg-node: DKG failed on node %d: %w", r.id, r.err)
		}
		keyShares[r.id] = r.share
	}
	log.Info().Msg("raftdkg: DKG session complete, joint public key agreed")

	// Threshold-decrypt a demo message so the share computation is
	// observable end to end.
	message := ctx.Generator().Pow(big.NewInt(42))
	ct, _, err := dkg.Encrypt(ctx, keyShares[0].Y, message)
	if err != nil {
		return fmt.Errorf("raftdkg-node: %w", err)
	}
	partials := make([]group.Element, 0, n)
	for i, ks := range keyShares {
		partial, proof, err := ks.DecryptionShare(ctx, ct)
		if err != nil {
			return fmt.Errorf("raftdkg-node: %w", err)
		}
		if !dkg.VerifyDecryptionShare(ctx, ct, ks.Yi, partial, proof) {
			return fmt.Errorf("raftdkg-node: decryption share of node %d failed verification", i)
		}
		partials = append(partials, partial)
	}
	recovered := dkg.Recover(ctx, ct, partials)
	log.Info().Bool("match", recovered.Equal(message)).
		Msg("raftdkg: threshold decryption of demo message complete")

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, p := range peers {
					p.Raft.Tick()
				}
			case <-stop:
				return
			}
		}
	}()

	time.Sleep(500 * time.Millisecond)
	peers[0].Raft.Submit([]byte("hello from raftdkg-node"))
	time.Sleep(500 * time.Millisecond)
	close(stop)

	return nil
}

func main() {
	app := &cli.App{
		Name:  "raftdkg-node",
		Usage: "demonstration harness for the Raft + DKG core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "peers",
				Value: "127.0.0.1:7001,127.0.0.1:7002,127.0.0.1:7003",
				Usage: "ordered comma-separated peer list; index implies peer id",
			},
			&cli.StringFlag{Name: "session", Value: "demo-session", Usage: "DKG session id"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("raftdkg-node: fatal error")
		os.Exit(1)
	}
}
