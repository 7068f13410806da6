// Package dkg implements the per-session Pedersen-style commit/open
// distributed key generation coordinator: each node commits to a public
// share, opens it with a proof of knowledge, and every node independently
// derives the same joint public key from the set of openings that verify.
package dkg

import (
	"crypto/sha256"
	"math/big"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/quorumkit/raftdkg/codec"
	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/zkp"
)

// LocalShare is a node's private contribution to a DKG session before it
// has been broadcast.
type LocalShare struct {
	X          *big.Int
	Y          group.Element
	Proof      *zkp.DlogProof
	Commitment []byte
}

// NewLocalShare samples a fresh secret exponent and builds the public
// share, its knowledge proof, and its binding commitment.
func NewLocalShare(ctx *group.Context) (*LocalShare, error) {
	x, err := ctx.RandomExponent()
	if err != nil {
		return nil, xerrors.Errorf("dkg: sampling local share: %v", err)
	}
	g := ctx.Generator()
	y := g.Pow(x)

	proof, err := zkp.ProveDlog(ctx, g, y, x)
	if err != nil {
		return nil, xerrors.Errorf("dkg: proving local share: %v", err)
	}

	return &LocalShare{X: x, Y: y, Proof: proof, Commitment: hashElement(ctx, y)}, nil
}

func hashElement(ctx *group.Context, e group.Element) []byte {
	sum := sha256.Sum256(e.Bytes(ctx))
	return sum[:]
}

// KeyShare is the outcome of a completed DKG session.
type KeyShare struct {
	Y  group.Element // joint public key
	X  *big.Int      // this node's private exponent
	Yi group.Element // this node's own public share
}

// Broadcaster is the subset of the transport contract the coordinator
// needs to publish its commit and opening messages.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Coordinator runs one DKG session to completion. It is not reusable
// across sessions; construct a new Coordinator per session id.
type Coordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	ctx       *group.Context
	sessionID string
	selfID    int
	peerCount int

	local *LocalShare

	commitments map[int][]byte
	openings    map[int]*codec.KeygenOpeningMessage
}

// NewCoordinator builds a coordinator for sessionID, a group of peerCount
// nodes, running as node selfID.
func NewCoordinator(ctx *group.Context, sessionID string, selfID, peerCount int) *Coordinator {
	c := &Coordinator{
		ctx:         ctx,
		sessionID:   sessionID,
		selfID:      selfID,
		peerCount:   peerCount,
		commitments: make(map[int][]byte),
		openings:    make(map[int]*codec.KeygenOpeningMessage),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SessionID reports the session this coordinator is scoped to.
func (c *Coordinator) SessionID() string { return c.sessionID }

// HandleCommit records a KEYGEN_COMMIT from peerID. Redundant commits for a
// peer that already committed are ignored.
func (c *Coordinator) HandleCommit(peerID int, msg *codec.KeygenCommitMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.commitments[peerID]; exists {
		return
	}
	c.commitments[peerID] = msg.Commitment
	c.cond.Broadcast()
}

// HandleOpening records a KEYGEN_OPENING from peerID. An opening received
// before that peer's commit is dropped: the protocol requires the commit
// to have been observed first.
func (c *Coordinator) HandleOpening(peerID int, msg *codec.KeygenOpeningMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, hasCommit := c.commitments[peerID]; !hasCommit {
		log.Warn().Int("peer", peerID).Str("session", c.sessionID).
			Msg("dkg: dropping opening received before its commit")
		return
	}
	if _, exists := c.openings[peerID]; exists {
		return
	}
	c.openings[peerID] = msg
	c.cond.Broadcast()
}

// Run drives the session to completion: broadcasting this node's own
// commit and opening, blocking on the condition variable while peer
// messages arrive, then verifying and combining. It must be called from a
// goroutine distinct from the one delivering inbound messages, since it
// blocks until all N commitments and openings are in hand.
func (c *Coordinator) Run(ctx *group.Context, b Broadcaster) (*KeyShare, error) {
	local, err := NewLocalShare(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.local = local
	c.commitments[c.selfID] = local.Commitment
	c.mu.Unlock()

	commitMsg := &codec.KeygenCommitMessage{SessionID: c.sessionID, Commitment: local.Commitment}
	encoded, err := codec.Encode(ctx, commitMsg)
	if err != nil {
		return nil, xerrors.Errorf("dkg: encoding commit: %v", err)
	}
	b.Broadcast(encoded)

	c.waitFor(func() bool { return len(c.commitments) >= c.peerCount })

	c.mu.Lock()
	c.openings[c.selfID] = &codec.KeygenOpeningMessage{SessionID: c.sessionID, Y: local.Y, Proof: local.Proof}
	c.mu.Unlock()

	openingMsg := &codec.KeygenOpeningMessage{SessionID: c.sessionID, Y: local.Y, Proof: local.Proof}
	encoded, err = codec.Encode(ctx, openingMsg)
	if err != nil {
		return nil, xerrors.Errorf("dkg: encoding opening: %v", err)
	}
	b.Broadcast(encoded)

	c.waitFor(func() bool { return len(c.openings) >= c.peerCount })

	return c.combine(ctx)
}

// waitFor blocks on the condition variable until cond() is satisfied.
func (c *Coordinator) waitFor(cond func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !cond() {
		c.cond.Wait()
	}
}

func (c *Coordinator) combine(ctx *group.Context) (*KeyShare, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	y := ctx.Identity()
	for peerID := 0; peerID < c.peerCount; peerID++ {
		opening, ok := c.openings[peerID]
		if !ok {
			continue
		}
		commitment, ok := c.commitments[peerID]
		if !ok {
			continue
		}

		if !verifyOpening(ctx, commitment, opening) {
			log.Warn().Int("peer", peerID).Str("session", c.sessionID).
				Msg("dkg: excluding peer with invalid opening")
			continue
		}

		y = y.Mul(opening.Y)
	}

	return &KeyShare{Y: y, X: c.local.X, Yi: c.local.Y}, nil
}

func verifyOpening(ctx *group.Context, commitment []byte, opening *codec.KeygenOpeningMessage) bool {
	if !bytesEqual(hashElement(ctx, opening.Y), commitment) {
		return false
	}
	if !opening.Proof.Y.Equal(opening.Y) {
		return false
	}
	return opening.Proof.Verify(ctx)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
