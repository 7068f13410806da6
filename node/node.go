// Package node implements the dispatcher that ties the Raft state
// machine and the DKG coordinators to a single inbound stream: it decodes
// an inbound payload as either a Raft RPC or a crypto message and routes
// it accordingly.
package node

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/quorumkit/raftdkg/codec"
	"github.com/quorumkit/raftdkg/dkg"
	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/raft"
)

// Transport is the outbound capability both the Raft node and the DKG
// coordinators are built against.
type Transport = raft.Transport

// Peer owns one Raft node and the DKG coordinators active for this
// process, and decodes/dispatches everything arriving on the wire.
type Peer struct {
	mu sync.Mutex

	id        int
	peerCount int
	ctx       *group.Context

	transport Transport
	Raft      *raft.Node

	coordinators map[string]*dkg.Coordinator
}

// NewPeer constructs a peer for node id among peerCount participants,
// sharing groupCtx for all DKG/ZKP arithmetic and delivering committed
// entries to sink.
func NewPeer(id, peerCount int, groupCtx *group.Context, transport Transport, sink raft.ClientSink) *Peer {
	return &Peer{
		id:           id,
		peerCount:    peerCount,
		ctx:          groupCtx,
		transport:    transport,
		Raft:         raft.NewNode(id, peerCount, transport, sink),
		coordinators: make(map[string]*dkg.Coordinator),
	}
}

// StartDKG runs a new DKG session to completion; it blocks until all peers'
// commitments and openings are known. There is no built-in timeout: the
// protocol requires every peer to participate, so a silent peer stalls it.
func (p *Peer) StartDKG(sessionID string) (*dkg.KeyShare, error) {
	coord := dkg.NewCoordinator(p.ctx, sessionID, p.id, p.peerCount)

	p.mu.Lock()
	p.coordinators[sessionID] = coord
	p.mu.Unlock()

	return coord.Run(p.ctx, p.transport)
}

// Dispatch decodes an inbound payload and routes it to the Raft node or
// the appropriate DKG coordinator. src is the source peer id as reported
// by the transport; a "<src>:" hop prefix embedded in the payload itself
// takes precedence when present.
func (p *Peer) Dispatch(src int, payload []byte) {
	if hopSrc, rest, ok := stripHopPrefix(payload); ok {
		src = hopSrc
		payload = rest
	}

	if msg, ok := raft.Decode(payload); ok {
		p.dispatchRaft(msg)
		return
	}

	if msg, ok := codec.Decode(p.ctx, payload); ok {
		p.dispatchCrypto(src, msg)
		return
	}

	log.Debug().Int("src", src).Msg("node: dropping malformed or unrecognized payload")
}

func (p *Peer) dispatchRaft(msg interface{}) {
	switch m := msg.(type) {
	case raft.AppendEntriesArgs:
		p.Raft.HandleAppendEntries(m)
	case raft.RequestVoteArgs:
		p.Raft.HandleRequestVote(m)
	case raft.Result:
		p.Raft.HandleResult(m)
	case raft.ClientEntryArgs:
		p.Raft.HandleClientEntry(m)
	}
}

func (p *Peer) dispatchCrypto(src int, msg codec.Message) {
	p.mu.Lock()
	coord, ok := p.coordinators[msg.Session()]
	p.mu.Unlock()

	if !ok {
		log.Debug().Str("session", msg.Session()).Int("src", src).
			Msg("node: dropping crypto message for unknown session")
		return
	}

	switch m := msg.(type) {
	case *codec.KeygenCommitMessage:
		coord.HandleCommit(src, m)
	case *codec.KeygenOpeningMessage:
		coord.HandleOpening(src, m)
	default:
		// POST_VOTE and DECRYPT_SHARE are carried by the codec for the
		// consuming application; the core itself has no handler for them.
	}
}

// stripHopPrefix parses a leading "<digits>:" hop prefix, returning the
// parsed source id and the remaining payload. It returns ok=false (and
// the payload untouched) for anything that doesn't match, including a
// payload that merely happens to contain a colon.
func stripHopPrefix(payload []byte) (src int, rest []byte, ok bool) {
	idx := -1
	for i, b := range payload {
		if b == ':' {
			idx = i
			break
		}
		if b < '0' || b > '9' {
			return 0, payload, false
		}
	}
	if idx <= 0 {
		return 0, payload, false
	}

	n, err := strconv.Atoi(string(payload[:idx]))
	if err != nil {
		return 0, payload, false
	}
	return n, payload[idx+1:], true
}
