package raft

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// Transport is the outbound capability the core is handed; sends are
// fire-and-forget, non-blocking enqueues from the caller's point of view.
type Transport interface {
	Send(payload []byte, dest int)
	Broadcast(payload []byte)
}

// ClientSink receives committed entries, in index order, exactly once.
type ClientSink interface {
	Deliver(payload []byte)
}

const (
	electionTimeoutMin = 150 * time.Millisecond
	electionTimeoutMax = 300 * time.Millisecond
	heartbeatInterval  = 50 * time.Millisecond
)

// pendingCall is the C7 correlation record: a callback with a bounded call
// count, deregistered once exhausted.
type pendingCall struct {
	remaining int
	action    func(Result)
}

// Node is a single participant's Raft role state. All persistent and
// volatile fields, the leader-only replication maps, and the pending-RPC
// registry are guarded by the same mutex: one lock per role object.
type Node struct {
	mu sync.Mutex

	id        int
	peerCount int

	transport Transport
	sink      ClientSink

	// Persistent state.
	currentTerm  int
	votedFor     *int
	log          map[int]LogEntry
	lastLogIndex int
	lastLogTerm  int

	// Volatile state.
	commitIndex          int
	lastApplied          int
	leaderID             int
	role                 Role
	shouldBecomeFollower bool

	// Leader-only volatile state.
	nextIndex        map[int]int
	matchIndexByPeer map[int]int
	votesReceived    map[int]bool

	pending map[string]*pendingCall

	electionDeadline  time.Time
	heartbeatDeadline time.Time
	rng               *rand.Rand
}

// NewNode constructs a fresh Follower with empty persistent state.
func NewNode(id, peerCount int, transport Transport, sink ClientSink) *Node {
	n := &Node{
		id:        id,
		peerCount: peerCount,
		transport: transport,
		sink:      sink,
		votedFor:  nil,
		log:       make(map[int]LogEntry),
		role:      Follower,
		pending:   make(map[string]*pendingCall),
		rng:       rand.New(rand.NewSource(int64(id) + time.Now().UnixNano())),
	}
	n.resetElectionDeadlineLocked()
	return n
}

func (n *Node) quorum() int {
	return n.peerCount/2 + 1
}

func (n *Node) resetElectionDeadlineLocked() {
	span := electionTimeoutMax - electionTimeoutMin
	jitter := time.Duration(n.rng.Int63n(int64(span)))
	n.electionDeadline = time.Now().Add(electionTimeoutMin + jitter)
}

// Tick drives timeouts, heartbeats and commit application. It must be
// called periodically by the caller's tick thread.
func (n *Node) Tick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.shouldBecomeFollower {
		n.becomeFollowerLocked()
	}

	n.applyCommittedLocked()

	now := time.Now()
	switch n.role {
	case Follower, Candidate:
		if now.After(n.electionDeadline) {
			n.becomeCandidateLocked()
		}
	case Leader:
		if now.After(n.heartbeatDeadline) {
			n.leaderBroadcastLocked()
		}
	}
}

func (n *Node) applyCommittedLocked() {
	for n.commitIndex > n.lastApplied {
		n.lastApplied++
		entry, ok := n.log[n.lastApplied]
		if !ok {
			// Should not happen given the density invariant; stop rather
			// than skip ahead of a hole.
			n.lastApplied--
			return
		}
		n.sink.Deliver([]byte(entry.Payload))
	}
}

// yieldLocked adopts a higher term, as the shared RPC preamble requires.
func (n *Node) yieldLocked(newTerm int) {
	n.shouldBecomeFollower = true
	n.currentTerm = newTerm
	n.votedFor = nil
}

func (n *Node) becomeFollowerLocked() {
	n.role = Follower
	n.shouldBecomeFollower = false
	n.resetElectionDeadlineLocked()
}

func (n *Node) becomeCandidateLocked() {
	n.role = Candidate
	n.currentTerm++
	self := n.id
	n.votedFor = &self
	n.votesReceived = map[int]bool{n.id: true}
	n.resetElectionDeadlineLocked()

	term := n.currentTerm
	args := RequestVoteArgs{
		Term: term, CandidateID: n.id,
		LastLogIndex: n.lastLogIndex, LastLogTerm: n.lastLogTerm,
	}

	log.Debug().Int("node", n.id).Int("term", term).Msg("raft: starting election")
	n.broadcastLocked(args, n.peerCount-1, func(result Result) {
		n.handleVoteReply(term, result)
	})
}

func (n *Node) becomeLeaderLocked() {
	n.role = Leader
	n.leaderID = n.id
	n.nextIndex = make(map[int]int, n.peerCount)
	n.matchIndexByPeer = make(map[int]int, n.peerCount)
	for peer := 0; peer < n.peerCount; peer++ {
		if peer == n.id {
			continue
		}
		n.nextIndex[peer] = n.lastLogIndex + 1
		n.matchIndexByPeer[peer] = 0
	}

	log.Debug().Int("node", n.id).Int("term", n.currentTerm).Msg("raft: became leader")
	n.leaderBroadcastLocked()
}

func (n *Node) handleVoteReply(term int, result Result) {
	if n.currentTerm != term || n.role != Candidate {
		return
	}
	if result.Term > n.currentTerm {
		n.yieldLocked(result.Term)
		return
	}
	if !result.Success {
		return
	}

	n.votesReceived[result.SourceID] = true
	if len(n.votesReceived) >= n.quorum() {
		n.becomeLeaderLocked()
	}
}

// leaderBroadcastLocked sends an AppendEntries (heartbeat or with new
// entries, per nextIndex) to every peer.
func (n *Node) leaderBroadcastLocked() {
	n.heartbeatDeadline = time.Now().Add(heartbeatInterval)
	term := n.currentTerm

	for peer := 0; peer < n.peerCount; peer++ {
		if peer == n.id {
			continue
		}
		n.sendAppendEntriesToLocked(peer, term)
	}
}

func (n *Node) sendAppendEntriesToLocked(peer, term int) {
	next := n.nextIndex[peer]
	prevIndex := next - 1
	prevTerm := 0
	if prevIndex > 0 {
		if e, ok := n.log[prevIndex]; ok {
			prevTerm = e.Term
		}
	}

	var entries []LogEntry
	for idx := next; idx <= n.lastLogIndex; idx++ {
		if e, ok := n.log[idx]; ok {
			entries = append(entries, e)
		}
	}

	args := AppendEntriesArgs{
		Term: term, LeaderID: n.id,
		PrevLogIndex: prevIndex, PrevLogTerm: prevTerm,
		Entries: entries, LeaderCommit: n.commitIndex,
	}

	n.sendLocked(peer, args, func(result Result) {
		n.handleAppendReply(term, peer, result)
	})
}

func (n *Node) handleAppendReply(term, peer int, result Result) {
	if n.currentTerm != term || n.role != Leader {
		return
	}
	if result.Term > n.currentTerm {
		n.yieldLocked(result.Term)
		return
	}

	if result.Success {
		if result.LastLogIndex > n.matchIndexByPeer[peer] {
			n.matchIndexByPeer[peer] = result.LastLogIndex
		}
		n.nextIndex[peer] = result.LastLogIndex + 1
		n.advanceCommitIndexLocked()
		return
	}

	if n.nextIndex[peer] > 1 {
		n.nextIndex[peer]--
	}
}

// advanceCommitIndexLocked applies the leader's commit rule: the highest
// N' replicated on a quorum whose entry's term equals the current term.
func (n *Node) advanceCommitIndexLocked() {
	for candidate := n.lastLogIndex; candidate > n.commitIndex; candidate-- {
		entry, ok := n.log[candidate]
		if !ok || entry.Term != n.currentTerm {
			continue
		}

		count := 1 // self
		for peer, matched := range n.matchIndexByPeer {
			if peer == n.id {
				continue
			}
			if matched >= candidate {
				count++
			}
		}
		if count >= n.quorum() {
			n.commitIndex = candidate
			return
		}
	}
}

// HandleAppendEntries implements the AppendEntries RPC handler. It
// both sends the reply back to the leader over the transport and returns
// it directly, which keeps single-process tests simple without requiring
// a full transport loop.
func (n *Node) HandleAppendEntries(args AppendEntriesArgs) Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	fail := func() Result {
		r := Result{UUID: args.UUID, SourceID: n.id, Term: n.currentTerm, LastLogIndex: n.lastLogIndex, Success: false}
		n.replyLocked(args.LeaderID, r)
		return r
	}

	if args.Term < n.currentTerm {
		return fail()
	}

	if args.Term > n.currentTerm {
		n.yieldLocked(args.Term)
	}
	n.resetElectionDeadlineLocked()

	if n.role == Candidate {
		// A valid leader exists for this term: stop campaigning.
		n.becomeFollowerLocked()
	}

	if n.leaderID != args.LeaderID {
		n.leaderID = args.LeaderID
	}

	if args.PrevLogIndex > 0 {
		entry, ok := n.log[args.PrevLogIndex]
		if !ok || entry.Term != args.PrevLogTerm {
			return fail()
		}
	}

	n.truncateConflictingLocked(args.Entries)
	n.appendEntriesLocked(args.Entries)

	newCommit := args.LeaderCommit
	if n.lastLogIndex < newCommit {
		newCommit = n.lastLogIndex
	}
	if newCommit > n.commitIndex {
		n.commitIndex = newCommit
	}

	result := Result{UUID: args.UUID, SourceID: n.id, Term: n.currentTerm, LastLogIndex: n.lastLogIndex, Success: true}
	n.replyLocked(args.LeaderID, result)
	return result
}

func (n *Node) replyLocked(dest int, result Result) {
	encoded, err := EncodeResult(result)
	if err != nil {
		log.Warn().Err(err).Msg("raft: encoding RPC result")
		return
	}
	n.transport.Send(encoded, dest)
}

func (n *Node) truncateConflictingLocked(entries []LogEntry) {
	for _, newEntry := range entries {
		existing, ok := n.log[newEntry.Index]
		if ok && existing.Term != newEntry.Term {
			for idx := range n.log {
				if idx >= newEntry.Index {
					delete(n.log, idx)
				}
			}
			n.lastLogIndex = newEntry.Index - 1
			if n.lastLogIndex > 0 {
				if e, ok := n.log[n.lastLogIndex]; ok {
					n.lastLogTerm = e.Term
				} else {
					n.lastLogTerm = 0
				}
			} else {
				n.lastLogTerm = 0
			}
		}
	}
}

func (n *Node) appendEntriesLocked(entries []LogEntry) {
	for _, newEntry := range entries {
		n.log[newEntry.Index] = newEntry
		if newEntry.Index > n.lastLogIndex {
			n.lastLogIndex = newEntry.Index
		}
		if newEntry.Term > n.lastLogTerm {
			n.lastLogTerm = newEntry.Term
		}
	}
}

// HandleRequestVote implements the RequestVote RPC handler,
// granting on the standard (lastLogTerm, lastLogIndex) freshness rule.
func (n *Node) HandleRequestVote(args RequestVoteArgs) Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	deny := func() Result {
		r := Result{UUID: args.UUID, SourceID: n.id, Term: n.currentTerm, LastLogIndex: n.lastLogIndex, Success: false}
		n.replyLocked(args.CandidateID, r)
		return r
	}

	if args.Term < n.currentTerm {
		return deny()
	}

	if args.Term > n.currentTerm {
		n.yieldLocked(args.Term)
	}

	canVote := n.votedFor == nil || *n.votedFor == args.CandidateID
	fresh := args.LastLogTerm > n.lastLogTerm ||
		(args.LastLogTerm == n.lastLogTerm && args.LastLogIndex >= n.lastLogIndex)

	if canVote && fresh {
		candidate := args.CandidateID
		n.votedFor = &candidate
		n.resetElectionDeadlineLocked()
		result := Result{UUID: args.UUID, SourceID: n.id, Term: n.currentTerm, LastLogIndex: n.lastLogIndex, Success: true}
		n.replyLocked(args.CandidateID, result)
		return result
	}

	return deny()
}

// HandleResult dispatches an inbound RPC result to its registered
// callback, per the C7 correlation discipline.
func (n *Node) HandleResult(result Result) {
	n.mu.Lock()
	defer n.mu.Unlock()

	call, ok := n.pending[result.UUID]
	if !ok {
		return
	}
	call.action(result)
	call.remaining--
	if call.remaining <= 0 {
		delete(n.pending, result.UUID)
	}

	if result.Term > n.currentTerm {
		n.yieldLocked(result.Term)
	}
}

// HandleClientEntry implements forwarded client-entry reception: a
// non-leader that receives a forwarded entry re-forwards to its believed
// leader exactly like a fresh Submit would.
func (n *Node) HandleClientEntry(args ClientEntryArgs) {
	n.Submit([]byte(args.Payload))
}

// Submit implements client entry submission: leaders append directly,
// followers forward to the believed leader.
func (n *Node) Submit(payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role == Leader {
		n.lastLogIndex++
		n.log[n.lastLogIndex] = LogEntry{Index: n.lastLogIndex, Term: n.currentTerm, Payload: string(payload)}
		n.lastLogTerm = n.currentTerm
		return
	}

	entry := ClientEntryArgs{UUID: xid.New().String(), Payload: string(payload)}
	encoded, err := EncodeClientEntry(entry)
	if err != nil {
		log.Warn().Err(err).Msg("raft: encoding forwarded client entry")
		return
	}
	n.transport.Send(encoded, n.leaderID)
}

// sendLocked registers a single-reply callback and unicasts args to dest.
func (n *Node) sendLocked(dest int, args AppendEntriesArgs, callback func(Result)) {
	args.UUID = xid.New().String()
	n.pending[args.UUID] = &pendingCall{remaining: 1, action: callback}

	encoded, err := EncodeAppendEntries(args)
	if err != nil {
		log.Warn().Err(err).Msg("raft: encoding AppendEntries")
		return
	}
	n.transport.Send(encoded, dest)
}

// broadcastLocked registers an (N-1)-reply callback and broadcasts args.
func (n *Node) broadcastLocked(args RequestVoteArgs, replies int, callback func(Result)) {
	args.UUID = xid.New().String()
	n.pending[args.UUID] = &pendingCall{remaining: replies, action: callback}

	encoded, err := EncodeRequestVote(args)
	if err != nil {
		log.Warn().Err(err).Msg("raft: encoding RequestVote")
		return
	}
	n.transport.Broadcast(encoded)
}

// Snapshot reports a consistent view of the node's externally-observable
// state, useful for tests and demo logging.
type Snapshot struct {
	ID           int
	Role         Role
	Term         int
	LeaderID     int
	CommitIndex  int
	LastApplied  int
	LastLogIndex int
}

func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Snapshot{
		ID: n.id, Role: n.role, Term: n.currentTerm, LeaderID: n.leaderID,
		CommitIndex: n.commitIndex, LastApplied: n.lastApplied, LastLogIndex: n.lastLogIndex,
	}
}
