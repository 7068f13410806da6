package raft_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raftdkg/raft"
)

// fanTransport delivers to per-node inboxes asynchronously, standing in
// for the external transport's non-blocking enqueue semantics. Delivery
// must not happen on the sender's own call stack: Raft handlers run under
// the node's lock, and a synchronous loopback would self-deadlock.
type fanTransport struct {
	self    int
	inboxes []chan []byte
}

func (f *fanTransport) Send(payload []byte, dest int) { f.inboxes[dest] <- payload }

func (f *fanTransport) Broadcast(payload []byte) {
	for i, ch := range f.inboxes {
		if i == f.self {
			continue
		}
		ch <- payload
	}
}

type cluster struct {
	nodes []*raft.Node
	sinks []*recordingSink
}

func newCluster(t *testing.T, n int) *cluster {
	t.Helper()

	inboxes := make([]chan []byte, n)
	for i := range inboxes {
		inboxes[i] = make(chan []byte, 1024)
	}

	c := &cluster{nodes: make([]*raft.Node, n), sinks: make([]*recordingSink, n)}
	for i := 0; i < n; i++ {
		c.sinks[i] = &recordingSink{}
		transport := &fanTransport{self: i, inboxes: inboxes}
		c.nodes[i] = raft.NewNode(i, n, transport, c.sinks[i])
	}

	for i := 0; i < n; i++ {
		i := i
		go func() {
			for payload := range inboxes[i] {
				msg, ok := raft.Decode(payload)
				if !ok {
					continue
				}
				switch m := msg.(type) {
				case raft.AppendEntriesArgs:
					c.nodes[i].HandleAppendEntries(m)
				case raft.RequestVoteArgs:
					c.nodes[i].HandleRequestVote(m)
				case raft.Result:
					c.nodes[i].HandleResult(m)
				case raft.ClientEntryArgs:
					c.nodes[i].HandleClientEntry(m)
				}
			}
		}()
	}

	return c
}

func (c *cluster) driveTicks(t *testing.T, duration, period time.Duration) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		for _, node := range c.nodes {
			node.Tick()
		}
		time.Sleep(period)
	}
}

func (c *cluster) leader() (*raft.Node, bool) {
	for _, node := range c.nodes {
		if node.Snapshot().Role == raft.Leader {
			return node, true
		}
	}
	return nil, false
}

// A quorum of three fresh nodes elects exactly one leader.
func TestClusterElectsALeader(t *testing.T) {
	c := newCluster(t, 3)
	c.driveTicks(t, 800*time.Millisecond, 10*time.Millisecond)

	leaders := 0
	for _, node := range c.nodes {
		if node.Snapshot().Role == raft.Leader {
			leaders++
		}
	}
	require.Equal(t, 1, leaders)
}

// Once a leader is elected, a submitted entry is eventually
// committed and delivered on every node's sink.
func TestClusterReplicatesAndCommits(t *testing.T) {
	c := newCluster(t, 3)
	c.driveTicks(t, 800*time.Millisecond, 10*time.Millisecond)

	leader, ok := c.leader()
	require.True(t, ok)

	leader.Submit([]byte("hello"))
	c.driveTicks(t, 800*time.Millisecond, 10*time.Millisecond)

	for i, sink := range c.sinks {
		require.Contains(t, sink.delivered, "hello", "node %d should have applied the committed entry", i)
	}
}
