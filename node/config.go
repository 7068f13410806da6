package node

import "math/big"

// Config is the startup configuration the core consumes: own
// peer id, the ordered peer list (index implies peer id), a debug/release
// flag, and the fixed group parameters shared by every node. Actually
// sourcing these values from a file, flag set or environment is external
// to this package; cmd/raftdkg-node shows one way to populate it.
type Config struct {
	SelfID    int
	Peers     []string // "host:port", ordered; index implies peer id
	Debug     bool
	Prime     *big.Int
	Generator *big.Int
}

// PeerCount returns N, the fixed total participant count.
func (c Config) PeerCount() int {
	return len(c.Peers)
}
