package dkg_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raftdkg/dkg"
	"github.com/quorumkit/raftdkg/group"
)

// runSession drives an n-node DKG to completion and returns every node's
// KeyShare. Helper for the threshold-decryption tests below.
func runSession(t *testing.T, ctx *group.Context, sessionID string, n int) []*dkg.KeyShare {
	t.Helper()

	coords := make([]*dkg.Coordinator, n)
	for i := range coords {
		coords[i] = dkg.NewCoordinator(ctx, sessionID, i, n)
	}

	type outcome struct {
		id    int
		share *dkg.KeyShare
		err   error
	}
	results := make(chan outcome, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			share, err := coords[i].Run(ctx, &fanout{from: i, peers: coords, ctx: ctx})
			results <- outcome{id: i, share: share, err: err}
		}()
	}

	shares := make([]*dkg.KeyShare, n)
	for i := 0; i < n; i++ {
		out := <-results
		require.NoError(t, out.err)
		shares[out.id] = out.share
	}
	return shares
}

func TestDecryptionShareVerifies(t *testing.T) {
	ctx := testContext(t)
	shares := runSession(t, ctx, "decrypt-1", 3)

	m := ctx.Generator().Pow(big.NewInt(42))
	ct, proof, err := dkg.Encrypt(ctx, shares[0].Y, m)
	require.NoError(t, err)
	require.True(t, proof.Verify(ctx))

	for _, ks := range shares {
		share, eqProof, err := ks.DecryptionShare(ctx, ct)
		require.NoError(t, err)
		require.True(t, dkg.VerifyDecryptionShare(ctx, ct, ks.Yi, share, eqProof))
	}
}

func TestDecryptionShareRejectsForeignShare(t *testing.T) {
	ctx := testContext(t)
	shares := runSession(t, ctx, "decrypt-2", 3)

	m := ctx.Generator().Pow(big.NewInt(7))
	ct, _, err := dkg.Encrypt(ctx, shares[0].Y, m)
	require.NoError(t, err)

	// Node 1's share presented as node 0's must not verify against node
	// 0's public share.
	share, proof, err := shares[1].DecryptionShare(ctx, ct)
	require.NoError(t, err)
	require.False(t, dkg.VerifyDecryptionShare(ctx, ct, shares[0].Yi, share, proof))
}

func TestRecoverPlaintextFromAllShares(t *testing.T) {
	ctx := testContext(t)
	shares := runSession(t, ctx, "decrypt-3", 3)

	m := ctx.Generator().Pow(big.NewInt(99))
	ct, _, err := dkg.Encrypt(ctx, shares[0].Y, m)
	require.NoError(t, err)

	partials := make([]group.Element, 0, len(shares))
	for _, ks := range shares {
		share, proof, err := ks.DecryptionShare(ctx, ct)
		require.NoError(t, err)
		require.True(t, dkg.VerifyDecryptionShare(ctx, ct, ks.Yi, share, proof))
		partials = append(partials, share)
	}

	recovered := dkg.Recover(ctx, ct, partials)
	require.True(t, recovered.Equal(m))
}
