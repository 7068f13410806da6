package zkp_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/zkp"
)

func testContext(t *testing.T) *group.Context {
	t.Helper()
	ctx, err := group.NewContext(big.NewInt(23), big.NewInt(4))
	require.NoError(t, err)
	return ctx
}

func TestDlogProofHonestVerifies(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()

	x, err := ctx.RandomExponent()
	require.NoError(t, err)
	y := g.Pow(x)

	proof, err := zkp.ProveDlog(ctx, g, y, x)
	require.NoError(t, err)
	require.True(t, proof.Verify(ctx))
}

func TestDlogProofRejectsWrongStatement(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()

	x, err := ctx.RandomExponent()
	require.NoError(t, err)
	y := g.Pow(x)

	proof, err := zkp.ProveDlog(ctx, g, y, x)
	require.NoError(t, err)

	proof.Y = g.Pow(big.NewInt(2))
	require.False(t, proof.Verify(ctx))
}

func TestEqDlogProofHonestVerifies(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()
	a := g.Pow(big.NewInt(3))
	b := g.Pow(big.NewInt(5))

	x, err := ctx.RandomExponent()
	require.NoError(t, err)
	d := a.Pow(x)
	e := b.Pow(x)

	proof, err := zkp.ProveEquality(ctx, a, b, d, e, x)
	require.NoError(t, err)
	require.True(t, proof.Verify(ctx))
}

func TestEqDlogProofRejectsMismatchedWitness(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()
	a := g.Pow(big.NewInt(3))
	b := g.Pow(big.NewInt(5))

	x, err := ctx.RandomExponent()
	require.NoError(t, err)
	y, err := ctx.RandomExponent()
	require.NoError(t, err)
	d := a.Pow(x)
	e := b.Pow(y) // different witness

	proof, err := zkp.ProveEquality(ctx, a, b, d, e, x)
	require.NoError(t, err)
	require.False(t, proof.Verify(ctx))
}
