package group_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raftdkg/group"
)

// A small, easy-to-reason-about safe prime: p = 2q+1 with q prime.
func testContext(t *testing.T) *group.Context {
	t.Helper()
	p := big.NewInt(2*11 + 1) // 23, q = 11
	g := big.NewInt(4)        // order-11 element in Z/23Z*
	ctx, err := group.NewContext(p, g)
	require.NoError(t, err)
	return ctx
}

func TestMulPowInverseRoundTrip(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()

	a := g.Pow(big.NewInt(3))
	b := g.Pow(big.NewInt(4))
	ab := a.Mul(b)
	expect := g.Pow(big.NewInt(7))
	require.True(t, ab.Equal(expect))

	inv := a.Inverse()
	require.True(t, a.Mul(inv).Equal(ctx.Identity()))
}

func TestBytesRoundTrip(t *testing.T) {
	ctx := testContext(t)
	e := ctx.Generator().Pow(big.NewInt(5))

	encoded := e.Bytes(ctx)
	require.Len(t, encoded, ctx.ByteLen())

	decoded, ok := group.DecodeElement(ctx, encoded)
	require.True(t, ok)
	require.True(t, e.Equal(decoded))
}

func TestDecodeRejectsOutOfRange(t *testing.T) {
	ctx := testContext(t)
	tooBig := ctx.P()
	tooBig.Add(tooBig, big.NewInt(1))

	_, ok := group.DecodeElement(ctx, tooBig.Bytes())
	require.False(t, ok)
}

func TestRandomExponentInRange(t *testing.T) {
	ctx := testContext(t)
	for i := 0; i < 20; i++ {
		x, err := ctx.RandomExponent()
		require.NoError(t, err)
		require.True(t, x.Sign() >= 1)
		require.True(t, x.Cmp(ctx.Q()) < 0)
	}
}
