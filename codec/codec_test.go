package codec_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raftdkg/codec"
	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/zkp"
)

func testContext(t *testing.T) *group.Context {
	t.Helper()
	ctx, err := group.NewContext(big.NewInt(23), big.NewInt(4))
	require.NoError(t, err)
	return ctx
}

func TestKeygenCommitRoundTrip(t *testing.T) {
	ctx := testContext(t)
	msg := &codec.KeygenCommitMessage{SessionID: "s1", Commitment: []byte{1, 2, 3, 4}}

	data, err := codec.Encode(ctx, msg)
	require.NoError(t, err)

	decoded, ok := codec.Decode(ctx, data)
	require.True(t, ok)
	require.Equal(t, codec.KindKeygenCommit, decoded.Kind())
	require.Equal(t, "s1", decoded.Session())

	got := decoded.(*codec.KeygenCommitMessage)
	require.Equal(t, msg.Commitment, got.Commitment)
}

func TestKeygenOpeningRoundTrip(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()
	x, err := ctx.RandomExponent()
	require.NoError(t, err)
	y := g.Pow(x)
	proof, err := zkp.ProveDlog(ctx, g, y, x)
	require.NoError(t, err)

	msg := &codec.KeygenOpeningMessage{SessionID: "s1", Y: y, Proof: proof}
	data, err := codec.Encode(ctx, msg)
	require.NoError(t, err)

	decoded, ok := codec.Decode(ctx, data)
	require.True(t, ok)
	got := decoded.(*codec.KeygenOpeningMessage)
	require.True(t, got.Y.Equal(y))
	require.True(t, got.Proof.Verify(ctx))
}

func TestDecodeRejectsMissingSessionID(t *testing.T) {
	ctx := testContext(t)
	_, ok := codec.Decode(ctx, []byte(`{"kind":"KEYGEN_COMMIT","commitment":"AQID"}`))
	require.False(t, ok)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	ctx := testContext(t)
	_, ok := codec.Decode(ctx, []byte(`not json at all`))
	require.False(t, ok)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	ctx := testContext(t)
	_, ok := codec.Decode(ctx, []byte(`{"kind":"BOGUS","session_id":"s1"}`))
	require.False(t, ok)
}

func TestDecryptShareRoundTrip(t *testing.T) {
	ctx := testContext(t)
	g := ctx.Generator()
	a := g.Pow(big.NewInt(3))

	x, err := ctx.RandomExponent()
	require.NoError(t, err)
	y := g.Pow(x)
	ai := a.Pow(x)

	proof, err := zkp.ProveEquality(ctx, g, a, y, ai, x)
	require.NoError(t, err)

	msg := &codec.DecryptShareMessage{SessionID: "s1", ShareID: 2, G: g, Share: ai, Proof: proof}
	data, err := codec.Encode(ctx, msg)
	require.NoError(t, err)

	decoded, ok := codec.Decode(ctx, data)
	require.True(t, ok)
	got := decoded.(*codec.DecryptShareMessage)
	require.Equal(t, 2, got.ShareID)
	require.True(t, got.Proof.Verify(ctx))
}
