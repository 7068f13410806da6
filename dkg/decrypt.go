package dkg

import (
	"golang.org/x/xerrors"

	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/zkp"
)

// Ciphertext is an ElGamal pair (a, b) = (g^k, Y^k * m) under the joint
// public key Y produced by a DKG session.
type Ciphertext struct {
	A group.Element
	B group.Element
}

// Encrypt produces a ciphertext for message m under the joint public key y,
// together with a PoK-DL binding the ephemeral randomness k to a = g^k.
func Encrypt(ctx *group.Context, y, m group.Element) (*Ciphertext, *zkp.DlogProof, error) {
	k, err := ctx.RandomExponent()
	if err != nil {
		return nil, nil, xerrors.Errorf("dkg: sampling encryption randomness: %v", err)
	}

	g := ctx.Generator()
	a := g.Pow(k)
	b := y.Pow(k).Mul(m)

	proof, err := zkp.ProveDlog(ctx, g, a, k)
	if err != nil {
		return nil, nil, xerrors.Errorf("dkg: proving encryption randomness: %v", err)
	}

	return &Ciphertext{A: a, B: b}, proof, nil
}

// DecryptionShare computes this node's partial decryption a_i = a^{x_i}
// for the ciphertext, together with a PoK-EqDL over bases (g, a) proving
// log_g(y_i) = log_a(a_i), i.e. that the share was raised from the same
// secret exponent as the node's public share.
func (ks *KeyShare) DecryptionShare(ctx *group.Context, ct *Ciphertext) (group.Element, *zkp.EqDlogProof, error) {
	share := ct.A.Pow(ks.X)

	proof, err := zkp.ProveEquality(ctx, ctx.Generator(), ct.A, ks.Yi, share, ks.X)
	if err != nil {
		return group.Element{}, nil, xerrors.Errorf("dkg: proving decryption share: %v", err)
	}
	return share, proof, nil
}

// VerifyDecryptionShare checks a peer's published share against its public
// share y_i: the proof must be over bases (g, a) and statements (y_i, a_i),
// and it must verify.
func VerifyDecryptionShare(ctx *group.Context, ct *Ciphertext, yi, share group.Element, proof *zkp.EqDlogProof) bool {
	if proof == nil {
		return false
	}
	if !proof.A.Equal(ctx.Generator()) || !proof.B.Equal(ct.A) {
		return false
	}
	if !proof.D.Equal(yi) || !proof.E.Equal(share) {
		return false
	}
	return proof.Verify(ctx)
}

// Recover combines the decryption shares of every accepted peer into the
// plaintext: m = b * (prod_i a_i)^{-1}. The caller must supply one verified
// share per peer whose opening contributed to Y, or the result is garbage.
func Recover(ctx *group.Context, ct *Ciphertext, shares []group.Element) group.Element {
	combined := ctx.Identity()
	for _, s := range shares {
		combined = combined.Mul(s)
	}
	return ct.B.Mul(combined.Inverse())
}
