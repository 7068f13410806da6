// Package codec implements the self-describing, total codec for crypto
// messages: KEYGEN_COMMIT, KEYGEN_OPENING, POST_VOTE and DECRYPT_SHARE.
// Decoding never panics or returns an error; a malformed or unrecognized
// payload simply decodes to (nil, false).
package codec

import (
	"encoding/json"
	"math/big"

	"golang.org/x/xerrors"

	"github.com/quorumkit/raftdkg/group"
	"github.com/quorumkit/raftdkg/zkp"
)

var errUnsupportedMessage = xerrors.Errorf("codec: unsupported message type")

// Kind discriminates the wire shape of a crypto message.
type Kind string

const (
	KindKeygenCommit  Kind = "KEYGEN_COMMIT"
	KindKeygenOpening Kind = "KEYGEN_OPENING"
	KindPostVote      Kind = "POST_VOTE"
	KindDecryptShare  Kind = "DECRYPT_SHARE"
)

// Message is implemented by every crypto message kind.
type Message interface {
	Kind() Kind
	Session() string
}

type dlogProofWire struct {
	G []byte `json:"g"`
	Y []byte `json:"y"`
	T []byte `json:"t"`
	R []byte `json:"r"`
}

type eqDlogProofWire struct {
	A  []byte `json:"a"`
	B  []byte `json:"b"`
	D  []byte `json:"d"`
	E  []byte `json:"e"`
	Gp []byte `json:"gp"`
	Hp []byte `json:"hp"`
	R  []byte `json:"r"`
}

func encodeDlogProof(ctx *group.Context, p *zkp.DlogProof) dlogProofWire {
	return dlogProofWire{
		G: p.G.Bytes(ctx),
		Y: p.Y.Bytes(ctx),
		T: p.T.Bytes(ctx),
		R: p.R.Bytes(),
	}
}

func decodeDlogProof(ctx *group.Context, w dlogProofWire) (*zkp.DlogProof, bool) {
	g, ok := group.DecodeElement(ctx, w.G)
	if !ok {
		return nil, false
	}
	y, ok := group.DecodeElement(ctx, w.Y)
	if !ok {
		return nil, false
	}
	t, ok := group.DecodeElement(ctx, w.T)
	if !ok {
		return nil, false
	}
	if len(w.R) == 0 {
		return nil, false
	}
	r := new(big.Int).SetBytes(w.R)
	return &zkp.DlogProof{G: g, Y: y, T: t, R: r}, true
}

func encodeEqDlogProof(ctx *group.Context, p *zkp.EqDlogProof) eqDlogProofWire {
	return eqDlogProofWire{
		A:  p.A.Bytes(ctx),
		B:  p.B.Bytes(ctx),
		D:  p.D.Bytes(ctx),
		E:  p.E.Bytes(ctx),
		Gp: p.Gp.Bytes(ctx),
		Hp: p.Hp.Bytes(ctx),
		R:  p.R.Bytes(),
	}
}

func decodeEqDlogProof(ctx *group.Context, w eqDlogProofWire) (*zkp.EqDlogProof, bool) {
	a, ok := group.DecodeElement(ctx, w.A)
	if !ok {
		return nil, false
	}
	b, ok := group.DecodeElement(ctx, w.B)
	if !ok {
		return nil, false
	}
	d, ok := group.DecodeElement(ctx, w.D)
	if !ok {
		return nil, false
	}
	e, ok := group.DecodeElement(ctx, w.E)
	if !ok {
		return nil, false
	}
	gp, ok := group.DecodeElement(ctx, w.Gp)
	if !ok {
		return nil, false
	}
	hp, ok := group.DecodeElement(ctx, w.Hp)
	if !ok {
		return nil, false
	}
	if len(w.R) == 0 {
		return nil, false
	}
	r := new(big.Int).SetBytes(w.R)
	return &zkp.EqDlogProof{A: a, B: b, D: d, E: e, Gp: gp, Hp: hp, R: r}, true
}

// envelope is only used to sniff the kind and session id before dispatching
// to a kind-specific struct.
type envelope struct {
	Kind      Kind   `json:"kind"`
	SessionID string `json:"session_id"`
}

// KeygenCommitMessage carries the commitment H(y_i) for session SessionID.
type KeygenCommitMessage struct {
	SessionID  string
	Commitment []byte
}

func (m *KeygenCommitMessage) Kind() Kind      { return KindKeygenCommit }
func (m *KeygenCommitMessage) Session() string { return m.SessionID }

type keygenCommitWire struct {
	Kind       Kind   `json:"kind"`
	SessionID  string `json:"session_id"`
	Commitment []byte `json:"commitment"`
}

// KeygenOpeningMessage carries y_i and its PoK-DL for session SessionID.
type KeygenOpeningMessage struct {
	SessionID string
	Y         group.Element
	Proof     *zkp.DlogProof
}

func (m *KeygenOpeningMessage) Kind() Kind      { return KindKeygenOpening }
func (m *KeygenOpeningMessage) Session() string { return m.SessionID }

type keygenOpeningWire struct {
	Kind      Kind          `json:"kind"`
	SessionID string        `json:"session_id"`
	Y         []byte        `json:"y"`
	Proof     dlogProofWire `json:"proof"`
}

// PostVoteMessage carries an ElGamal ciphertext and a PoK-DL that the voter
// knows the ephemeral randomness. The core transports this kind but does
// not verify or tally it; that belongs to the consuming application.
type PostVoteMessage struct {
	SessionID string
	A, B      group.Element
	Proof     *zkp.DlogProof
}

func (m *PostVoteMessage) Kind() Kind      { return KindPostVote }
func (m *PostVoteMessage) Session() string { return m.SessionID }

type postVoteWire struct {
	Kind      Kind          `json:"kind"`
	SessionID string        `json:"session_id"`
	A         []byte        `json:"a"`
	B         []byte        `json:"b"`
	Proof     dlogProofWire `json:"proof"`
}

// DecryptShareMessage carries a threshold decryption share a_i = a^{x_i}
// together with its PoK-EqDL over bases (g, a).
type DecryptShareMessage struct {
	SessionID string
	ShareID   int
	G         group.Element
	Share     group.Element
	Proof     *zkp.EqDlogProof
}

func (m *DecryptShareMessage) Kind() Kind      { return KindDecryptShare }
func (m *DecryptShareMessage) Session() string { return m.SessionID }

type decryptShareWire struct {
	Kind      Kind            `json:"kind"`
	SessionID string          `json:"session_id"`
	ShareID   int             `json:"share_id"`
	G         []byte          `json:"g"`
	Share     []byte          `json:"share"`
	Proof     eqDlogProofWire `json:"proof"`
}

// Encode renders a crypto message into its canonical JSON wire form.
func Encode(ctx *group.Context, msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *KeygenCommitMessage:
		return json.Marshal(keygenCommitWire{
			Kind: KindKeygenCommit, SessionID: m.SessionID, Commitment: m.Commitment,
		})
	case *KeygenOpeningMessage:
		return json.Marshal(keygenOpeningWire{
			Kind: KindKeygenOpening, SessionID: m.SessionID,
			Y: m.Y.Bytes(ctx), Proof: encodeDlogProof(ctx, m.Proof),
		})
	case *PostVoteMessage:
		return json.Marshal(postVoteWire{
			Kind: KindPostVote, SessionID: m.SessionID,
			A: m.A.Bytes(ctx), B: m.B.Bytes(ctx), Proof: encodeDlogProof(ctx, m.Proof),
		})
	case *DecryptShareMessage:
		return json.Marshal(decryptShareWire{
			Kind: KindDecryptShare, SessionID: m.SessionID, ShareID: m.ShareID,
			G: m.G.Bytes(ctx), Share: m.Share.Bytes(ctx), Proof: encodeEqDlogProof(ctx, m.Proof),
		})
	default:
		return nil, errUnsupportedMessage
	}
}

// Decode attempts to parse data as a crypto message. It never panics and
// never returns an error; any failure (malformed JSON, unknown kind, empty
// session id, an out-of-range group element, a malformed proof) yields
// (nil, false).
func Decode(ctx *group.Context, data []byte) (Message, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.SessionID == "" {
		return nil, false
	}

	switch env.Kind {
	case KindKeygenCommit:
		var w keygenCommitWire
		if err := json.Unmarshal(data, &w); err != nil || len(w.Commitment) == 0 {
			return nil, false
		}
		return &KeygenCommitMessage{SessionID: w.SessionID, Commitment: w.Commitment}, true

	case KindKeygenOpening:
		var w keygenOpeningWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		y, ok := group.DecodeElement(ctx, w.Y)
		if !ok {
			return nil, false
		}
		proof, ok := decodeDlogProof(ctx, w.Proof)
		if !ok {
			return nil, false
		}
		return &KeygenOpeningMessage{SessionID: w.SessionID, Y: y, Proof: proof}, true

	case KindPostVote:
		var w postVoteWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		a, ok := group.DecodeElement(ctx, w.A)
		if !ok {
			return nil, false
		}
		b, ok := group.DecodeElement(ctx, w.B)
		if !ok {
			return nil, false
		}
		proof, ok := decodeDlogProof(ctx, w.Proof)
		if !ok {
			return nil, false
		}
		return &PostVoteMessage{SessionID: w.SessionID, A: a, B: b, Proof: proof}, true

	case KindDecryptShare:
		var w decryptShareWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		g, ok := group.DecodeElement(ctx, w.G)
		if !ok {
			return nil, false
		}
		share, ok := group.DecodeElement(ctx, w.Share)
		if !ok {
			return nil, false
		}
		proof, ok := decodeEqDlogProof(ctx, w.Proof)
		if !ok {
			return nil, false
		}
		return &DecryptShareMessage{
			SessionID: w.SessionID, ShareID: w.ShareID, G: g, Share: share, Proof: proof,
		}, true

	default:
		return nil, false
	}
}
