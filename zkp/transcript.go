package zkp

import (
	"crypto/sha256"
	"encoding/binary"
)

// transcript accumulates labeled, length-prefixed messages and derives a
// single Fiat-Shamir challenge from them. It plays the same role as a
// Merlin-style rolling transcript but collapses to one SHA-256 pass, which
// is all a single-round non-interactive proof needs.
type transcript struct {
	h []byte
}

func newTranscript(domainLabel string) *transcript {
	tr := &transcript{}
	tr.append([]byte("dom-sep"), []byte(domainLabel))
	return tr
}

func (tr *transcript) append(label, message []byte) {
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(message)))

	tr.h = append(tr.h, label...)
	tr.h = append(tr.h, sizeBuf...)
	tr.h = append(tr.h, message...)
}

func (tr *transcript) appendElements(label []byte, elements ...[]byte) {
	for _, e := range elements {
		tr.append(label, e)
	}
}

// challenge finalizes the transcript into a challenge digest. The
// transcript is not reusable afterwards.
func (tr *transcript) challenge() []byte {
	sum := sha256.Sum256(tr.h)
	return sum[:]
}
