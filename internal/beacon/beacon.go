// Package beacon defines the broadcast payload and the lossy token
// projection carried in it.
//
// The radio medium carries three bytes: one org-code byte followed by a
// 16-bit token hash, big-endian. The hash is FNV-1a over the token folded
// from 32 to 16 bits by XOR; FNV-1a's avalanche over short ASCII strings
// keeps the folded output near-uniform across the 16-bit space, so
// collisions among concurrently live sessions track the birthday bound.
// The hash is deliberately non-injective: recovering a session from it is
// the resolution layer's job, not the codec's.
package beacon

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/attendly/beacon-service/internal/domain"
)

// PayloadSize is the wire size in bytes: org code byte + 16-bit hash.
const PayloadSize = 3

// Payload is the fixed-width broadcast unit. OrgCode is the
// most-significant field, TokenHash the least-significant.
type Payload struct {
	OrgCode   uint8
	TokenHash uint16
}

// HashToken projects a session token onto the 16-bit wire space.
// Deterministic and fast; multiple tokens may share an output.
func HashToken(token string) uint16 {
	h := fnv.New32a()
	h.Write([]byte(token))
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum)
}

// Encode builds the payload for a session token under an org code. The
// token direction is lossy; only its hash survives.
func Encode(orgCode uint8, token string) Payload {
	return Payload{OrgCode: orgCode, TokenHash: HashToken(token)}
}

// Decode splits a payload back into its fields. The token hash can only
// serve as a lookup key; the original token is not recoverable.
func Decode(p Payload) (orgCode uint8, tokenHash uint16) {
	return p.OrgCode, p.TokenHash
}

// MarshalBinary renders the bit-exact wire form.
func (p Payload) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PayloadSize)
	buf[0] = p.OrgCode
	binary.BigEndian.PutUint16(buf[1:], p.TokenHash)
	return buf, nil
}

// UnmarshalBinary parses the wire form, rejecting anything that is not
// exactly PayloadSize bytes.
func (p *Payload) UnmarshalBinary(data []byte) error {
	if len(data) != PayloadSize {
		return fmt.Errorf("%w: payload must be %d bytes, got %d", domain.ErrInvalidInput, PayloadSize, len(data))
	}
	p.OrgCode = data[0]
	p.TokenHash = binary.BigEndian.Uint16(data[1:])
	return nil
}
