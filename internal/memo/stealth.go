package memo

import (
	"golang.org/x/crypto/sha3"

	"github.com/notfartdev/zdoge-sub004/internal/field"
)

// ViewTagLen is the width of the fast-path view tag: the first 40 bits
// (5 bytes) of keccak(ss) (§4.6: "View-tag fast path (optional)").
const ViewTagLen = 5

// ViewTag derives the short tag a sender prepends to a stealth-address
// memo so receivers can skip full trial decryption when it doesn't match.
// Documented per §4.6 but not wired into Scanner: the base transfer
// flow always trial-decrypts, since the spec states the tag "is not
// required for the base transfer flow."
func ViewTag(ss field.Scalar) [ViewTagLen]byte {
	b := ss.Bytes32()
	h := sha3.NewLegacyKeccak256()
	h.Write(b[:])
	sum := h.Sum(nil)
	var tag [ViewTagLen]byte
	copy(tag[:], sum[:ViewTagLen])
	return tag
}

// MetaAddress is a stealth-address recipient's published (spend, view)
// pair, from which senders derive one-time addresses per event.
type MetaAddress struct {
	SpendPubkey field.Scalar
	ViewPubkey  field.Scalar
}

// DeriveOneTimeAddress computes the one-time shielded address a sender
// uses for a stealth payment: A_onetime = H(H(e, meta.ViewPubkey), meta.SpendPubkey),
// binding the ephemeral scalar and both halves of the meta-address.
func DeriveOneTimeAddress(e field.Scalar, meta MetaAddress) field.Scalar {
	shared := field.H2(e, meta.ViewPubkey)
	return field.H2(shared, meta.SpendPubkey)
}
