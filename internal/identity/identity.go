// Package identity implements the shielded identity: spending key, derived
// viewing key and shielded address, and their canonical string encodings.
// Grounded on internal/zerocash/api.go's Wallet/Participant key material
// (sk/pk fields, LoadWallet/Save) generalized to the spec's three-level
// sk -> vk -> A derivation, plus the Synnergy wallet.go idiom of an
// explicit Wipe for sensitive material instead of relying on the GC.
package identity

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

const (
	addressPrefix       = "zdoge:"
	legacyPrefix        = "dogenado:z"
	legacySupportedVer  = "1"
	currentSerialVer    = 1
	addressLegacyDigits = 1 // version digit width in the legacy prefix
)

// Identity is a shielded spending identity: sk is the private spending key,
// vk the viewing key (H(sk,1)), A the shielded address (H(sk,2)).
type Identity struct {
	sk field.Scalar
	vk field.Scalar
	a  field.Scalar
}

// SpendingKey returns the raw spending key scalar. Callers that only need
// to view incoming funds should prefer ViewingKey/Address.
func (id Identity) SpendingKey() field.Scalar { return id.sk }

// ViewingKey returns vk = H(sk, VIEWING_KEY).
func (id Identity) ViewingKey() field.Scalar { return id.vk }

// Address returns the shielded address A = H(sk, SHIELDED_ADDRESS).
func (id Identity) Address() field.Scalar { return id.a }

func derive(sk field.Scalar) Identity {
	return Identity{
		sk: sk,
		vk: field.HDomain(field.DomainViewingKey, sk),
		a:  field.HDomain(field.DomainShieldedAddress, sk),
	}
}

// Generate draws a fresh spending key from the OS CSPRNG and derives the
// rest of the identity.
func Generate() (Identity, error) {
	sk, err := field.Random()
	if err != nil {
		return Identity{}, walleterr.Wrap(walleterr.InvalidInput, "draw spending key", err)
	}
	return derive(sk), nil
}

// Recover rebuilds an Identity from an existing spending key, rejecting
// sk <= 0 or sk >= p.
func Recover(sk *big.Int) (Identity, error) {
	if sk.Sign() <= 0 {
		return Identity{}, walleterr.New(walleterr.InvalidInput, "spending key must be positive")
	}
	if sk.Cmp(field.Modulus()) >= 0 {
		return Identity{}, walleterr.New(walleterr.InvalidInput, "spending key must be < p")
	}
	return derive(field.NewScalar(sk)), nil
}

// EncodeAddress renders A as "zdoge:<64-hex>".
func EncodeAddress(a field.Scalar) string {
	return addressPrefix + a.Hex()
}

// DecodeAddress parses either the canonical "zdoge:<64-hex>" form or the
// legacy "dogenado:z1<64-hex>" form (version must be "1"). The hex portion
// is case-insensitive.
func DecodeAddress(s string) (field.Scalar, error) {
	lower := strings.ToLower(s)
	var hexPart string
	switch {
	case strings.HasPrefix(lower, addressPrefix):
		hexPart = lower[len(addressPrefix):]
	case strings.HasPrefix(lower, legacyPrefix):
		rest := lower[len(legacyPrefix):]
		if len(rest) < addressLegacyDigits || rest[:addressLegacyDigits] != legacySupportedVer {
			return field.Scalar{}, walleterr.New(walleterr.InvalidInput, "unsupported legacy address version")
		}
		hexPart = rest[addressLegacyDigits:]
	default:
		return field.Scalar{}, walleterr.New(walleterr.InvalidInput, "unrecognized shielded address prefix")
	}
	if len(hexPart) != 64 {
		return field.Scalar{}, walleterr.New(walleterr.InvalidInput, "shielded address must carry 64 hex digits")
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return field.Scalar{}, walleterr.Wrap(walleterr.InvalidInput, "invalid hex in shielded address", err)
	}
	x := new(big.Int).SetBytes(raw)
	if x.Cmp(field.Modulus()) >= 0 {
		return field.Scalar{}, walleterr.New(walleterr.InvalidInput, "shielded address scalar >= p")
	}
	return field.NewScalar(x), nil
}

// Blob is the at-rest JSON-ish representation persisted through
// internal/storage, matching spec.md §6's "identity" layout.
type Blob struct {
	SpendingKeyHex     string `json:"spendingKey_hex64"`
	ViewingKeyHex      string `json:"viewingKey_hex64"`
	ShieldedAddressHex string `json:"shieldedAddress_hex64"`
	AddressString      string `json:"addressString"`
	Version            int    `json:"version"`
}

// Serialize produces the persisted blob for an identity.
func (id Identity) Serialize() Blob {
	return Blob{
		SpendingKeyHex:     id.sk.Hex(),
		ViewingKeyHex:      id.vk.Hex(),
		ShieldedAddressHex: id.a.Hex(),
		AddressString:      EncodeAddress(id.a),
		Version:            currentSerialVer,
	}
}

// Deserialize rebuilds an Identity from a persisted blob, re-deriving vk
// and A from sk rather than trusting the stored copies, and rejects
// mismatches the same way note deserialization rejects a bad commitment.
func Deserialize(b Blob) (Identity, error) {
	if b.Version != currentSerialVer {
		return Identity{}, walleterr.New(walleterr.InvalidInput, fmt.Sprintf("unsupported identity blob version %d", b.Version))
	}
	raw, err := hex.DecodeString(b.SpendingKeyHex)
	if err != nil || len(raw) != 32 {
		return Identity{}, walleterr.New(walleterr.InvalidInput, "malformed spending key hex")
	}
	sk := new(big.Int).SetBytes(raw)
	id, err := Recover(sk)
	if err != nil {
		return Identity{}, err
	}
	if id.vk.Hex() != b.ViewingKeyHex || id.a.Hex() != b.ShieldedAddressHex {
		return Identity{}, walleterr.New(walleterr.CommitmentMismatch, "stored viewing key / address do not match derivation")
	}
	return id, nil
}

// ExportSpendingKey renders sk as 64 lowercase hex digits.
func (id Identity) ExportSpendingKey() string {
	return id.sk.Hex()
}

// ImportSpendingKey parses a 64-hex spending key string and rebuilds the
// identity, applying the same range checks as Recover.
func ImportSpendingKey(hexStr string) (Identity, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(hexStr), "0x"))
	if err != nil || len(raw) != 32 {
		return Identity{}, walleterr.New(walleterr.InvalidInput, "spending key must be 64 hex digits")
	}
	return Recover(new(big.Int).SetBytes(raw))
}

// Wipe zeroes a spending-key byte buffer in place, matching the
// examples' HD-wallet Wipe idiom for sensitive material that outlives its
// need (e.g. a decoded import buffer).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
