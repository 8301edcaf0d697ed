// Package field implements BN254 scalar-field reduction and the
// MiMC-Sponge(2,220,1) hash used throughout the shielded wallet core.
//
// BN254 is the only pairing curve with EVM precompiles, so it is the curve
// the deployed Groth16 verifier and the circomlib-compatible circuit
// constants (gnark's std/hash/mimc) assume.
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"
)

// Scalar is an element of Z_p, p the BN254 scalar-field modulus. The zero
// value is not a valid Scalar produced via NewScalar; construct via
// NewScalar/MustReduce/Random so the field-reduction invariant is enforced
// at the boundary rather than trusted from an untyped big.Int.
type Scalar struct {
	v fr.Element
}

// Modulus returns the BN254 scalar-field modulus p.
func Modulus() *big.Int {
	return fr.Modulus()
}

// NewScalar reduces x modulo p and returns the resulting Scalar. Unlike
// MustReduce it never panics; reduction of a non-canonical input is legal
// here (canonical-input rejection is the caller's job at decode boundaries).
func NewScalar(x *big.Int) Scalar {
	var e fr.Element
	e.SetBigInt(x)
	return Scalar{v: e}
}

// FromBytes32 interprets a big-endian 32-byte string as a field element,
// reducing it modulo p.
func FromBytes32(b [32]byte) Scalar {
	return NewScalar(new(big.Int).SetBytes(b[:]))
}

// MustCanonical returns an error if x is not already in [0, p).
func MustCanonical(x *big.Int) (Scalar, error) {
	if x.Sign() < 0 || x.Cmp(Modulus()) >= 0 {
		return Scalar{}, fmt.Errorf("field: value out of range [0, p)")
	}
	return NewScalar(x), nil
}

// Random draws a scalar from a 31-byte OS-CSPRNG read, reduced mod p. A
// 31-byte draw (rather than 32) keeps the raw integer comfortably below p
// without needing rejection sampling, avoiding the rare near-modulus bias a
// full 32-byte draw mod p would introduce.
func Random() (Scalar, error) {
	buf := make([]byte, 31)
	if _, err := rand.Read(buf); err != nil {
		return Scalar{}, fmt.Errorf("field: CSPRNG read failed: %w", err)
	}
	return NewScalar(new(big.Int).SetBytes(buf)), nil
}

// BigInt returns the canonical representative in [0, p).
func (s Scalar) BigInt() *big.Int {
	return s.v.BigInt(new(big.Int))
}

// Bytes32 returns the big-endian, left-padded 32-byte encoding.
func (s Scalar) Bytes32() [32]byte {
	b := s.v.Bytes()
	return b
}

// Hex returns lowercase hex, left-padded to 64 characters, no "0x" prefix.
func (s Scalar) Hex() string {
	b := s.Bytes32()
	return fmt.Sprintf("%064x", b[:])
}

// Equal reports whether two scalars are the same field element.
func (s Scalar) Equal(o Scalar) bool {
	return s.v.Equal(&o.v)
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Domain separation tags mixed into derivations, per §3.
const (
	DomainSpendingKey     = 0
	DomainViewingKey      = 1
	DomainShieldedAddress = 2
	DomainCommitment      = 3
	DomainNullifier       = 4
)

// H2 computes MiMC-Sponge(2,220,1) over two field elements. Deterministic
// and collision-resistant under the same assumption the deployed circuits
// rely on; any deviation from the constant schedule gnark's std/hash/mimc
// uses for BN254 breaks Merkle-root agreement with the on-chain verifier.
func H2(a, b Scalar) Scalar {
	h := mimcNative.NewMiMC()
	ab := a.Bytes32()
	bb := b.Bytes32()
	h.Write(ab[:])
	h.Write(bb[:])
	return FromBytes32(sum32(h.Sum(nil)))
}

// H3 computes MiMC-Sponge(2,220,1) over three field elements, by
// sequential absorption (Write(a); Write(b); Write(c); Sum()).
func H3(a, b, c Scalar) Scalar {
	h := mimcNative.NewMiMC()
	ab, bb, cb := a.Bytes32(), b.Bytes32(), c.Bytes32()
	h.Write(ab[:])
	h.Write(bb[:])
	h.Write(cb[:])
	return FromBytes32(sum32(h.Sum(nil)))
}

// HDomain mixes a small integer domain tag with a scalar: HDomain(tag, x) =
// H2(x, tag). Used for spending-key -> viewing-key / shielded-address
// derivation (§3): vk = H(sk, VIEWING_KEY), A = H(sk, SHIELDED_ADDRESS).
func HDomain(tag uint64, x Scalar) Scalar {
	return H2(x, NewScalar(new(big.Int).SetUint64(tag)))
}

func sum32(b []byte) [32]byte {
	var out [32]byte
	// mimc.Sum returns a field-sized big-endian digest; left-pad defensively
	// in case the underlying digest is shorter than 32 bytes.
	copy(out[32-len(b):], b)
	return out
}

// Keccak256Mod hashes data with Keccak-256 and reduces the digest modulo p.
// Used only for the tree's Z0 zero-seed (§3: Z0 = keccak256("dogenado")
// mod p), matching the on-chain Solidity keccak256 used for the same
// constant.
func Keccak256Mod(data []byte) Scalar {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return NewScalar(new(big.Int).SetBytes(h.Sum(nil)))
}

// AddressFromScalar truncates a scalar to its low 20 bytes, the EVM address
// convention used when a field element must be passed as an `address`-typed
// public input (e.g. the relayer/recipient scalars in §4.5).
func AddressFromScalar(s Scalar) [20]byte {
	b := s.Bytes32()
	var out [20]byte
	copy(out[:], b[12:])
	return out
}

// ScalarFromAddress left-pads a 20-byte EVM address into a field element.
func ScalarFromAddress(addr [20]byte) Scalar {
	var b [32]byte
	copy(b[12:], addr[:])
	return FromBytes32(b)
}
