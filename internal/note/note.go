// Package note implements the shielded note record, its commitment,
// decimal amount parsing, and the shareable base64 wire encoding.
// Grounded on zerocash/note.go (NewNote drawing rho/rand and computing a
// commitment) and internal/zerocash/tx.go's note JSON round-trip, adapted
// to the spec's (value, owner, secret, blinding, token-triple) shape.
package note

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

const (
	shareVersion = 1
	sharePrefix  = "dogenado-note-v1-"
)

// Token identifies the asset a note denominates.
type Token struct {
	Symbol   string
	Address  field.Scalar
	Decimals uint8
}

// Note is a shielded UTXO: value v, owner address A, secret s, blinding b,
// commitment C = H(H(v,A), H(s,b)), plus token metadata and the leaf index
// assigned once the commitment is confirmed on-chain.
type Note struct {
	Value      *big.Int
	Owner      field.Scalar
	Secret     field.Scalar
	Blinding   field.Scalar
	Commitment field.Scalar
	Token      Token
	LeafIndex  *uint64
	CreatedAt  time.Time
}

// Commitment computes C = H(H(v,A), H(s,b)) for the given fields, without
// constructing a full Note; used both by New and by witness assembly to
// independently recompute a commitment before trusting it.
func Commitment(value *big.Int, owner, secret, blinding field.Scalar) field.Scalar {
	left := field.H2(field.NewScalar(value), owner)
	right := field.H2(secret, blinding)
	return field.H2(left, right)
}

// New constructs a fresh note for (value, owner, token), drawing random
// secret and blinding and computing the commitment. Zero value is
// permitted (fee-less variants, §4.3); negative values are rejected.
func New(value *big.Int, owner field.Scalar, tok Token) (*Note, error) {
	if value.Sign() < 0 {
		return nil, walleterr.New(walleterr.InvalidInput, "note amount must be >= 0")
	}
	if value.Cmp(field.Modulus()) >= 0 {
		return nil, walleterr.New(walleterr.InvalidInput, "note amount must be < p")
	}
	s, err := field.Random()
	if err != nil {
		return nil, walleterr.Wrap(walleterr.InvalidInput, "draw note secret", err)
	}
	b, err := field.Random()
	if err != nil {
		return nil, walleterr.Wrap(walleterr.InvalidInput, "draw note blinding", err)
	}
	return &Note{
		Value:      new(big.Int).Set(value),
		Owner:      owner,
		Secret:     s,
		Blinding:   b,
		Commitment: Commitment(value, owner, s, b),
		Token:      tok,
		CreatedAt:  time.Now(),
	}, nil
}

// Reconstruct rebuilds a note from its full field set (value, owner,
// secret, blinding) and verifies the claimed commitment, rejecting any
// mismatch — §4.3: "Deserialization must recompute C and reject
// mismatches."
func Reconstruct(value *big.Int, owner, secret, blinding, claimed field.Scalar, tok Token) (*Note, error) {
	c := Commitment(value, owner, secret, blinding)
	if !c.Equal(claimed) {
		return nil, walleterr.New(walleterr.CommitmentMismatch, "recomputed commitment does not match stored commitment")
	}
	return &Note{
		Value:      new(big.Int).Set(value),
		Owner:      owner,
		Secret:     secret,
		Blinding:   blinding,
		Commitment: c,
		Token:      tok,
	}, nil
}

// IsSpendable reports whether the note has a known leaf index. A note with
// leafIndex == nil cannot be spent (§8 boundary behavior).
func (n *Note) IsSpendable() bool {
	return n.LeafIndex != nil
}

// NullifierHash computes NH = H(N, N) where N = H(H(s, leafIndex), sk),
// per §3. Requires a confirmed leaf index.
func (n *Note) NullifierHash(sk field.Scalar) (field.Scalar, error) {
	if n.LeafIndex == nil {
		return field.Scalar{}, walleterr.New(walleterr.NoLeafIndex, "note has no confirmed leaf index")
	}
	leaf := field.NewScalar(new(big.Int).SetUint64(*n.LeafIndex))
	nullifier := field.H2(field.H2(n.Secret, leaf), sk)
	return field.H2(nullifier, nullifier), nil
}

// --- amount parsing ---

// ParseAmount converts a decimal string (e.g. "1.5") into the token's
// smallest unit, using decimals. Zero is permitted; negative and malformed
// inputs are rejected.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, walleterr.New(walleterr.InvalidInput, "empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := s, "", false
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
		hasFrac = true
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return nil, walleterr.New(walleterr.InvalidInput, "amount must be a decimal number")
	}
	if len(frac) > int(decimals) {
		return nil, walleterr.New(walleterr.InvalidInput, "amount has more precision than token decimals")
	}
	frac = frac + strings.Repeat("0", int(decimals)-len(frac))
	combined, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, walleterr.New(walleterr.InvalidInput, "amount out of range")
	}
	if neg {
		if combined.Sign() == 0 {
			return combined, nil
		}
		return nil, walleterr.New(walleterr.InvalidInput, "negative amounts are rejected")
	}
	return combined, nil
}

func isDigits(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders a smallest-unit integer as a decimal string with
// the token's decimals.
func FormatAmount(v *big.Int, decimals uint8) string {
	if decimals == 0 {
		return v.String()
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(v, scale, frac)
	fracStr := frac.String()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

// --- serialization ---

// Blob is the at-rest / wire representation of a note.
type Blob struct {
	AmountDec      string  `json:"amount_dec"`
	OwnerPubkeyHex string  `json:"ownerPubkey_hex64"`
	SecretHex      string  `json:"secret_hex64"`
	BlindingHex    string  `json:"blinding_hex64"`
	CommitmentHex  string  `json:"commitment_hex64"`
	LeafIndex      *uint64 `json:"leafIndex,omitempty"`
	TokenSymbol    string  `json:"token"`
	TokenAddress   string  `json:"tokenAddress"`
	Decimals       uint8   `json:"decimals"`
	CreatedAt      int64   `json:"createdAt"`
	Version        int     `json:"version"`
}

// Serialize produces the persisted/wire blob for a note.
func (n *Note) Serialize() Blob {
	return Blob{
		AmountDec:      n.Value.String(),
		OwnerPubkeyHex: n.Owner.Hex(),
		SecretHex:      n.Secret.Hex(),
		BlindingHex:    n.Blinding.Hex(),
		CommitmentHex:  n.Commitment.Hex(),
		LeafIndex:      n.LeafIndex,
		TokenSymbol:    n.Token.Symbol,
		TokenAddress:   n.Token.Address.Hex(),
		Decimals:       n.Token.Decimals,
		CreatedAt:      n.CreatedAt.Unix(),
		Version:        shareVersion,
	}
}

// DeserializeBlob rebuilds a Note from a Blob, recomputing and verifying
// the commitment (§4.3).
func DeserializeBlob(b Blob) (*Note, error) {
	if b.Version != shareVersion {
		return nil, walleterr.New(walleterr.InvalidInput, fmt.Sprintf("unsupported note version %d", b.Version))
	}
	if b.TokenSymbol == "" || b.TokenAddress == "" {
		return nil, walleterr.New(walleterr.InvalidInput, "missing token metadata")
	}
	value, ok := new(big.Int).SetString(b.AmountDec, 10)
	if !ok || value.Sign() < 0 {
		return nil, walleterr.New(walleterr.InvalidInput, "invalid stored amount")
	}
	owner, err := hexScalar(b.OwnerPubkeyHex)
	if err != nil {
		return nil, err
	}
	secret, err := hexScalar(b.SecretHex)
	if err != nil {
		return nil, err
	}
	blinding, err := hexScalar(b.BlindingHex)
	if err != nil {
		return nil, err
	}
	claimed, err := hexScalar(b.CommitmentHex)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := hexScalar(b.TokenAddress)
	if err != nil {
		return nil, err
	}
	n, err := Reconstruct(value, owner, secret, blinding, claimed, Token{
		Symbol:   b.TokenSymbol,
		Address:  tokenAddr,
		Decimals: b.Decimals,
	})
	if err != nil {
		return nil, err
	}
	n.LeafIndex = b.LeafIndex
	if b.CreatedAt > 0 {
		n.CreatedAt = time.Unix(b.CreatedAt, 0)
	}
	return n, nil
}

func hexScalar(s string) (field.Scalar, error) {
	var b [32]byte
	raw, err := decodeHex64(s)
	if err != nil {
		return field.Scalar{}, err
	}
	copy(b[:], raw)
	return field.FromBytes32(b), nil
}

func decodeHex64(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != 64 {
		return nil, walleterr.New(walleterr.InvalidInput, "expected 64 hex digits")
	}
	out := make([]byte, 32)
	for i := 0; i < 32; i++ {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, walleterr.New(walleterr.InvalidInput, "invalid hex digit")
	}
}

// ShareEncode renders the note as "dogenado-note-v1-<base64(json)>".
func ShareEncode(n *Note) (string, error) {
	raw, err := json.Marshal(n.Serialize())
	if err != nil {
		return "", walleterr.Wrap(walleterr.InvalidInput, "marshal note", err)
	}
	return sharePrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// ShareDecode parses a "dogenado-note-v1-..." string, accepting only
// version 1.
func ShareDecode(s string) (*Note, error) {
	if !strings.HasPrefix(s, sharePrefix) {
		return nil, walleterr.New(walleterr.InvalidInput, "unrecognized note share prefix")
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(sharePrefix):])
	if err != nil {
		return nil, walleterr.Wrap(walleterr.InvalidInput, "invalid base64 in note share", err)
	}
	var b Blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, walleterr.Wrap(walleterr.InvalidInput, "invalid note share payload", err)
	}
	return DeserializeBlob(b)
}
