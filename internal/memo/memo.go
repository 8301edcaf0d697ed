// Package memo implements the encrypted-memo construction for outgoing
// transfer outputs and the trial-decryption scan that lets a recipient
// discover incoming notes (§4.6).
//
// Grounded on internal/zerocash/tx.go's encryptNoteForAuctioneer/
// DecryptNoteFromAuctioneer (ephemeral-key + derived-symmetric-key
// encryption of a note payload) and on the obsidian-core shielded pool's
// trial-decrypt-and-match-commitment scan idiom
// (other_examples/...blockchain-shielded_pool.go's GetShieldedBalance).
// Unlike the teacher's ECDH+AES-GCM construction, this package's key
// schedule is MiMC-derived end to end (§4.6: "the key schedule
// remains H-derived and the receiver flow mirrors it exactly") and the
// cipher is a keccak-expanded XOR stream rather than an AEAD — the
// on-chain commitment is the authenticator, not the ciphertext tag.
package memo

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// Memo is the wire payload attached to a transfer output: an ephemeral
// public scalar, a nonce, and the ciphertext. Spec §3: "Ciphertext size
// <=128 bytes (soft bound)".
type Memo struct {
	E          field.Scalar
	Nonce      field.Scalar
	Ciphertext []byte
}

const softCiphertextBound = 128

// Payload is the plaintext note content a memo carries (§4.6 step 4).
type Payload struct {
	Amount       *big.Int
	Secret       field.Scalar
	Blinding     field.Scalar
	TokenSymbol  string
	TokenAddress field.Scalar
	Decimals     uint8
}

type wirePayload struct {
	Amount       string `json:"amount"`
	Secret       string `json:"secret"`
	Blinding     string `json:"blinding"`
	TokenSymbol  string `json:"token_symbol"`
	TokenAddress string `json:"token_address"`
	Decimals     uint8  `json:"decimals"`
}

func (p Payload) marshal() ([]byte, error) {
	return json.Marshal(wirePayload{
		Amount:       p.Amount.String(),
		Secret:       p.Secret.Hex(),
		Blinding:     p.Blinding.Hex(),
		TokenSymbol:  p.TokenSymbol,
		TokenAddress: p.TokenAddress.Hex(),
		Decimals:     p.Decimals,
	})
}

func unmarshalPayload(raw []byte) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		return Payload{}, walleterr.Wrap(walleterr.DecryptionFailed, "malformed memo payload", err)
	}
	amount, ok := new(big.Int).SetString(w.Amount, 10)
	if !ok {
		return Payload{}, walleterr.New(walleterr.DecryptionFailed, "malformed memo amount")
	}
	secret, err := hexToScalar(w.Secret)
	if err != nil {
		return Payload{}, err
	}
	blinding, err := hexToScalar(w.Blinding)
	if err != nil {
		return Payload{}, err
	}
	tokenAddr, err := hexToScalar(w.TokenAddress)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Amount:       amount,
		Secret:       secret,
		Blinding:     blinding,
		TokenSymbol:  w.TokenSymbol,
		TokenAddress: tokenAddr,
		Decimals:     w.Decimals,
	}, nil
}

func hexToScalar(s string) (field.Scalar, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return field.Scalar{}, walleterr.New(walleterr.DecryptionFailed, "malformed memo hex field")
	}
	var b [32]byte
	copy(b[:], raw)
	return field.FromBytes32(b), nil
}

// sharedSecret computes ss = H(E, target) — the sender computes it with
// A_target, the recipient with its own address; they agree iff the memo
// was meant for them (§4.6 step 2).
func sharedSecret(e field.Scalar, target field.Scalar) field.Scalar {
	return field.H2(e, target)
}

// Encrypt constructs an outgoing memo for payload, targeting owner
// targetAddress. Spec §4.6 steps 1-5.
func Encrypt(targetAddress field.Scalar, payload Payload) (Memo, error) {
	e, err := field.Random()
	if err != nil {
		return Memo{}, walleterr.Wrap(walleterr.InvalidInput, "draw ephemeral memo scalar", err)
	}
	eScalar := field.HDomain(0, e) // E = H(e, 0), per §4.6 step 1
	ss := sharedSecret(eScalar, targetAddress)

	nonce, err := field.Random()
	if err != nil {
		return Memo{}, walleterr.Wrap(walleterr.InvalidInput, "draw memo nonce", err)
	}
	key := field.H2(ss, nonce)

	plain, err := payload.marshal()
	if err != nil {
		return Memo{}, walleterr.Wrap(walleterr.InvalidInput, "marshal memo payload", err)
	}
	ct := xorStream(key, plain)
	if len(ct) > softCiphertextBound {
		// soft bound only: never reject, the wire format tolerates longer
		// ciphertexts (e.g. longer token symbols) at the cost of extra gas.
		_ = softCiphertextBound
	}
	return Memo{E: eScalar, Nonce: nonce, Ciphertext: ct}, nil
}

// Decrypt attempts to open a memo as ownAddress. It never errors on a
// genuine mismatch (spec: "DecryptionFailed ... is informational — not an
// error in scan context"); ok is false whenever the memo was not meant for
// this identity or the payload fails to parse.
func Decrypt(ownAddress field.Scalar, m Memo) (payload Payload, ok bool) {
	ss := sharedSecret(m.E, ownAddress)
	key := field.H2(ss, m.Nonce)
	plain := xorStream(key, m.Ciphertext)
	p, err := unmarshalPayload(plain)
	if err != nil {
		return Payload{}, false
	}
	return p, true
}

// xorStream XORs data against a keccak-expanded key stream derived from
// key: stream = keccak(key||0) || keccak(key||1) || ... truncated to
// len(data). Spec §4.6: "XOR-encrypt with k expanded by a keccak counter
// if the payload exceeds 32 bytes." The same expansion is used
// unconditionally here (a no-op for <=32-byte payloads) so encrypt/decrypt
// share one code path.
func xorStream(key field.Scalar, data []byte) []byte {
	kb := key.Bytes32()
	out := make([]byte, len(data))
	var counter uint32
	var block []byte
	for i := range out {
		if i%32 == 0 {
			block = keccakCounterBlock(kb, counter)
			counter++
		}
		out[i] = data[i] ^ block[i%32]
	}
	return out
}

func keccakCounterBlock(key [32]byte, counter uint32) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(key[:])
	var cb [4]byte
	cb[0] = byte(counter >> 24)
	cb[1] = byte(counter >> 16)
	cb[2] = byte(counter >> 8)
	cb[3] = byte(counter)
	h.Write(cb[:])
	return h.Sum(nil)
}

// Encode serializes a memo to the on-chain event payload format: E (32
// bytes) || nonce (32 bytes) || ciphertext.
func (m Memo) Encode() []byte {
	eb := m.E.Bytes32()
	nb := m.Nonce.Bytes32()
	out := make([]byte, 0, 64+len(m.Ciphertext))
	out = append(out, eb[:]...)
	out = append(out, nb[:]...)
	out = append(out, m.Ciphertext...)
	return out
}

// DecodeMemo parses the on-chain event payload format back into a Memo.
func DecodeMemo(b []byte) (Memo, error) {
	if len(b) < 64 {
		return Memo{}, walleterr.New(walleterr.EventMalformed, "encrypted memo shorter than E||nonce")
	}
	var eb, nb [32]byte
	copy(eb[:], b[0:32])
	copy(nb[:], b[32:64])
	ct := make([]byte, len(b)-64)
	copy(ct, b[64:])
	return Memo{E: field.FromBytes32(eb), Nonce: field.FromBytes32(nb), Ciphertext: ct}, nil
}
