package memo

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/notfartdev/zdoge-sub004/internal/chain"
	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/storage"
)

func testPayload() Payload {
	return Payload{
		Amount:       big.NewInt(1234),
		Secret:       field.NewScalar(big.NewInt(5)),
		Blinding:     field.NewScalar(big.NewInt(6)),
		TokenSymbol:  "DOGE",
		TokenAddress: field.NewScalar(big.NewInt(7)),
		Decimals:     18,
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	owner := field.NewScalar(big.NewInt(42))
	payload := testPayload()

	m, err := Encrypt(owner, payload)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, ok := Decrypt(owner, m)
	if !ok {
		t.Fatalf("Decrypt: expected ok")
	}
	if got.Amount.Cmp(payload.Amount) != 0 {
		t.Fatalf("amount mismatch: got %s want %s", got.Amount, payload.Amount)
	}
	if !got.Secret.Equal(payload.Secret) || !got.Blinding.Equal(payload.Blinding) {
		t.Fatalf("secret/blinding mismatch")
	}
	if got.TokenSymbol != payload.TokenSymbol {
		t.Fatalf("token symbol mismatch")
	}
}

func TestDecryptWrongOwnerFails(t *testing.T) {
	owner := field.NewScalar(big.NewInt(42))
	wrongOwner := field.NewScalar(big.NewInt(43))
	m, err := Encrypt(owner, testPayload())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, ok := Decrypt(wrongOwner, m); ok {
		t.Fatalf("expected decryption to fail for the wrong owner")
	}
}

func TestMemoEncodeDecodeRoundTrip(t *testing.T) {
	owner := field.NewScalar(big.NewInt(42))
	m, err := Encrypt(owner, testPayload())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	encoded := m.Encode()
	decoded, err := DecodeMemo(encoded)
	if err != nil {
		t.Fatalf("DecodeMemo: %v", err)
	}
	if !decoded.E.Equal(m.E) || !decoded.Nonce.Equal(m.Nonce) {
		t.Fatalf("E/Nonce mismatch after encode/decode round trip")
	}
	if _, ok := Decrypt(owner, decoded); !ok {
		t.Fatalf("expected decoded memo to decrypt")
	}
}

func TestDecodeMemoRejectsShortPayload(t *testing.T) {
	if _, err := DecodeMemo(make([]byte, 10)); err == nil {
		t.Fatalf("expected error decoding a too-short memo")
	}
}

func TestProcessedSetDedupAndFIFOEviction(t *testing.T) {
	store := storage.NewInMemoryStore()
	set, err := LoadProcessedSet(store, "processed_transfers")
	if err != nil {
		t.Fatalf("LoadProcessedSet: %v", err)
	}
	if set.Has("a") {
		t.Fatalf("fresh set should not contain anything")
	}
	if err := set.Add("a"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !set.Has("a") {
		t.Fatalf("expected a to be present after Add")
	}
	if err := set.Add("a"); err != nil {
		t.Fatalf("re-Add should be a no-op, got %v", err)
	}

	for i := 0; i < maxProcessedEntries; i++ {
		if err := set.Add(string(rune(1000 + i))); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if set.Has("a") {
		t.Fatalf("expected the oldest entry to be evicted once the cap is exceeded")
	}
}

func TestProcessedSetPersistsAcrossLoad(t *testing.T) {
	store := storage.NewInMemoryStore()
	set, err := LoadProcessedSet(store, "processed_transfers")
	if err != nil {
		t.Fatalf("LoadProcessedSet: %v", err)
	}
	if err := set.Add("tx:commitment"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	reloaded, err := LoadProcessedSet(store, "processed_transfers")
	if err != nil {
		t.Fatalf("LoadProcessedSet reload: %v", err)
	}
	if !reloaded.Has("tx:commitment") {
		t.Fatalf("expected persisted entry to survive reload")
	}
}

type stubAdapter struct {
	height uint64
	logs   []types.Log
}

func (s *stubAdapter) BlockNumber(_ context.Context) (uint64, error) { return s.height, nil }
func (s *stubAdapter) GetLogs(_ context.Context, _ chain.LogQuery) ([]types.Log, error) {
	return s.logs, nil
}
func (s *stubAdapter) Call(_ context.Context, _ common.Address, _ [4]byte, _ []byte) ([]byte, error) {
	return nil, nil
}
func (s *stubAdapter) Balance(_ context.Context, _ common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (s *stubAdapter) SendTransaction(_ context.Context, _ common.Address, _ []byte, _ *big.Int) (common.Hash, error) {
	return common.Hash{}, nil
}

// buildTransferData packs a transfer event's data tuple matching
// chain.ParseTransferEvent's layout: c1, c2, an unused third word, two
// length-prefixed memo byte strings, and a timestamp word.
func buildTransferData(t *testing.T, c1, c2 field.Scalar, memo1, memo2 []byte) []byte {
	t.Helper()
	word := func(b [32]byte) []byte { return b[:] }
	lengthPrefixed := func(b []byte) []byte {
		n := len(b)
		var lenWord [32]byte
		big.NewInt(int64(n)).FillBytes(lenWord[:])
		padded := (n + 31) / 32 * 32
		out := make([]byte, 0, 32+padded)
		out = append(out, lenWord[:]...)
		out = append(out, b...)
		out = append(out, make([]byte, padded-n)...)
		return out
	}
	var out []byte
	out = append(out, word(c1.Bytes32())...)
	out = append(out, word(c2.Bytes32())...)
	out = append(out, make([]byte, 32)...) // unused third word
	out = append(out, lengthPrefixed(memo1)...)
	out = append(out, lengthPrefixed(memo2)...)
	out = append(out, make([]byte, 32)...) // timestamp
	return out
}

func TestScannerDiscoversMatchingOutput(t *testing.T) {
	owner := field.NewScalar(big.NewInt(7))
	tok := note.Token{Symbol: "DOGE", Address: field.NewScalar(big.NewInt(1)), Decimals: 18}

	n, err := note.New(big.NewInt(500), owner, tok)
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	m, err := Encrypt(owner, Payload{
		Amount:       n.Value,
		Secret:       n.Secret,
		Blinding:     n.Blinding,
		TokenSymbol:  tok.Symbol,
		TokenAddress: tok.Address,
		Decimals:     tok.Decimals,
	})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	pool := common.HexToAddress("0xabc0000000000000000000000000000000000a")
	l := types.Log{
		Address: pool,
		Topics: []common.Hash{
			chain.TransferEventTopic,
			common.Hash(n.Commitment.Bytes32()), // unused slot, just needs 3+ topics
			common.BigToHash(big.NewInt(0)),
		},
		TxHash: common.HexToHash("0x01"),
	}
	l.Data = buildTransferData(t, n.Commitment, field.Scalar{}, m.Encode(), []byte{})

	store := storage.NewInMemoryStore()
	processed, err := LoadProcessedSet(store, "processed_transfers")
	if err != nil {
		t.Fatalf("LoadProcessedSet: %v", err)
	}
	scanner := NewScanner(&stubAdapter{height: 100, logs: []types.Log{l}}, pool, owner, tok, processed)
	scanner.Limiter.Reset()

	discovered, err := scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(discovered) != 1 {
		t.Fatalf("expected exactly one discovered note, got %d", len(discovered))
	}
	if discovered[0].Note.Value.Cmp(n.Value) != 0 {
		t.Fatalf("discovered note value mismatch")
	}

	// second tick must not re-surface the same output
	scanner2 := NewScanner(&stubAdapter{height: 100, logs: []types.Log{l}}, pool, owner, tok, processed)
	scanner2.Limiter.Reset()
	discovered2, err := scanner2.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(discovered2) != 0 {
		t.Fatalf("expected the already-processed output to be skipped, got %d", len(discovered2))
	}
}
