package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/notfartdev/zdoge-sub004/internal/field"
)

type fakeAdapter struct {
	calls map[[4]byte][]byte
	err   error
}

func (f *fakeAdapter) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeAdapter) GetLogs(ctx context.Context, q LogQuery) ([]types.Log, error) {
	return nil, nil
}
func (f *fakeAdapter) Call(ctx context.Context, to common.Address, selector [4]byte, args []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.calls[selector], nil
}
func (f *fakeAdapter) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return nil, nil
}
func (f *fakeAdapter) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	return common.Hash{}, nil
}

func word32(n uint64) [32]byte {
	var b [32]byte
	bs := new(big.Int).SetUint64(n).Bytes()
	copy(b[32-len(bs):], bs)
	return b
}

func TestIsKnownRootTrueFalse(t *testing.T) {
	pool := common.HexToAddress("0x1")
	root := field.NewScalar(big.NewInt(7))
	yes := &fakeAdapter{calls: map[[4]byte][]byte{SelectorIsKnownRoot: {0x01}}}
	ok, err := IsKnownRoot(context.Background(), yes, pool, root)
	if err != nil || !ok {
		t.Fatalf("expected known root true, got %v %v", ok, err)
	}
	no := &fakeAdapter{calls: map[[4]byte][]byte{SelectorIsKnownRoot: {0x00}}}
	ok, err = IsKnownRoot(context.Background(), no, pool, root)
	if err != nil || ok {
		t.Fatalf("expected known root false, got %v %v", ok, err)
	}
}

func TestIsKnownRootEmptyResultIsMalformed(t *testing.T) {
	pool := common.HexToAddress("0x1")
	root := field.NewScalar(big.NewInt(7))
	a := &fakeAdapter{calls: map[[4]byte][]byte{}}
	if _, err := IsKnownRoot(context.Background(), a, pool, root); err == nil {
		t.Errorf("expected error for empty result")
	}
}

func TestLatestRootParsesScalar(t *testing.T) {
	pool := common.HexToAddress("0x1")
	want := field.NewScalar(big.NewInt(123456))
	wb := want.Bytes32()
	a := &fakeAdapter{calls: map[[4]byte][]byte{SelectorGetLatestRoot: wb[:]}}
	got, err := LatestRoot(context.Background(), a, pool)
	if err != nil {
		t.Fatalf("LatestRoot failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("LatestRoot = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestIsSpentTrueFalse(t *testing.T) {
	pool := common.HexToAddress("0x1")
	nh := field.NewScalar(big.NewInt(9))
	spent := &fakeAdapter{calls: map[[4]byte][]byte{SelectorIsSpent: {0x01}}}
	ok, err := IsSpent(context.Background(), spent, pool, nh)
	if err != nil || !ok {
		t.Fatalf("expected spent true, got %v %v", ok, err)
	}
}

func TestParseDepositEventRequiresThreeTopics(t *testing.T) {
	l := types.Log{Topics: []common.Hash{common.HexToHash("0x1")}}
	if _, err := ParseDepositEvent(l); err == nil {
		t.Errorf("expected error for too few topics")
	}
}

func TestParseDepositEventExtractsFields(t *testing.T) {
	commit := field.NewScalar(big.NewInt(999))
	cb := commit.Bytes32()
	leafIdx := word32(42)
	l := types.Log{
		Topics: []common.Hash{common.HexToHash("0x0"), common.Hash(cb), common.Hash(leafIdx)},
		TxHash: common.HexToHash("0xabc"),
	}
	ev, err := ParseDepositEvent(l)
	if err != nil {
		t.Fatalf("ParseDepositEvent failed: %v", err)
	}
	if !ev.Commitment.Equal(commit) {
		t.Errorf("commitment mismatch")
	}
	if ev.LeafIndex != 42 {
		t.Errorf("leaf index = %d, want 42", ev.LeafIndex)
	}
}

func lengthPrefixed(payload []byte) []byte {
	n := uint64(len(payload))
	out := word32(n)[:]
	padded := (n + 31) / 32 * 32
	body := make([]byte, padded)
	copy(body, payload)
	return append(out, body...)
}

func TestParseTransferEventRoundTrip(t *testing.T) {
	nh := field.NewScalar(big.NewInt(1))
	nhb := nh.Bytes32()
	l1 := word32(3)
	l2 := word32(4)
	c1 := field.NewScalar(big.NewInt(10))
	c2 := field.NewScalar(big.NewInt(20))
	c1b := c1.Bytes32()
	c2b := c2.Bytes32()

	var data []byte
	data = append(data, c1b[:]...)
	data = append(data, c2b[:]...)
	data = append(data, word32(0)[:]...) // reserved/offset word at index 2
	data = append(data, lengthPrefixed([]byte("memo-one"))...)
	data = append(data, lengthPrefixed([]byte("memo-two"))...)
	data = append(data, word32(1700000000)[:]...)

	l := types.Log{
		Topics: []common.Hash{common.HexToHash("0x0"), common.Hash(nhb), common.Hash(l1), common.Hash(l2)},
		Data:   data,
		TxHash: common.HexToHash("0xdef"),
	}
	ev, err := ParseTransferEvent(l)
	if err != nil {
		t.Fatalf("ParseTransferEvent failed: %v", err)
	}
	if !ev.NullifierHash.Equal(nh) {
		t.Errorf("nullifier hash mismatch")
	}
	if ev.LeafIndex1 != 3 || ev.LeafIndex2 != 4 {
		t.Errorf("leaf indices = %d, %d, want 3, 4", ev.LeafIndex1, ev.LeafIndex2)
	}
	if !ev.OutputCommitment1.Equal(c1) || !ev.OutputCommitment2.Equal(c2) {
		t.Errorf("output commitments mismatch")
	}
	if string(ev.EncryptedMemo1) != "memo-one" || string(ev.EncryptedMemo2) != "memo-two" {
		t.Errorf("memos mismatch: %s / %s", ev.EncryptedMemo1, ev.EncryptedMemo2)
	}
	if ev.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", ev.Timestamp)
	}
}

func TestParseUnshieldEventV2NoChange(t *testing.T) {
	nh := field.NewScalar(big.NewInt(1))
	nhb := nh.Bytes32()
	recipient := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	token := common.HexToAddress("0xbbbb000000000000000000000000000000000b")
	relayer := common.HexToAddress("0xcccc000000000000000000000000000000000c")

	var data []byte
	data = append(data, word32(1000)[:]...) // amount
	var relayerWord [32]byte
	copy(relayerWord[12:], relayer.Bytes())
	data = append(data, relayerWord[:]...)
	data = append(data, word32(10)[:]...) // fee
	data = append(data, word32(1700000001)[:]...)

	l := types.Log{
		Topics: []common.Hash{
			common.HexToHash("0x0"),
			common.Hash(nhb),
			common.BytesToHash(recipient.Bytes()),
			common.BytesToHash(token.Bytes()),
		},
		Data: data,
	}
	ev, err := ParseUnshieldEvent(l)
	if err != nil {
		t.Fatalf("ParseUnshieldEvent (V2) failed: %v", err)
	}
	if ev.HasChange {
		t.Errorf("V2 event should not carry a change commitment")
	}
	if ev.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("amount = %s, want 1000", ev.Amount)
	}
	if ev.Recipient != recipient || ev.Token != token {
		t.Errorf("recipient/token mismatch")
	}
}

func TestParseUnshieldEventV3WithChange(t *testing.T) {
	nh := field.NewScalar(big.NewInt(1))
	nhb := nh.Bytes32()
	recipient := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	token := common.HexToAddress("0xbbbb000000000000000000000000000000000b")
	relayer := common.HexToAddress("0xcccc000000000000000000000000000000000c")
	change := field.NewScalar(big.NewInt(55))
	changeB := change.Bytes32()

	var data []byte
	data = append(data, word32(1000)[:]...)
	data = append(data, changeB[:]...)
	var relayerWord [32]byte
	copy(relayerWord[12:], relayer.Bytes())
	data = append(data, relayerWord[:]...)
	data = append(data, word32(10)[:]...)
	data = append(data, word32(1700000002)[:]...)

	l := types.Log{
		Topics: []common.Hash{
			common.HexToHash("0x0"),
			common.Hash(nhb),
			common.BytesToHash(recipient.Bytes()),
			common.BytesToHash(token.Bytes()),
		},
		Data: data,
	}
	ev, err := ParseUnshieldEvent(l)
	if err != nil {
		t.Fatalf("ParseUnshieldEvent (V3) failed: %v", err)
	}
	if !ev.HasChange {
		t.Errorf("V3 event should carry a change commitment")
	}
	if !ev.ChangeCommitment.Equal(change) {
		t.Errorf("change commitment mismatch")
	}
}

func TestParseUnshieldEventRejectsFeeExceedingAmount(t *testing.T) {
	nh := field.NewScalar(big.NewInt(1))
	nhb := nh.Bytes32()
	recipient := common.HexToAddress("0xaaaa000000000000000000000000000000000a")
	token := common.HexToAddress("0xbbbb000000000000000000000000000000000b")
	relayer := common.HexToAddress("0xcccc000000000000000000000000000000000c")

	var data []byte
	data = append(data, word32(5)[:]...) // amount
	var relayerWord [32]byte
	copy(relayerWord[12:], relayer.Bytes())
	data = append(data, relayerWord[:]...)
	data = append(data, word32(10)[:]...) // fee > amount
	data = append(data, word32(1700000003)[:]...)

	l := types.Log{
		Topics: []common.Hash{
			common.HexToHash("0x0"),
			common.Hash(nhb),
			common.BytesToHash(recipient.Bytes()),
			common.BytesToHash(token.Bytes()),
		},
		Data: data,
	}
	if _, err := ParseUnshieldEvent(l); err == nil {
		t.Errorf("expected error when fee exceeds amount")
	}
}

func TestParseUnshieldEventRejectsBadDataLength(t *testing.T) {
	nh := field.NewScalar(big.NewInt(1))
	nhb := nh.Bytes32()
	l := types.Log{
		Topics: []common.Hash{
			common.HexToHash("0x0"),
			common.Hash(nhb),
			common.HexToHash("0x1"),
			common.HexToHash("0x2"),
		},
		Data: make([]byte, 17), // matches neither V2 nor V3 word count
	}
	if _, err := ParseUnshieldEvent(l); err == nil {
		t.Errorf("expected error for malformed data length")
	}
}
