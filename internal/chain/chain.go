// Package chain defines the narrow RPC interface the wallet core depends
// on (§6) and the parsers that turn raw event logs into the shield,
// transfer, and unshield event shapes the rest of the core consumes. No
// RPC implementation lives here — that collaborator is explicitly out of
// scope (§1); only the interface and the log vocabulary do.
//
// Grounded on other_examples' wyf-ACCEPT-eth2030 pkg/crypto/shielded.go,
// which is itself a direct go-ethereum consumer: its use of
// core/types.Log, common.Hash and common.Address is the idiomatic EVM
// event vocabulary this package adopts, since no other pack repo models
// EVM logs natively.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// Known ABI function selectors the core calls via Adapter.Call (§6).
var (
	SelectorGetLatestRoot = [4]byte{0x54, 0x45, 0xb0, 0x07}
	SelectorIsKnownRoot   = [4]byte{0x6d, 0x98, 0x33, 0xe3}
	// SelectorIsSpent is the pool's is_spent(bytes32) view selector, used
	// for the wallet service's just-in-time and post-confirmation
	// nullifier checks (§4.7). The spec names the view but not a
	// concrete selector value; kept in the same 4-byte literal style as
	// the two selectors it does name.
	SelectorIsSpent = [4]byte{0x5f, 0x15, 0x81, 0x8b}
)

// TransferEventTopic is the transfer event's topic[0] signature hash.
var TransferEventTopic = common.HexToHash("0xc04b6b39000000000000000000000000000000000000000000000000001bc014")

// LogQuery is the filter passed to Adapter.GetLogs.
type LogQuery struct {
	Address   common.Address
	Topics    [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// Adapter is the minimal chain-access surface the core depends on; a host
// binary supplies a concrete implementation (JSON-RPC, indexer, mock).
type Adapter interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, q LogQuery) ([]types.Log, error)
	Call(ctx context.Context, to common.Address, selector [4]byte, args []byte) ([]byte, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// IsKnownRoot calls the pool's is_known_root(bytes32) view.
func IsKnownRoot(ctx context.Context, a Adapter, pool common.Address, root field.Scalar) (bool, error) {
	b := root.Bytes32()
	out, err := a.Call(ctx, pool, SelectorIsKnownRoot, b[:])
	if err != nil {
		return false, walleterr.Wrap(walleterr.NetworkUnavailable, "is_known_root call failed", err)
	}
	if len(out) == 0 {
		return false, walleterr.New(walleterr.EventMalformed, "is_known_root returned empty result")
	}
	return out[len(out)-1] != 0, nil
}

// LatestRoot calls the pool's get_latest_root() view.
func LatestRoot(ctx context.Context, a Adapter, pool common.Address) (field.Scalar, error) {
	out, err := a.Call(ctx, pool, SelectorGetLatestRoot, nil)
	if err != nil {
		return field.Scalar{}, walleterr.Wrap(walleterr.NetworkUnavailable, "get_latest_root call failed", err)
	}
	if len(out) != 32 {
		return field.Scalar{}, walleterr.New(walleterr.EventMalformed, "get_latest_root returned unexpected length")
	}
	var b [32]byte
	copy(b[:], out)
	return field.FromBytes32(b), nil
}

// IsSpent calls the pool's is_spent(bytes32) view for a nullifier hash.
func IsSpent(ctx context.Context, a Adapter, pool common.Address, nullifierHash field.Scalar) (bool, error) {
	b := nullifierHash.Bytes32()
	out, err := a.Call(ctx, pool, SelectorIsSpent, b[:])
	if err != nil {
		return false, walleterr.Wrap(walleterr.NetworkUnavailable, "is_spent call failed", err)
	}
	if len(out) == 0 {
		return false, walleterr.New(walleterr.EventMalformed, "is_spent returned empty result")
	}
	return out[len(out)-1] != 0, nil
}

// DepositEvent is a shield/deposit-style event: indexed commitment,
// indexed leaf index.
type DepositEvent struct {
	Commitment field.Scalar
	LeafIndex  uint64
	TxHash     common.Hash
}

// ParseDepositEvent extracts a DepositEvent from a raw log with at least
// three topics (topic[0] signature, topic[1] commitment, topic[2] leaf
// index), per §4.4's "any log emitted by the pool address with at
// least three topics" data source.
func ParseDepositEvent(l types.Log) (DepositEvent, error) {
	if len(l.Topics) < 3 {
		return DepositEvent{}, walleterr.New(walleterr.EventMalformed, "deposit event needs at least 3 topics")
	}
	return DepositEvent{
		Commitment: field.FromBytes32(l.Topics[1]),
		LeafIndex:  new(big.Int).SetBytes(l.Topics[2][:]).Uint64(),
		TxHash:     l.TxHash,
	}, nil
}

// TransferEvent is the transfer event shape: indexed nullifierHash,
// leafIndex1, leafIndex2; data carries two output commitments, two
// encrypted memos, and a timestamp.
type TransferEvent struct {
	NullifierHash     field.Scalar
	LeafIndex1        uint64
	LeafIndex2        uint64
	OutputCommitment1 field.Scalar
	OutputCommitment2 field.Scalar
	EncryptedMemo1    []byte
	EncryptedMemo2    []byte
	Timestamp         uint64
	TxHash            common.Hash
}

// ParseTransferEvent parses a transfer event log. The data is read as c1
// (word 0), c2 (word 1), a skipped word 2, then the two encrypted memos,
// each a length-prefixed (32-byte big-endian length) byte string, then the
// timestamp word.
func ParseTransferEvent(l types.Log) (TransferEvent, error) {
	if len(l.Topics) < 3 {
		return TransferEvent{}, walleterr.New(walleterr.EventMalformed, "transfer event needs 3 topics")
	}
	const fixedWords = 5 // minimum length checked up front; the length-prefixed reads check the rest
	if len(l.Data) < fixedWords*32 {
		return TransferEvent{}, walleterr.New(walleterr.EventMalformed, "transfer event data too short")
	}
	word := func(i int) []byte { return l.Data[i*32 : (i+1)*32] }
	var c1, c2 [32]byte
	copy(c1[:], word(0))
	copy(c2[:], word(1))
	memo1, rest, err := readLengthPrefixed(l.Data[3*32:])
	if err != nil {
		return TransferEvent{}, err
	}
	memo2, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return TransferEvent{}, err
	}
	if len(rest) < 32 {
		return TransferEvent{}, walleterr.New(walleterr.EventMalformed, "transfer event missing timestamp")
	}
	ts := new(big.Int).SetBytes(rest[:32]).Uint64()

	return TransferEvent{
		NullifierHash:     field.FromBytes32(l.Topics[1]),
		LeafIndex1:        new(big.Int).SetBytes(l.Topics[2][:]).Uint64(),
		LeafIndex2:        leafIndex2(l),
		OutputCommitment1: field.FromBytes32(c1),
		OutputCommitment2: field.FromBytes32(c2),
		EncryptedMemo1:    memo1,
		EncryptedMemo2:    memo2,
		Timestamp:         ts,
		TxHash:            l.TxHash,
	}, nil
}

func leafIndex2(l types.Log) uint64 {
	if len(l.Topics) < 4 {
		return 0
	}
	return new(big.Int).SetBytes(l.Topics[3][:]).Uint64()
}

func readLengthPrefixed(data []byte) (value []byte, rest []byte, err error) {
	if len(data) < 32 {
		return nil, nil, walleterr.New(walleterr.EventMalformed, "truncated length-prefixed field")
	}
	n := new(big.Int).SetBytes(data[:32]).Uint64()
	padded := (n + 31) / 32 * 32
	if uint64(len(data)-32) < padded {
		return nil, nil, walleterr.New(walleterr.EventMalformed, "length-prefixed field shorter than declared length")
	}
	return data[32 : 32+n], data[32+padded:], nil
}

// UnshieldEvent is the unshield event shape: indexed nullifierHash,
// recipient, token; data carries amount, an optional changeCommitment
// (V3 only), relayer, fee, timestamp. The V2/V3 ambiguity noted in spec
// §9 is resolved here by data length, per §6's explicit instruction.
type UnshieldEvent struct {
	NullifierHash    field.Scalar
	Recipient        common.Address
	Token            common.Address
	Amount           *big.Int
	ChangeCommitment field.Scalar
	HasChange        bool
	Relayer          common.Address
	Fee              *big.Int
	Timestamp        uint64
	TxHash           common.Hash
}

// v2DataWords / v3DataWords are the fixed-width word counts of the data
// tuple for each event version (amount, [changeCommitment], relayer, fee,
// timestamp), each field ABI-encoded as a 32-byte word.
const (
	v2DataWords = 4
	v3DataWords = 5
)

// ParseUnshieldEvent parses an unshield event log, tolerating the V2
// variant (no changeCommitment) by data length.
func ParseUnshieldEvent(l types.Log) (UnshieldEvent, error) {
	if len(l.Topics) < 4 {
		return UnshieldEvent{}, walleterr.New(walleterr.EventMalformed, "unshield event needs 4 topics")
	}
	ev := UnshieldEvent{
		NullifierHash: field.FromBytes32(l.Topics[1]),
		Recipient:     common.BytesToAddress(l.Topics[2][:]),
		Token:         common.BytesToAddress(l.Topics[3][:]),
		TxHash:        l.TxHash,
	}
	word := func(i int) []byte { return l.Data[i*32 : (i+1)*32] }
	switch len(l.Data) {
	case v3DataWords * 32:
		ev.Amount = new(big.Int).SetBytes(word(0))
		var cc [32]byte
		copy(cc[:], word(1))
		ev.ChangeCommitment = field.FromBytes32(cc)
		ev.HasChange = true
		ev.Relayer = common.BytesToAddress(word(2))
		ev.Fee = new(big.Int).SetBytes(word(3))
		ev.Timestamp = new(big.Int).SetBytes(word(4)).Uint64()
	case v2DataWords * 32:
		ev.Amount = new(big.Int).SetBytes(word(0))
		ev.HasChange = false
		ev.Relayer = common.BytesToAddress(word(1))
		ev.Fee = new(big.Int).SetBytes(word(2))
		ev.Timestamp = new(big.Int).SetBytes(word(3)).Uint64()
	default:
		return UnshieldEvent{}, walleterr.New(walleterr.EventMalformed, "unshield event data matches neither V2 nor V3 layout")
	}
	if ev.Fee.Cmp(ev.Amount) > 0 {
		return UnshieldEvent{}, walleterr.New(walleterr.EventMalformed, "unshield event fee exceeds amount")
	}
	return ev, nil
}
