// rpc.go - JSON-RPC chain adapter backing internal/chain.Adapter.
//
// The core never signs or assembles a transaction itself (spec's explicit
// Non-goal: "does not itself sign Ethereum transactions"); SendTransaction
// here only relays bytes the caller already obtained from an external
// signer (a hardware wallet, a separate signing service, or a raw-tx file)
// and decodes them as an RLP-encoded *types.Transaction before forwarding.
package main

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/notfartdev/zdoge-sub004/internal/chain"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

// EthAdapter implements chain.Adapter over a live JSON-RPC endpoint via
// go-ethereum's ethclient.
type EthAdapter struct {
	client *ethclient.Client
}

// DialEthAdapter connects to endpoint and returns a ready EthAdapter.
func DialEthAdapter(ctx context.Context, endpoint string) (*EthAdapter, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.NetworkUnavailable, "dial rpc endpoint", err)
	}
	return &EthAdapter{client: client}, nil
}

func (a *EthAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, walleterr.Wrap(walleterr.NetworkUnavailable, "block_number rpc call", err)
	}
	return n, nil
}

func (a *EthAdapter) GetLogs(ctx context.Context, q chain.LogQuery) ([]types.Log, error) {
	fq := ethereum.FilterQuery{
		Addresses: []common.Address{q.Address},
		Topics:    q.Topics,
		FromBlock: new(big.Int).SetUint64(q.FromBlock),
		ToBlock:   new(big.Int).SetUint64(q.ToBlock),
	}
	logs, err := a.client.FilterLogs(ctx, fq)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.NetworkUnavailable, "eth_getLogs rpc call", err)
	}
	return logs, nil
}

func (a *EthAdapter) Call(ctx context.Context, to common.Address, selector [4]byte, args []byte) ([]byte, error) {
	data := append(append([]byte{}, selector[:]...), args...)
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := a.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.NetworkUnavailable, "eth_call rpc call", err)
	}
	return out, nil
}

func (a *EthAdapter) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := a.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.NetworkUnavailable, "eth_getBalance rpc call", err)
	}
	return bal, nil
}

// SendTransaction decodes data as an already-signed RLP transaction and
// relays it verbatim; to/value are informational only (they must match
// what was signed, since this adapter never constructs a transaction).
func (a *EthAdapter) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(data); err != nil {
		return common.Hash{}, walleterr.Wrap(walleterr.InvalidInput, "decode signed raw transaction", err)
	}
	if tx.To() == nil || *tx.To() != to {
		return common.Hash{}, walleterr.New(walleterr.InvalidInput, fmt.Sprintf("signed transaction recipient does not match %s", to.Hex()))
	}
	if err := a.client.SendTransaction(ctx, &tx); err != nil {
		return common.Hash{}, walleterr.Wrap(walleterr.NetworkUnavailable, "eth_sendRawTransaction rpc call", err)
	}
	return tx.Hash(), nil
}
