// main.go - CLI entrypoint for the shielded wallet core.
//
// The binary never signs or submits Ethereum transactions itself (spec's
// Non-goal): every prepare_* subcommand prints the assembled proof and its
// public inputs to stdout for an external signer/relayer to submit, and
// every confirm_* subcommand takes the resulting leaf index(es) back in.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/identity"
	"github.com/notfartdev/zdoge-sub004/internal/note"
	"github.com/notfartdev/zdoge-sub004/internal/storage"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
	"github.com/notfartdev/zdoge-sub004/internal/walletlog"
	"github.com/notfartdev/zdoge-sub004/internal/wallet"
	"github.com/notfartdev/zdoge-sub004/internal/witness"
)

const version = "0.1.0"

// unimplementedProver reports that no proving backend is wired in; the
// actual Groth16 prover (witness generation, trusted setup artifacts) is
// out of scope for this module and must be supplied by the host (§1).
type unimplementedProver struct{}

func (unimplementedProver) ProveShield(context.Context, *witness.ShieldCircuit) (witness.Groth16Proof, error) {
	return witness.Groth16Proof{}, walleterr.New(walleterr.ProverFailure, "no proving backend configured; wire one via internal/witness.Prover")
}
func (unimplementedProver) ProveTransfer(context.Context, *witness.TransferCircuit) (witness.Groth16Proof, error) {
	return witness.Groth16Proof{}, walleterr.New(walleterr.ProverFailure, "no proving backend configured; wire one via internal/witness.Prover")
}
func (unimplementedProver) ProveUnshield(context.Context, *witness.UnshieldCircuit) (witness.Groth16Proof, error) {
	return witness.Groth16Proof{}, walleterr.New(walleterr.ProverFailure, "no proving backend configured; wire one via internal/witness.Prover")
}
func (unimplementedProver) ProveSwap(context.Context, *witness.SwapCircuit) (witness.Groth16Proof, error) {
	return witness.Groth16Proof{}, walleterr.New(walleterr.ProverFailure, "no proving backend configured; wire one via internal/witness.Prover")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	configPath := filepath.Join("zdogewallet.json")
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logLevel := walletlog.Info
	switch cfg.LogLevel {
	case "debug":
		logLevel = walletlog.Debug
	case "warn":
		logLevel = walletlog.Warn
	case "error":
		logLevel = walletlog.Error
	}
	auditPath := ""
	if cfg.EnableAudit {
		auditPath = cfg.AuditLogPath
	}
	logger, err := walletlog.New(logLevel, cfg.LogFile, auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	health := NewHealthChecker(version)
	metrics := NewMetricsCollector()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "identity":
		runIdentity(cfg, args)
	case "notes":
		runNotes(cfg, logger, args)
	case "shield":
		runShield(cfg, logger, metrics, args)
	case "transfer":
		runTransfer(cfg, logger, metrics, args)
	case "unshield":
		runUnshield(cfg, logger, metrics, args)
	case "swap":
		runSwap(cfg, logger, metrics, args)
	case "scan":
		runScan(cfg, logger, metrics, args)
	case "health":
		runHealth(cfg, health, args)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`zdogewallet - shielded wallet CLI

Usage:
  zdogewallet identity new
  zdogewallet identity import <spending-key-hex>
  zdogewallet notes list
  zdogewallet shield <amount>
  zdogewallet transfer <recipient-address> <amount> <fee>
  zdogewallet unshield <recipient-evm-address> <amount> <fee>
  zdogewallet swap <output-token-address> <output-decimals> <amount>
  zdogewallet scan
  zdogewallet health`)
}

func walletDir(cfg *Config) string {
	return cfg.WalletDir
}

func openStore(cfg *Config, passphrase []byte) (*storage.FileStore, error) {
	return storage.NewFileStore(walletDir(cfg), "default", passphrase)
}

func loadIdentity(store storage.Store) (identity.Identity, error) {
	raw, ok, err := store.Get("identity")
	if err != nil {
		return identity.Identity{}, err
	}
	if !ok {
		return identity.Identity{}, walleterr.New(walleterr.InvalidInput, "no identity found; run `zdogewallet identity new` first")
	}
	var blob identity.Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return identity.Identity{}, walleterr.Wrap(walleterr.StorageUnavailable, "decode identity blob", err)
	}
	return identity.Deserialize(blob)
}

func saveIdentity(store storage.Store, id identity.Identity) error {
	raw, err := json.Marshal(id.Serialize())
	if err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "encode identity blob", err)
	}
	return store.Set("identity", raw)
}

func baseToken(cfg *Config) note.Token {
	addr := [20]byte(common.HexToAddress(cfg.BaseTokenAddress))
	return note.Token{
		Symbol:   cfg.BaseTokenSymbol,
		Address:  field.ScalarFromAddress(addr),
		Decimals: uint8(cfg.BaseTokenDecimals),
	}
}

func dummyPassphrase() []byte {
	pass := os.Getenv("ZDOGEWALLET_PASSPHRASE")
	if pass == "" {
		fmt.Fprintln(os.Stderr, "warning: ZDOGEWALLET_PASSPHRASE not set, using an insecure default")
		pass = "change-me"
	}
	return []byte(pass)
}

func runIdentity(cfg *Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: identity new|import|export")
		os.Exit(1)
	}
	store, err := openStore(cfg, dummyPassphrase())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "new":
		id, err := identity.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate identity: %v\n", err)
			os.Exit(1)
		}
		if err := saveIdentity(store, id); err != nil {
			fmt.Fprintf(os.Stderr, "save identity: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(identity.EncodeAddress(id.Address()))
	case "import":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: identity import <spending-key-hex>")
			os.Exit(1)
		}
		id, err := identity.ImportSpendingKey(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "import spending key: %v\n", err)
			os.Exit(1)
		}
		if err := saveIdentity(store, id); err != nil {
			fmt.Fprintf(os.Stderr, "save identity: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(identity.EncodeAddress(id.Address()))
	case "export":
		id, err := loadIdentity(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load identity: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(id.ExportSpendingKey())
	default:
		fmt.Fprintln(os.Stderr, "usage: identity new|import|export")
		os.Exit(1)
	}
}

func newService(cfg *Config, logger *walletlog.Logger) (*wallet.Service, error) {
	store, err := openStore(cfg, dummyPassphrase())
	if err != nil {
		return nil, err
	}
	id, err := loadIdentity(store)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ChainTimeout)*time.Second)
	defer cancel()
	adapter, err := DialEthAdapter(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, err
	}
	return wallet.NewService(wallet.Config{
		Identity:  id,
		Store:     store,
		Chain:     adapter,
		Pool:      common.HexToAddress(cfg.PoolAddress),
		Prover:    unimplementedProver{},
		Logger:    logger,
		BaseToken: baseToken(cfg),
	})
}

func runNotes(cfg *Config, logger *walletlog.Logger, args []string) {
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init wallet: %v\n", err)
		os.Exit(1)
	}
	notes := svc.Notes()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Token", "Amount", "Spendable", "Leaf Index", "Commitment")
	for _, n := range notes {
		leaf := "-"
		if n.LeafIndex != nil {
			leaf = strconv.FormatUint(*n.LeafIndex, 10)
		}
		table.Append(
			n.Token.Symbol,
			note.FormatAmount(n.Value, n.Token.Decimals),
			strconv.FormatBool(n.IsSpendable()),
			leaf,
			n.Commitment.Hex(),
		)
	}
	table.Render()
}

func runShield(cfg *Config, logger *walletlog.Logger, metrics *MetricsCollector, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: shield <amount>")
		os.Exit(1)
	}
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init wallet: %v\n", err)
		os.Exit(1)
	}
	tok := baseToken(cfg)
	amount, err := note.ParseAmount(args[0], tok.Decimals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid amount: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	n, proof, err := svc.PrepareShield(context.Background(), amount, tok)
	metrics.RecordProofGeneration("shield", time.Since(start))
	if err != nil {
		metrics.RecordError(walleterrKind(err).String())
		fmt.Fprintf(os.Stderr, "prepare shield: %v\n", err)
		os.Exit(1)
	}
	metrics.IncrementCounter(MetricShieldCount, nil)
	fmt.Printf("commitment: %s\nvalue: %s\nproof: %+v\n", n.Commitment.Hex(), note.FormatAmount(n.Value, tok.Decimals), proof.FlattenForVerifier())
	fmt.Println("submit this shield deposit externally, then call `zdogewallet notes confirm-shield <commitment> <leafIndex>`")
}

func runTransfer(cfg *Config, logger *walletlog.Logger, metrics *MetricsCollector, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: transfer <recipient-address> <amount> <fee>")
		os.Exit(1)
	}
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init wallet: %v\n", err)
		os.Exit(1)
	}
	tok := baseToken(cfg)
	recipient, err := identity.DecodeAddress(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid recipient: %v\n", err)
		os.Exit(1)
	}
	amount, err := note.ParseAmount(args[1], tok.Decimals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid amount: %v\n", err)
		os.Exit(1)
	}
	fee, err := note.ParseAmount(args[2], tok.Decimals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid fee: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	prep, err := svc.PrepareTransfer(context.Background(), recipient, amount, fee, tok, field.Scalar{}, nil)
	metrics.RecordProofGeneration("transfer", time.Since(start))
	if err != nil {
		metrics.RecordError(walleterrKind(err).String())
		fmt.Fprintf(os.Stderr, "prepare transfer: %v\n", err)
		os.Exit(1)
	}
	metrics.IncrementCounter(MetricTransferCount, nil)
	fmt.Printf("nullifierHash: %s\nroot: %s\nsendCommitment: %s\nmemo: %x\n", prep.NullifierHash.Hex(), prep.Root.Hex(), prep.SendOutput.Commitment.Hex(), prep.SendMemo.Encode())
	fmt.Println("submit this transfer externally, then call `zdogewallet notes confirm-transfer` with the change leaf index")
}

func runUnshield(cfg *Config, logger *walletlog.Logger, metrics *MetricsCollector, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: unshield <recipient-evm-address> <amount> <fee>")
		os.Exit(1)
	}
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init wallet: %v\n", err)
		os.Exit(1)
	}
	tok := baseToken(cfg)
	recipientAddr := [20]byte(common.HexToAddress(args[0]))
	recipient := field.ScalarFromAddress(recipientAddr)
	amount, err := note.ParseAmount(args[1], tok.Decimals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid amount: %v\n", err)
		os.Exit(1)
	}
	fee, err := note.ParseAmount(args[2], tok.Decimals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid fee: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	prep, err := svc.PrepareUnshield(context.Background(), recipient, amount, fee, tok, field.Scalar{}, nil)
	metrics.RecordProofGeneration("unshield", time.Since(start))
	if err != nil {
		metrics.RecordError(walleterrKind(err).String())
		fmt.Fprintf(os.Stderr, "prepare unshield: %v\n", err)
		os.Exit(1)
	}
	metrics.IncrementCounter(MetricUnshieldCount, nil)
	fmt.Printf("nullifierHash: %s\nroot: %s\n", prep.NullifierHash.Hex(), prep.Root.Hex())
	fmt.Println("submit this withdrawal externally, then call `zdogewallet notes confirm-unshield` with the change leaf index")
}

func runSwap(cfg *Config, logger *walletlog.Logger, metrics *MetricsCollector, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: swap <output-token-address> <output-decimals> <amount>")
		os.Exit(1)
	}
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init wallet: %v\n", err)
		os.Exit(1)
	}
	tokenIn := baseToken(cfg)
	outAddrBig := new(big.Int).SetBytes(common.HexToAddress(args[0]).Bytes())
	decimals, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid decimals: %v\n", err)
		os.Exit(1)
	}
	tokenOut := note.Token{Symbol: "OUT", Address: field.NewScalar(outAddrBig), Decimals: uint8(decimals)}
	amount, err := note.ParseAmount(args[2], tokenIn.Decimals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid amount: %v\n", err)
		os.Exit(1)
	}

	// The exchange rate itself is computed on-chain; the CLI quote here is
	// a 1:1 placeholder for printing the prepared proof's shape only.
	quote := func(swapAmount *big.Int) *big.Int { return new(big.Int).Set(swapAmount) }

	start := time.Now()
	legs, err := svc.PrepareSwap(context.Background(), tokenIn, tokenOut, amount, quote)
	metrics.RecordProofGeneration("swap", time.Since(start))
	if err != nil {
		metrics.RecordError(walleterrKind(err).String())
		fmt.Fprintf(os.Stderr, "prepare swap: %v\n", err)
		os.Exit(1)
	}
	metrics.IncrementCounter(MetricSwapCount, nil)
	for i, leg := range legs {
		fmt.Printf("leg %d: nullifierHash=%s outputCommitment=%s\n", i, leg.NullifierHash.Hex(), leg.OutputNote.Commitment.Hex())
	}
}

func runScan(cfg *Config, logger *walletlog.Logger, metrics *MetricsCollector, args []string) {
	svc, err := newService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init wallet: %v\n", err)
		os.Exit(1)
	}
	discovered, err := svc.ScanEvents(context.Background())
	if err != nil {
		metrics.RecordError(walleterrKind(err).String())
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}
	metrics.IncrementCounter(MetricScanTickCount, nil)
	metrics.SetGauge(MetricNotesDiscovered, float64(len(discovered)), nil)
	fmt.Printf("discovered %d new note(s)\n", len(discovered))
}

func runHealth(cfg *Config, health *HealthChecker, args []string) {
	health.RegisterComponent("rpc", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ChainTimeout)*time.Second)
		defer cancel()
		adapter, err := DialEthAdapter(ctx, cfg.RPCEndpoint)
		if err != nil {
			return err
		}
		_, err = adapter.BlockNumber(ctx)
		return err
	})
	health.RegisterComponent("store", func() error {
		_, err := storage.NewFileStore(walletDir(cfg), "default", dummyPassphrase())
		return err
	})
	h := health.CheckHealth()
	fmt.Printf("status: %s (uptime %s)\n", h.OverallStatus, h.Uptime)
	for _, c := range h.Components {
		fmt.Printf("  %-10s %-10s %s\n", c.Name, c.Status, c.Message)
	}
}

func walleterrKind(err error) walleterr.Kind {
	if we, ok := err.(*walleterr.Error); ok {
		return we.Kind
	}
	return walleterr.InvalidInput
}
