// Package witness assembles the per-circuit public/private input bundles
// for the four zero-knowledge circuits (shield, transfer, unshield, swap)
// and hands them to an opaque prover. Grounded on
// internal/zerocash/circuit.go's CircuitTx (frontend.Variable witness
// struct, in-circuit mimc.NewMiMC, AssertIsEqual constraints) and
// internal/transactions/{register,exchange,withdraw}'s per-operation
// circuit+witness-assembly pairing, re-curved from BW6-761/BLS12-377 to
// BN254 (the EVM pairing curve) per §4.1 and DESIGN.md's curve-change
// note.
package witness

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// Depth mirrors internal/merkle.Depth as a separate constant. Witness
// assembly copies Depth levels out of a merkle.Path, so the two values are
// kept equal by hand; nothing checks at compile time that they match.
const Depth = 20

// h2 computes the in-circuit MiMC-Sponge(2,220,1) hash of two variables,
// matching internal/field.H2's native equivalent.
func h2(api frontend.API, a, b frontend.Variable) frontend.Variable {
	h, _ := mimc.NewMiMC(api)
	h.Write(a, b)
	return h.Sum()
}

// commitment computes C = H(H(v,owner), H(secret,blinding)) in-circuit,
// matching internal/note.Commitment.
func commitment(api frontend.API, value, owner, secret, blinding frontend.Variable) frontend.Variable {
	left := h2(api, value, owner)
	right := h2(api, secret, blinding)
	return h2(api, left, right)
}

// nullifierHash computes NH = H(N,N), N = H(H(secret,leafIndex), sk)
// in-circuit, matching internal/note.Note.NullifierHash.
func nullifierHash(api frontend.API, secret, leafIndex, sk frontend.Variable) frontend.Variable {
	n := h2(api, h2(api, secret, leafIndex), sk)
	return h2(api, n, n)
}

// merklePathRoot walks a Merkle inclusion path bottom-up and returns the
// computed root. siblings[i]/directions[i] are the level-i sibling and
// direction bit (0 = leaf is the left child), matching internal/merkle.Path.
func merklePathRoot(api frontend.API, leaf frontend.Variable, siblings [Depth]frontend.Variable, directions [Depth]frontend.Variable) frontend.Variable {
	cur := leaf
	for i := 0; i < Depth; i++ {
		left := api.Select(directions[i], siblings[i], cur)
		right := api.Select(directions[i], cur, siblings[i])
		cur = h2(api, left, right)
	}
	return cur
}

// ShieldCircuit proves that a commitment was produced from the claimed
// private note fields. Public: (C, V). Private: (A, S, B). Spec §4.5.
type ShieldCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	Value      frontend.Variable `gnark:",public"`

	Owner    frontend.Variable
	Secret   frontend.Variable
	Blinding frontend.Variable
}

func (c *ShieldCircuit) Define(api frontend.API) error {
	computed := commitment(api, c.Value, c.Owner, c.Secret, c.Blinding)
	api.AssertIsEqual(c.Commitment, computed)
	return nil
}

// TransferCircuit proves a single-input, two-output shielded transfer.
// Public: (root, NH, C1, C2, relayer, fee). Private: the input note's full
// field set, its Merkle path, the spending key, and both outputs' fields.
// Spec §4.5; the multi-input (up to 5) variant noted in §9 as an open
// question is not implemented here per the open-question decision in
// DESIGN.md.
type TransferCircuit struct {
	Root     frontend.Variable `gnark:",public"`
	NH       frontend.Variable `gnark:",public"`
	C1       frontend.Variable `gnark:",public"`
	C2       frontend.Variable `gnark:",public"`
	Relayer  frontend.Variable `gnark:",public"`
	Fee      frontend.Variable `gnark:",public"`

	ValueIn    frontend.Variable
	OwnerIn    frontend.Variable
	SecretIn   frontend.Variable
	BlindingIn frontend.Variable
	LeafIndex  frontend.Variable
	Siblings   [Depth]frontend.Variable
	Directions [Depth]frontend.Variable
	Sk         frontend.Variable

	Value1    frontend.Variable
	Owner1    frontend.Variable
	Secret1   frontend.Variable
	Blinding1 frontend.Variable

	Value2    frontend.Variable
	Owner2    frontend.Variable
	Secret2   frontend.Variable
	Blinding2 frontend.Variable
}

func (c *TransferCircuit) Define(api frontend.API) error {
	cIn := commitment(api, c.ValueIn, c.OwnerIn, c.SecretIn, c.BlindingIn)
	root := merklePathRoot(api, cIn, c.Siblings, c.Directions)
	api.AssertIsEqual(c.Root, root)

	nh := nullifierHash(api, c.SecretIn, c.LeafIndex, c.Sk)
	api.AssertIsEqual(c.NH, nh)

	// value conservation: v_in = v_send + v_change + fee
	sum := api.Add(c.Value1, c.Value2)
	sum = api.Add(sum, c.Fee)
	api.AssertIsEqual(c.ValueIn, sum)

	api.AssertIsEqual(c.C1, commitment(api, c.Value1, c.Owner1, c.Secret1, c.Blinding1))
	api.AssertIsEqual(c.C2, commitment(api, c.Value2, c.Owner2, c.Secret2, c.Blinding2))
	return nil
}

// UnshieldCircuit proves a shielded note is being withdrawn to a public
// EVM recipient, with an optional same-owner change note. Public: (root,
// NH, recipient, amount, changeCommitment, relayer, fee). Spec §4.5.
type UnshieldCircuit struct {
	Root             frontend.Variable `gnark:",public"`
	NH               frontend.Variable `gnark:",public"`
	Recipient        frontend.Variable `gnark:",public"`
	Amount           frontend.Variable `gnark:",public"`
	ChangeCommitment frontend.Variable `gnark:",public"`
	Relayer          frontend.Variable `gnark:",public"`
	Fee              frontend.Variable `gnark:",public"`

	ValueIn    frontend.Variable
	OwnerIn    frontend.Variable
	SecretIn   frontend.Variable
	BlindingIn frontend.Variable
	LeafIndex  frontend.Variable
	Siblings   [Depth]frontend.Variable
	Directions [Depth]frontend.Variable
	Sk         frontend.Variable

	ValueChange    frontend.Variable
	SecretChange   frontend.Variable
	BlindingChange frontend.Variable
	ChangeIsZero   frontend.Variable // boolean: 1 iff ValueChange == 0
}

func (c *UnshieldCircuit) Define(api frontend.API) error {
	cIn := commitment(api, c.ValueIn, c.OwnerIn, c.SecretIn, c.BlindingIn)
	root := merklePathRoot(api, cIn, c.Siblings, c.Directions)
	api.AssertIsEqual(c.Root, root)

	nh := nullifierHash(api, c.SecretIn, c.LeafIndex, c.Sk)
	api.AssertIsEqual(c.NH, nh)

	// value conservation: v_note = amount + v_change + fee
	sum := api.Add(c.Amount, c.ValueChange)
	sum = api.Add(sum, c.Fee)
	api.AssertIsEqual(c.ValueIn, sum)

	api.AssertIsEqual(api.Mul(c.ChangeIsZero, c.ValueChange), 0)

	changeCommit := commitment(api, c.ValueChange, c.OwnerIn, c.SecretChange, c.BlindingChange)
	expected := api.Select(c.ChangeIsZero, frontend.Variable(0), changeCommit)
	api.AssertIsEqual(c.ChangeCommitment, expected)
	return nil
}

// SwapCircuit proves a shielded swap: one input note is consumed, an
// output-token note and a same-token change note are produced. The
// exchange-rate check lives on-chain (§4.5); this circuit only
// transports swapAmount/outputAmount and enforces same-token value
// conservation on the change leg.
type SwapCircuit struct {
	Root          frontend.Variable `gnark:",public"`
	NH            frontend.Variable `gnark:",public"`
	COut          frontend.Variable `gnark:",public"`
	CChange       frontend.Variable `gnark:",public"`
	TokenIn       frontend.Variable `gnark:",public"`
	TokenOut      frontend.Variable `gnark:",public"`
	SwapAmount    frontend.Variable `gnark:",public"`
	OutputAmount  frontend.Variable `gnark:",public"`

	ValueIn    frontend.Variable
	OwnerIn    frontend.Variable
	SecretIn   frontend.Variable
	BlindingIn frontend.Variable
	LeafIndex  frontend.Variable
	Siblings   [Depth]frontend.Variable
	Directions [Depth]frontend.Variable
	Sk         frontend.Variable

	SecretOut   frontend.Variable
	BlindingOut frontend.Variable

	ValueChange    frontend.Variable
	SecretChange   frontend.Variable
	BlindingChange frontend.Variable
	ChangeIsZero   frontend.Variable
}

func (c *SwapCircuit) Define(api frontend.API) error {
	cIn := commitment(api, c.ValueIn, c.OwnerIn, c.SecretIn, c.BlindingIn)
	root := merklePathRoot(api, cIn, c.Siblings, c.Directions)
	api.AssertIsEqual(c.Root, root)

	nh := nullifierHash(api, c.SecretIn, c.LeafIndex, c.Sk)
	api.AssertIsEqual(c.NH, nh)

	// same-token value conservation: v_note = swap_amount + v_change
	sum := api.Add(c.SwapAmount, c.ValueChange)
	api.AssertIsEqual(c.ValueIn, sum)

	api.AssertIsEqual(c.COut, commitment(api, c.OutputAmount, c.OwnerIn, c.SecretOut, c.BlindingOut))

	api.AssertIsEqual(api.Mul(c.ChangeIsZero, c.ValueChange), 0)
	changeCommit := commitment(api, c.ValueChange, c.OwnerIn, c.SecretChange, c.BlindingChange)
	expected := api.Select(c.ChangeIsZero, frontend.Variable(0), changeCommit)
	api.AssertIsEqual(c.CChange, expected)
	return nil
}
