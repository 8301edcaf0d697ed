package identity

import (
	"math/big"
	"strings"
	"testing"

	"github.com/notfartdev/zdoge-sub004/internal/field"
	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

func TestGenerateDerivesDistinctKeys(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if id.SpendingKey().Equal(id.ViewingKey()) {
		t.Errorf("viewing key should differ from spending key")
	}
	if id.ViewingKey().Equal(id.Address()) {
		t.Errorf("shielded address should differ from viewing key")
	}
}

func TestDeriveMatchesGoldenVector(t *testing.T) {
	// Seed scenario 1 (spec §8): sk = 0x01, A = H(sk, 2), vk = H(sk, 1).
	id, err := Recover(big.NewInt(1))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	wantVK := field.H2(field.NewScalar(big.NewInt(1)), field.NewScalar(big.NewInt(int64(field.DomainViewingKey))))
	wantA := field.H2(field.NewScalar(big.NewInt(1)), field.NewScalar(big.NewInt(int64(field.DomainShieldedAddress))))
	if !id.ViewingKey().Equal(wantVK) {
		t.Errorf("vk = H(sk, %d), got vk.Hex()=%s want %s", field.DomainViewingKey, id.ViewingKey().Hex(), wantVK.Hex())
	}
	if !id.Address().Equal(wantA) {
		t.Errorf("A = H(sk, %d), got A.Hex()=%s want %s", field.DomainShieldedAddress, id.Address().Hex(), wantA.Hex())
	}
	encoded := EncodeAddress(id.Address())
	if !strings.HasPrefix(encoded, "zdoge:") || len(encoded) != len("zdoge:")+64 {
		t.Errorf("expected zdoge:<64-hex>, got %s", encoded)
	}
}

func TestRecoverIsDeterministic(t *testing.T) {
	a, err := Recover(big.NewInt(7))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	b, err := Recover(big.NewInt(7))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if !a.ViewingKey().Equal(b.ViewingKey()) || !a.Address().Equal(b.Address()) {
		t.Errorf("Recover(7) should be deterministic")
	}
}

func TestRecoverRejectsOutOfRangeKeys(t *testing.T) {
	if _, err := Recover(big.NewInt(0)); err == nil {
		t.Errorf("expected error for sk == 0")
	}
	if _, err := Recover(big.NewInt(-1)); err == nil {
		t.Errorf("expected error for negative sk")
	}
	if _, err := Recover(field.Modulus()); err == nil {
		t.Errorf("expected error for sk == p")
	}
}

func TestEncodeDecodeAddressRoundTrip(t *testing.T) {
	id, err := Recover(big.NewInt(99))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	encoded := EncodeAddress(id.Address())
	if !strings.HasPrefix(encoded, "zdoge:") {
		t.Errorf("expected zdoge: prefix, got %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress failed: %v", err)
	}
	if !decoded.Equal(id.Address()) {
		t.Errorf("decoded address does not match original")
	}
}

func TestDecodeAddressLegacyPrefix(t *testing.T) {
	id, err := Recover(big.NewInt(5))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	legacy := "dogenado:z1" + id.Address().Hex()
	decoded, err := DecodeAddress(legacy)
	if err != nil {
		t.Fatalf("DecodeAddress(legacy) failed: %v", err)
	}
	if !decoded.Equal(id.Address()) {
		t.Errorf("legacy decode does not match original address")
	}
}

func TestDecodeAddressRejectsUnknownPrefix(t *testing.T) {
	if _, err := DecodeAddress("bogus:" + strings.Repeat("0", 64)); err == nil {
		t.Errorf("expected error for unrecognized prefix")
	}
}

func TestDecodeAddressRejectsBadLength(t *testing.T) {
	if _, err := DecodeAddress("zdoge:abcd"); err == nil {
		t.Errorf("expected error for short hex payload")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	id, err := Recover(big.NewInt(1234))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	blob := id.Serialize()
	restored, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if !restored.SpendingKey().Equal(id.SpendingKey()) {
		t.Errorf("spending key mismatch after round trip")
	}
	if !restored.ViewingKey().Equal(id.ViewingKey()) || !restored.Address().Equal(id.Address()) {
		t.Errorf("derived keys mismatch after round trip")
	}
}

func TestDeserializeRejectsTamperedViewingKey(t *testing.T) {
	id, err := Recover(big.NewInt(1234))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	blob := id.Serialize()
	blob.ViewingKeyHex = strings.Repeat("f", 64)
	if _, err := Deserialize(blob); err == nil {
		t.Errorf("expected error for tampered viewing key")
	} else if werr, ok := err.(*walleterr.Error); ok && werr.Kind != walleterr.CommitmentMismatch {
		t.Errorf("expected CommitmentMismatch kind, got %v", werr.Kind)
	}
}

func TestDeserializeRejectsUnsupportedVersion(t *testing.T) {
	id, err := Recover(big.NewInt(1234))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	blob := id.Serialize()
	blob.Version = 99
	if _, err := Deserialize(blob); err == nil {
		t.Errorf("expected error for unsupported version")
	}
}

func TestImportExportSpendingKeyRoundTrip(t *testing.T) {
	id, err := Recover(big.NewInt(555))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	exported := id.ExportSpendingKey()
	imported, err := ImportSpendingKey(exported)
	if err != nil {
		t.Fatalf("ImportSpendingKey failed: %v", err)
	}
	if !imported.SpendingKey().Equal(id.SpendingKey()) {
		t.Errorf("imported spending key does not match original")
	}
}

func TestImportSpendingKeyAccepts0xPrefix(t *testing.T) {
	id, err := Recover(big.NewInt(555))
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	imported, err := ImportSpendingKey("0x" + id.ExportSpendingKey())
	if err != nil {
		t.Fatalf("ImportSpendingKey with 0x prefix failed: %v", err)
	}
	if !imported.SpendingKey().Equal(id.SpendingKey()) {
		t.Errorf("imported spending key does not match original")
	}
}

func TestWipeZeroesBuffer(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Wipe(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("byte %d not zeroed, got %d", i, v)
		}
	}
}
