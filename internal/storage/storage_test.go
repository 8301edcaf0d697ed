package storage

import (
	"testing"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("expected missing key to be absent, got ok=%v err=%v", ok, err)
	}
	if err := s.Set("k", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Get after Set = %q, %v, %v", v, ok, err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Errorf("expected key to be absent after Delete")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "0xabc", []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := fs.Set("identity", []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	raw, ok, err := fs.Get("identity")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"hello":"world"}` {
		t.Errorf("Get returned %q, want the original plaintext", raw)
	}
}

func TestFileStoreGetMissingKey(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "0xabc", []byte("pw"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, ok, err := fs.Get("nope"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
}

func TestFileStoreWrongPassphraseFailsToDecrypt(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "0xabc", []byte("right-passphrase"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := fs.Set("notes", []byte("secret-payload")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	wrong, err := NewFileStore(dir, "0xabc", []byte("wrong-passphrase"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, _, err := wrong.Get("notes"); err == nil {
		t.Errorf("expected decryption failure with the wrong passphrase")
	}
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "0xabc", []byte("pw"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := fs.Delete("never-set"); err != nil {
		t.Errorf("deleting an absent key should not error, got %v", err)
	}
	if err := fs.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := fs.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := fs.Delete("k"); err != nil {
		t.Errorf("second delete of the same key should not error, got %v", err)
	}
}

func TestFileStoreOverwritesExistingValue(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "0xabc", []byte("pw"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := fs.Set("k", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := fs.Set("k", []byte("v2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	raw, ok, err := fs.Get("k")
	if err != nil || !ok || string(raw) != "v2" {
		t.Fatalf("Get after overwrite = %q, %v, %v, want v2", raw, ok, err)
	}
}
