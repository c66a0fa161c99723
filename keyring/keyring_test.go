package keyring

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := deriveKey()

	tests := []string{
		"hunter2",
		"",
		"pässwörd with ünïcode",
		"a very long secret that spans more than a single aes block to exercise gcm properly",
	}

	for _, plaintext := range tests {
		t.Run(plaintext, func(t *testing.T) {
			if plaintext == "" {
				t.Skip("empty payloads are rejected before encryption")
			}
			encrypted, err := encrypt(key, []byte(plaintext))
			if err != nil {
				t.Fatalf("encrypt() error = %v", err)
			}
			if bytes.Contains(encrypted, []byte(plaintext)) {
				t.Error("ciphertext should not contain the plaintext")
			}

			decrypted, err := decrypt(key, encrypted)
			if err != nil {
				t.Fatalf("decrypt() error = %v", err)
			}
			if string(decrypted) != plaintext {
				t.Errorf("decrypt() = %q, want %q", decrypted, plaintext)
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := deriveKey()
	encrypted, err := encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	wrongKey := make([]byte, len(key))
	copy(wrongKey, key)
	wrongKey[0] ^= 0xff

	if _, err := decrypt(wrongKey, encrypted); err == nil {
		t.Error("decrypt() with the wrong key should fail")
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	key := deriveKey()

	if _, err := decrypt(key, []byte("not base64 at all!!")); err == nil {
		t.Error("decrypt() should reject non-base64 input")
	}
	if _, err := decrypt(key, []byte("c2hvcnQ=")); err == nil {
		t.Error("decrypt() should reject truncated ciphertext")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".credentials")
	fs := newFileStore(path)

	if err := fs.set("profile-1", "secret-1"); err != nil {
		t.Fatalf("set() error = %v", err)
	}
	if err := fs.set("profile-2", "secret-2"); err != nil {
		t.Fatalf("set() error = %v", err)
	}

	got, err := fs.get("profile-1")
	if err != nil {
		t.Fatalf("get() error = %v", err)
	}
	if got != "secret-1" {
		t.Errorf("get() = %q, want secret-1", got)
	}

	// A fresh store against the same file sees persisted entries.
	reopened := newFileStore(path)
	got, err = reopened.get("profile-2")
	if err != nil {
		t.Fatalf("get() after reopen error = %v", err)
	}
	if got != "secret-2" {
		t.Errorf("get() after reopen = %q, want secret-2", got)
	}

	// The on-disk form never contains the plaintext.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("secret-1")) || bytes.Contains(raw, []byte("secret-2")) {
		t.Error("credentials file should be encrypted")
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	fs := newFileStore(filepath.Join(t.TempDir(), ".credentials"))

	_, err := fs.get("absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("get() on missing entry error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	fs := newFileStore(filepath.Join(t.TempDir(), ".credentials"))

	if err := fs.set("profile-1", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := fs.delete("profile-1"); err != nil {
		t.Fatalf("delete() error = %v", err)
	}
	if _, err := fs.get("profile-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting a missing entry is not an error.
	if err := fs.delete("absent"); err != nil {
		t.Errorf("delete() on missing entry error = %v", err)
	}
}

func TestStore_EmptyArguments(t *testing.T) {
	if err := Store("", "secret"); err == nil {
		t.Error("Store() with empty profile ID should fail")
	}
	if err := Store("profile", ""); err == nil {
		t.Error("Store() with empty secret should fail")
	}
	if _, err := Get(""); err == nil {
		t.Error("Get() with empty profile ID should fail")
	}
	if err := Delete(""); err == nil {
		t.Error("Delete() with empty profile ID should fail")
	}
}
