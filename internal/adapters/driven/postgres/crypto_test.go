package postgres

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestSecretEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewSecretEncryptor(testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blob, err := enc.EncryptString("sk-very-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blob == "" || blob == "sk-very-secret" {
		t.Fatalf("secret not encrypted: %q", blob)
	}

	got, err := enc.DecryptString(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sk-very-secret" {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestSecretEncryptor_EmptyString(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey())
	blob, err := enc.EncryptString("")
	if err != nil || blob != "" {
		t.Errorf("empty secret must stay empty, got %q, %v", blob, err)
	}
	got, err := enc.DecryptString("")
	if err != nil || got != "" {
		t.Errorf("empty blob must stay empty, got %q, %v", got, err)
	}
}

func TestSecretEncryptor_InvalidKey(t *testing.T) {
	if _, err := NewSecretEncryptor([]byte("short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestSecretEncryptor_WrongKey(t *testing.T) {
	enc1, _ := NewSecretEncryptor(testKey())
	enc2, _ := NewSecretEncryptor(bytes.Repeat([]byte{0x19}, 32))

	blob, err := enc1.EncryptString("secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := enc2.DecryptString(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretEncryptor_TruncatedBlob(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey())
	short := base64.StdEncoding.EncodeToString([]byte{secretVersion, 1, 2, 3})
	if _, err := enc.DecryptString(short); !errors.Is(err, ErrInvalidBlobSize) {
		t.Errorf("expected ErrInvalidBlobSize, got %v", err)
	}
}

func TestSecretEncryptor_UnsupportedVersion(t *testing.T) {
	enc, _ := NewSecretEncryptor(testKey())
	blob, _ := enc.EncryptString("secret")
	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[0] = 0x7f
	if _, err := enc.DecryptString(base64.StdEncoding.EncodeToString(raw)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}
