package provider

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/agent0/runner/internal/domain"
)

// testKeys returns an armored key pair. A non-empty passphrase protects
// the private key material.
func testKeys(t *testing.T, passphrase string) (pub, priv string) {
	t.Helper()

	e, err := openpgp.NewEntity("runner", "test", "runner@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}

	var pubBuf bytes.Buffer
	w, err := armor.Encode(&pubBuf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	w.Close()

	if passphrase != "" {
		if err := e.PrivateKey.Encrypt([]byte(passphrase)); err != nil {
			t.Fatalf("encrypt key: %v", err)
		}
		for _, sub := range e.Subkeys {
			if err := sub.PrivateKey.Encrypt([]byte(passphrase)); err != nil {
				t.Fatalf("encrypt subkey: %v", err)
			}
		}
	}

	var privBuf bytes.Buffer
	w, err = armor.Encode(&privBuf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SerializePrivateWithoutSigning(w, nil); err != nil {
		t.Fatalf("SerializePrivate: %v", err)
	}
	w.Close()

	return pubBuf.String(), privBuf.String()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
	}{
		{"unprotected key", ""},
		{"passphrase protected key", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, priv := testKeys(t, tt.passphrase)
			plain := []byte(`{"apiKey":"sk-test"}`)

			armored, err := Encrypt(plain, pub)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Contains([]byte(armored), []byte("sk-test")) {
				t.Fatal("ciphertext leaks plaintext")
			}

			for i := 0; i < 2; i++ {
				got, err := Decrypt(armored, priv, []byte(tt.passphrase))
				if err != nil {
					t.Fatalf("Decrypt #%d: %v", i, err)
				}
				if !bytes.Equal(got, plain) {
					t.Fatalf("Decrypt #%d = %s", i, got)
				}
			}
		})
	}
}

func TestDecryptFailures(t *testing.T) {
	pub, priv := testKeys(t, "right")
	_, otherPriv := testKeys(t, "")
	armored, err := Encrypt([]byte(`{}`), pub)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tests := []struct {
		name       string
		armored    string
		key        string
		passphrase string
	}{
		{"wrong passphrase", armored, priv, "wrong"},
		{"wrong key", armored, otherPriv, ""},
		{"not armored", "hello", priv, "right"},
		{"bad key", armored, "not a key", "right"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.armored, tt.key, []byte(tt.passphrase))
			if !errors.Is(err, domain.ErrDecryption) {
				t.Fatalf("expected ErrDecryption, got %v", err)
			}
		})
	}
}
