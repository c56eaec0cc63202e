package provider

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/agent0/runner/internal/domain"
)

// maxPlaintext bounds a decrypted settings document.
const maxPlaintext = 1 << 20

// Decrypt opens an armored OpenPGP message with an armored private key,
// unlocking the key (and its subkeys) with passphrase when they are
// protected. Every failure wraps domain.ErrDecryption.
func Decrypt(armored, privateKey string, passphrase []byte) ([]byte, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(privateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %w", domain.ErrDecryption, err)
	}
	if err := unlock(keyring, passphrase); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecryption, err)
	}

	block, err := armor.Decode(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("%w: decode armor: %w", domain.ErrDecryption, err)
	}
	md, err := openpgp.ReadMessage(block.Body, keyring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read message: %w", domain.ErrDecryption, err)
	}
	plain, err := io.ReadAll(io.LimitReader(md.UnverifiedBody, maxPlaintext+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrDecryption, err)
	}
	if len(plain) > maxPlaintext {
		return nil, fmt.Errorf("%w: plaintext exceeds %d bytes", domain.ErrDecryption, maxPlaintext)
	}
	return plain, nil
}

func unlock(keyring openpgp.EntityList, passphrase []byte) error {
	for _, e := range keyring {
		if e.PrivateKey == nil {
			return errors.New("key ring has no private key")
		}
		if e.PrivateKey.Encrypted {
			if err := e.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("unlock private key: %w", err)
			}
		}
		for _, sub := range e.Subkeys {
			if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
				if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
					return fmt.Errorf("unlock subkey: %w", err)
				}
			}
		}
	}
	return nil
}

// Encrypt seals plaintext for the holder of the armored public key and
// returns an armored PGP MESSAGE.
func Encrypt(plaintext []byte, publicKey string) (string, error) {
	recipients, err := openpgp.ReadArmoredKeyRing(strings.NewReader(publicKey))
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}

	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", fmt.Errorf("armor: %w", err)
	}
	w, err := openpgp.Encrypt(aw, recipients, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("armor: %w", err)
	}
	return buf.String(), nil
}
