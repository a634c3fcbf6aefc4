package hybrid

import (
	stdrsa "crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"voip_chat/internal/cryptographic/encryption"
	"voip_chat/internal/cryptographic/rsa"
)

var ErrDecryption = errors.New("decryption failed")

type (
	// Sealed is one hybrid-encrypted payload; every field is hex on the wire.
	Sealed struct {
		Ciphertext []byte
		SealedKey  []byte
		Nonce      []byte
	}

	sealedJSON struct {
		Ciphertext string `json:"ciphertext"`
		SealedKey  string `json:"sealed_key"`
		Nonce      string `json:"nonce"`
	}
)

// GenerateKeyPair returns a fresh RSA-2048 keypair.
func GenerateKeyPair() (*stdrsa.PrivateKey, *stdrsa.PublicKey, error) {
	priv, err := rsa.NewKeyPair()
	if err != nil {
		return nil, nil, err
	}
	return priv, &priv.PublicKey, nil
}

// Seal encrypts plaintext under a new symmetric key and nonce and wraps the key for pub.
// Nothing is reused between calls.
func Seal(plaintext []byte, pub *stdrsa.PublicKey) (Sealed, error) {
	if pub == nil {
		return Sealed{}, errors.New("seal: nil recipient key")
	}
	key, err := encryption.NewKey()
	if err != nil {
		return Sealed{}, err
	}
	nonce, ciphertext, err := encryption.AEADEncrypt(key, plaintext, nil)
	if err != nil {
		return Sealed{}, err
	}
	sealedKey, err := rsa.Encrypt(pub, key)
	if err != nil {
		return Sealed{}, fmt.Errorf("seal key: %w", err)
	}
	return Sealed{Ciphertext: ciphertext, SealedKey: sealedKey, Nonce: nonce}, nil
}

// Open reverses Seal. Every failure is reported as ErrDecryption.
func Open(s Sealed, priv *stdrsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrDecryption)
	}
	if len(s.Nonce) != encryption.NonceSize || len(s.SealedKey) == 0 {
		return nil, fmt.Errorf("%w: malformed sealed payload", ErrDecryption)
	}
	key, err := rsa.Decrypt(priv, s.SealedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap key: %v", ErrDecryption, err)
	}
	if len(key) != encryption.KeySize {
		return nil, fmt.Errorf("%w: unexpected key size %d", ErrDecryption, len(key))
	}
	plain, err := encryption.AEADDecrypt(key, s.Nonce, s.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plain, nil
}

func (s Sealed) MarshalJSON() ([]byte, error) {
	return json.Marshal(sealedJSON{
		Ciphertext: hex.EncodeToString(s.Ciphertext),
		SealedKey:  hex.EncodeToString(s.SealedKey),
		Nonce:      hex.EncodeToString(s.Nonce),
	})
}

func (s *Sealed) UnmarshalJSON(data []byte) error {
	var w sealedJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	var err error
	if s.Ciphertext, err = hex.DecodeString(w.Ciphertext); err != nil {
		return fmt.Errorf("%w: ciphertext: %v", ErrDecryption, err)
	}
	if s.SealedKey, err = hex.DecodeString(w.SealedKey); err != nil {
		return fmt.Errorf("%w: sealed_key: %v", ErrDecryption, err)
	}
	if s.Nonce, err = hex.DecodeString(w.Nonce); err != nil {
		return fmt.Errorf("%w: nonce: %v", ErrDecryption, err)
	}
	return nil
}

// SealBytes seals plaintext and returns its JSON wire form.
func SealBytes(plaintext []byte, pub *stdrsa.PublicKey) ([]byte, error) {
	s, err := Seal(plaintext, pub)
	if err != nil {
		return nil, err
	}
	return s.MarshalJSON()
}

// OpenBytes parses the JSON wire form and opens it.
func OpenBytes(data []byte, priv *stdrsa.PrivateKey) ([]byte, error) {
	var s Sealed
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return Open(s, priv)
}
