package rsa

import (
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const KeyBits = 2048

// NewKeyPair generates an RSA-2048 keypair.
func NewKeyPair() (*stdrsa.PrivateKey, error) {
	priv, err := stdrsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return priv, nil
}

// EncodePublicKey renders pub as a PKIX "PUBLIC KEY" PEM block.
func EncodePublicKey(pub *stdrsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func DecodePublicKey(data string) (*stdrsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*stdrsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not RSA", key)
	}
	return pub, nil
}

// EncodePrivateKey renders priv as an unencrypted PKCS#8 PEM block.
func EncodePrivateKey(priv *stdrsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

func DecodePrivateKey(data string) (*stdrsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, errors.New("no PEM block in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(*stdrsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", key)
	}
	return priv, nil
}

// Encrypt wraps msg with RSA-OAEP(SHA-256).
func Encrypt(pub *stdrsa.PublicKey, msg []byte) ([]byte, error) {
	return stdrsa.EncryptOAEP(sha256.New(), rand.Reader, pub, msg, nil)
}

func Decrypt(priv *stdrsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return stdrsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
}
