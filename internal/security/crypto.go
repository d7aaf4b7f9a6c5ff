// Package security provides the controller's Ed25519 device identity and
// the signing-key loader OTA update verification uses.
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Keypair holds the device's Ed25519 identity, used as its stable public
// identifier and (where the cloud requires it) to sign outbound payloads.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeypair creates a new Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// LoadOrCreateKeypair loads an existing keypair from disk, or generates a
// new one on first run. Keys are stored in edgeHome/keys/.
func LoadOrCreateKeypair(edgeHome string) (*Keypair, error) {
	keyDir := filepath.Join(edgeHome, "keys")
	pubPath := filepath.Join(keyDir, "device.pub")
	privPath := filepath.Join(keyDir, "device.key")

	pubBytes, pubErr := os.ReadFile(pubPath)
	privBytes, privErr := os.ReadFile(privPath)

	if pubErr == nil && privErr == nil {
		pub, err := hex.DecodeString(string(pubBytes))
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		priv, err := hex.DecodeString(string(privBytes))
		if err != nil {
			return nil, fmt.Errorf("decode private key: %w", err)
		}
		return &Keypair{
			Public:  ed25519.PublicKey(pub),
			Private: ed25519.PrivateKey(priv),
		}, nil
	}

	kp, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(kp.Public)), 0644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(kp.Private)), 0600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}

	return kp, nil
}

// PublicKeyHex returns the public key as a hex string (used as the
// device's stable identifier in registration payloads).
func (kp *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(kp.Public)
}

// Sign signs a message with the device's private key.
func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// Verify checks a signature against a public key.
func Verify(message, signature []byte, publicKey ed25519.PublicKey) bool {
	return ed25519.Verify(publicKey, message, signature)
}

// LoadSigningPublicKeyHex reads the cloud's OTA code-signing public key
// from path, stored as a hex-encoded Ed25519 public key (the same
// encoding LoadOrCreateKeypair uses for the device's own identity).
func LoadSigningPublicKeyHex(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing public key: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode signing public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signing public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}
