package ota

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// VerifyChecksum hashes the file at path and compares it against an
// "sha256:<hex>" checksum string.
func VerifyChecksum(path, expected string) error {
	const prefix = "sha256:"
	if !strings.HasPrefix(expected, prefix) {
		return fmt.Errorf("unsupported checksum algorithm: %s", expected)
	}
	wantHex := strings.TrimPrefix(expected, prefix)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash image: %w", err)
	}
	gotHex := hex.EncodeToString(h.Sum(nil))
	if gotHex != wantHex {
		return fmt.Errorf("checksum mismatch: expected=%s actual=%s", wantHex, gotHex)
	}
	return nil
}

// VerifySignature checks the image at path against a base64 Ed25519
// signature and the cloud's signing public key.
//
// allowUnsigned must only ever be set from the OTA_ALLOW_UNSIGNED
// development override — in production a missing signature or missing key
// always rejects the update.
func VerifySignature(path string, signatureB64 string, pubKey ed25519.PublicKey, allowUnsigned bool) error {
	if signatureB64 == "" {
		if allowUnsigned {
			return nil
		}
		return fmt.Errorf("package has no digital signature (set OTA_ALLOW_UNSIGNED=true only in development)")
	}
	if pubKey == nil {
		if allowUnsigned {
			return nil
		}
		return fmt.Errorf("signing public key not configured (set OTA_ALLOW_UNSIGNED=true only in development)")
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image for signature check: %w", err)
	}
	if !ed25519.Verify(pubKey, data, sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
