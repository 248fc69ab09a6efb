// Package dsse implements DSSE (Dead Simple Signing Envelope) signing and
// verification over Ed25519, with byte-exact PAE encoding per spec.md
// §4.16.
package dsse

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strconv"
)

// PAE implements the DSSE pre-authentication encoding: octet-exact,
// ASCII-decimal length prefixes, no intermediate hash before signing.
func PAE(payloadType string, payload []byte) []byte {
	out := make([]byte, 0, len(payloadType)+len(payload)+32)
	out = append(out, "DSSEv1 "...)
	out = append(out, strconv.Itoa(len(payloadType))...)
	out = append(out, ' ')
	out = append(out, payloadType...)
	out = append(out, ' ')
	out = append(out, strconv.Itoa(len(payload))...)
	out = append(out, ' ')
	out = append(out, payload...)
	return out
}

// Signature is one envelope signature entry.
type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

// Envelope is the DSSE envelope schema.
type Envelope struct {
	PayloadType string      `json:"payloadType"`
	Payload     string      `json:"payload"`
	Signatures  []Signature `json:"signatures"`
}

// DerivedKeyID computes "sha256:" + hex(sha256(SPKI DER)) for an Ed25519
// public key, per spec.md §4.16.
func DerivedKeyID(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("dsse: failed to marshal SPKI DER: %w", err)
	}
	sum := sha256.Sum256(der)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Sign produces a DSSE envelope over payload. If callerKeyID is non-empty
// it must equal the key's derived keyid, else signing fails. If
// verifierKeyID (the receipt's verifier.keyid, when present) is non-empty
// it must also match, else signing fails.
func Sign(priv ed25519.PrivateKey, payloadType string, payload []byte, callerKeyID, verifierKeyID string) (Envelope, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return Envelope{}, fmt.Errorf("dsse: private key does not expose an ed25519 public key")
	}
	derived, err := DerivedKeyID(pub)
	if err != nil {
		return Envelope{}, err
	}
	if callerKeyID != "" && callerKeyID != derived {
		return Envelope{}, fmt.Errorf("dsse: caller-supplied keyid %q does not match derived keyid %q", callerKeyID, derived)
	}
	if verifierKeyID != "" && verifierKeyID != derived {
		return Envelope{}, fmt.Errorf("dsse: receipt verifier.keyid %q does not match signing key's derived keyid %q", verifierKeyID, derived)
	}

	pae := PAE(payloadType, payload)
	sig := ed25519.Sign(priv, pae)

	return Envelope{
		PayloadType: payloadType,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Signatures: []Signature{
			{KeyID: derived, Sig: base64.StdEncoding.EncodeToString(sig)},
		},
	}, nil
}

// Verify recomputes PAE from the envelope and verifies every signature
// entry against pub, returning an error naming the first signature that
// fails to verify.
func Verify(env Envelope, pub ed25519.PublicKey) error {
	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return fmt.Errorf("dsse: envelope payload is not valid base64: %w", err)
	}
	pae := PAE(env.PayloadType, payload)

	if len(env.Signatures) == 0 {
		return fmt.Errorf("dsse: envelope carries no signatures")
	}
	for _, s := range env.Signatures {
		sig, err := base64.StdEncoding.DecodeString(s.Sig)
		if err != nil {
			return fmt.Errorf("dsse: signature %q is not valid base64: %w", s.KeyID, err)
		}
		if !ed25519.Verify(pub, pae, sig) {
			return fmt.Errorf("dsse: signature %q failed verification", s.KeyID)
		}
	}
	return nil
}

// PublicKeyPEM renders an Ed25519 public key as a PEM-encoded SPKI block,
// the form the Bundle Exporter carries alongside the envelope.
func PublicKeyPEM(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("dsse: failed to marshal SPKI DER: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// ParsePublicKeyPEM parses a PEM-encoded Ed25519 SPKI public key.
func ParsePublicKeyPEM(pemText string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("dsse: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("dsse: failed to parse SPKI DER: %w", err)
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("dsse: PEM block does not contain an ed25519 public key")
	}
	return edPub, nil
}

// ParsePrivateKeyPEM parses a PEM-encoded PKCS#8 Ed25519 private key, the
// form --receipt-dsse-key expects.
func ParsePrivateKeyPEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("dsse: no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("dsse: failed to parse PKCS8 private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("dsse: PEM block does not contain an ed25519 private key")
	}
	return priv, nil
}
