package bundler

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/btcsuite/btcutil/bech32"
)

const (
	envAgeSecretKey = "AGE_SECRET_KEY"
	envAgePublicKey = "AGE_PUBLIC_KEY"

	ageSecretKeyHRP = "age-secret-key-"
)

// ErrNoSigningKey is returned by NewSignerFromEnv when neither key variable is set.
var ErrNoSigningKey = errors.New("no signing key configured")

// Signer signs and verifies bundle manifests with an Ed25519 key pair derived from an age identity.
// A Signer built from a public key alone can only verify.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	recipient  string
}

// NewSignerFromEnv reads AGE_SECRET_KEY and AGE_PUBLIC_KEY.
func NewSignerFromEnv() (*Signer, error) {
	secret := strings.TrimSpace(os.Getenv(envAgeSecretKey))
	pub := strings.TrimSpace(os.Getenv(envAgePublicKey))
	if secret == "" && pub == "" {
		return nil, fmt.Errorf("%w: %s or %s must be set", ErrNoSigningKey, envAgeSecretKey, envAgePublicKey)
	}
	return NewSigner(secret, pub)
}

// NewSigner builds a Signer from an age secret key ("AGE-SECRET-KEY-1...") and/or a base64 Ed25519 public key.
// When both are given they must belong together.
func NewSigner(secretKey, publicKey string) (*Signer, error) {
	s := &Signer{}

	if secretKey != "" {
		seed, err := decodeAgeSecretKey(secretKey)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envAgeSecretKey, err)
		}
		s.privateKey = ed25519.NewKeyFromSeed(seed)
		s.publicKey = s.privateKey.Public().(ed25519.PublicKey)

		if identity, err := age.ParseX25519Identity(secretKey); err == nil {
			s.recipient = identity.Recipient().String()
		}
	}

	if publicKey != "" {
		decoded, err := decodePublicKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", envAgePublicKey, err)
		}
		switch {
		case s.publicKey == nil:
			s.publicKey = decoded
		case !bytes.Equal(s.publicKey, decoded):
			return nil, fmt.Errorf("%s does not match %s", envAgePublicKey, envAgeSecretKey)
		}
	}

	if s.publicKey == nil {
		return nil, errors.New("no public key available for signer")
	}
	return s, nil
}

// Sign produces a base64-encoded Ed25519 signature for the provided payload.
func (s *Signer) Sign(payload []byte) (string, error) {
	if s == nil {
		return "", errors.New("nil signer")
	}
	if len(s.privateKey) == 0 {
		return "", errors.New("signer configured without private key")
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.privateKey, payload)), nil
}

// Verify checks a base64 signature over payload. A key embedded in the manifest must equal the signer's key.
func (s *Signer) Verify(payload []byte, signature, manifestPublicKey string) error {
	if s == nil {
		return errors.New("nil signer")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length %d", len(sigBytes))
	}

	if manifestPublicKey != "" {
		embedded, err := decodePublicKey(manifestPublicKey)
		if err != nil {
			return fmt.Errorf("decode manifest public key: %w", err)
		}
		if !bytes.Equal(s.publicKey, embedded) {
			return errors.New("manifest signed by unexpected key")
		}
	}

	if !ed25519.Verify(s.publicKey, payload, sigBytes) {
		return errors.New("signature verification failed")
	}
	return nil
}

// PublicKeyBase64 returns the configured Ed25519 public key in base64 form.
func (s *Signer) PublicKeyBase64() string {
	if s == nil || len(s.publicKey) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.publicKey)
}

// Recipient returns the age recipient ("age1...") when the signer holds a secret key.
func (s *Signer) Recipient() string {
	if s == nil {
		return ""
	}
	return s.recipient
}

func decodePublicKey(raw string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if l := len(decoded); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return ed25519.PublicKey(decoded), nil
}

// decodeAgeSecretKey returns the 32-byte payload of an age secret key, used as the Ed25519 seed.
func decodeAgeSecretKey(raw string) ([]byte, error) {
	hrp, data, err := bech32.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(hrp, ageSecretKeyHRP) {
		return nil, fmt.Errorf("unexpected hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected seed length %d", len(decoded))
	}
	return decoded, nil
}
