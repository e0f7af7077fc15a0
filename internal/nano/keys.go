package nano

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"
)

// NewPrivateKey draws a fresh 32-byte private key from crypto/rand and
// returns it as a 64-char upper-case hex string.
func NewPrivateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// RandomHex returns a 64-char lower-case random hex string, used for
// caller-facing token keys.
func RandomHex() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// PublicKey derives the ed25519-blake2b public key for a private key.
func PublicKey(privHex string) ([]byte, error) {
	seed, err := hex.DecodeString(privHex)
	if err != nil || len(seed) != 32 {
		return nil, errors.New("private key must be 64 hex chars")
	}
	h := blake2b.Sum512(seed)
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, err
	}
	return (&edwards25519.Point{}).ScalarBaseMult(s).Bytes(), nil
}

// GenerateKeyPair produces a new private key and its derived deposit address.
func GenerateKeyPair() (privKey string, address string, err error) {
	privKey, err = NewPrivateKey()
	if err != nil {
		return "", "", err
	}
	pub, err := PublicKey(privKey)
	if err != nil {
		return "", "", err
	}
	return privKey, EncodeAddress(pub), nil
}
