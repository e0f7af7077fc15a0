package nano

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"
)

// Sign produces an ed25519 signature over message using blake2b-512 in place
// of SHA-512, which is what the ledger's nodes verify against.
func Sign(privHex string, message []byte) (string, error) {
	seed, err := hex.DecodeString(privHex)
	if err != nil || len(seed) != 32 {
		return "", errors.New("private key must be 64 hex chars")
	}
	h := blake2b.Sum512(seed)
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return "", err
	}
	prefix := h[32:]
	pub := (&edwards25519.Point{}).ScalarBaseMult(s).Bytes()

	rh, _ := blake2b.New512(nil)
	rh.Write(prefix)
	rh.Write(message)
	r, err := edwards25519.NewScalar().SetUniformBytes(rh.Sum(nil))
	if err != nil {
		return "", err
	}
	R := (&edwards25519.Point{}).ScalarBaseMult(r).Bytes()

	kh, _ := blake2b.New512(nil)
	kh.Write(R)
	kh.Write(pub)
	kh.Write(message)
	k, err := edwards25519.NewScalar().SetUniformBytes(kh.Sum(nil))
	if err != nil {
		return "", err
	}

	S := edwards25519.NewScalar().MultiplyAdd(k, s, r)
	sig := append(R, S.Bytes()...)
	return strings.ToUpper(hex.EncodeToString(sig)), nil
}

// Verify checks an ed25519-blake2b signature against a 32-byte public key.
func Verify(pub []byte, message []byte, sigHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != 64 || len(pub) != 32 {
		return false
	}
	A, err := (&edwards25519.Point{}).SetBytes(pub)
	if err != nil {
		return false
	}
	S, err := edwards25519.NewScalar().SetCanonicalBytes(sig[32:])
	if err != nil {
		return false
	}

	kh, _ := blake2b.New512(nil)
	kh.Write(sig[:32])
	kh.Write(pub)
	kh.Write(message)
	k, err := edwards25519.NewScalar().SetUniformBytes(kh.Sum(nil))
	if err != nil {
		return false
	}

	minusK := edwards25519.NewScalar().Negate(k)
	// [S]B - [k]A should land back on R
	R := (&edwards25519.Point{}).VarTimeDoubleScalarBaseMult(minusK, A, S)
	return bytes.Equal(R.Bytes(), sig[:32])
}
