package nano

import (
	"errors"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const addressPrefix = "nano_"

// Nano's base32 alphabet (no 0, 2, l, v).
const addressAlphabet = "13456789abcdefghijkmnopqrstuwxyz"

var addressIndex = func() map[byte]uint8 {
	m := make(map[byte]uint8, len(addressAlphabet))
	for i := 0; i < len(addressAlphabet); i++ {
		m[addressAlphabet[i]] = uint8(i)
	}
	return m
}()

// EncodeAddress renders a 32-byte public key as a nano_ address: 52 chars for
// the key (4 leading zero bits + 256 key bits, 5 bits per char) followed by an
// 8-char checksum.
func EncodeAddress(pub []byte) string {
	value := new(big.Int).SetBytes(pub)
	mask := big.NewInt(31)
	key := make([]byte, 52)
	for i := 51; i >= 0; i-- {
		key[i] = addressAlphabet[int(new(big.Int).And(value, mask).Int64())]
		value.Rsh(value, 5)
	}
	return addressPrefix + string(key) + addressChecksum(pub)
}

// DecodeAddress parses a nano_ address back to the 32-byte public key,
// validating the checksum.
func DecodeAddress(address string) ([]byte, error) {
	addr := strings.TrimPrefix(address, addressPrefix)
	addr = strings.TrimPrefix(addr, "xrb_") // old library prefix
	if len(addr) != 60 {
		return nil, errors.New("address must be 60 chars after prefix")
	}
	value := new(big.Int)
	for i := 0; i < 52; i++ {
		idx, ok := addressIndex[addr[i]]
		if !ok {
			return nil, errors.New("invalid address character")
		}
		value.Lsh(value, 5)
		value.Or(value, big.NewInt(int64(idx)))
	}
	if value.BitLen() > 256 {
		return nil, errors.New("address key part out of range")
	}
	pub := make([]byte, 32)
	value.FillBytes(pub)
	if addressChecksum(pub) != addr[52:] {
		return nil, errors.New("address checksum mismatch")
	}
	return pub, nil
}

func addressChecksum(pub []byte) string {
	h, _ := blake2b.New(5, nil)
	h.Write(pub)
	sum := h.Sum(nil)
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	// 40 bits regroup cleanly into 8 base32 chars
	groups, _ := bech32.ConvertBits(sum, 8, 5, true)
	out := make([]byte, len(groups))
	for i, g := range groups {
		out[i] = addressAlphabet[g]
	}
	return string(out)
}
