package nano

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Block is a state block in the node's json_block wire format.
type Block struct {
	Type           string `json:"type"`
	Account        string `json:"account"`
	Previous       string `json:"previous"`
	Representative string `json:"representative"`
	Balance        string `json:"balance"`
	Link           string `json:"link"`
	LinkAsAccount  string `json:"link_as_account,omitempty"`
	Signature      string `json:"signature"`
	Work           string `json:"work"`
}

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// statePreamble is the state-block hash preamble (31 zero bytes, then 0x06).
var statePreamble = func() []byte {
	b := make([]byte, 32)
	b[31] = 0x06
	return b
}()

// NewStateBlock constructs, hashes and signs one state block. previous is
// empty for the open block of an account. link is the 64-hex link field:
// the receivable payment id for open/receive blocks, the destination public
// key for send blocks. The block hash is returned alongside the block.
func NewStateBlock(privHex, previous, representative, balanceRaw, link, work string) (*Block, string, error) {
	pub, err := PublicKey(privHex)
	if err != nil {
		return nil, "", err
	}
	if previous == "" {
		previous = zeroHash
	}
	previous = strings.ToUpper(previous)
	link = strings.ToUpper(link)

	hash, err := hashStateBlock(pub, previous, representative, balanceRaw, link)
	if err != nil {
		return nil, "", err
	}
	sig, err := Sign(privHex, hash)
	if err != nil {
		return nil, "", err
	}

	linkPub, err := hex.DecodeString(link)
	if err != nil || len(linkPub) != 32 {
		return nil, "", errors.New("link must be 64 hex chars")
	}
	block := &Block{
		Type:           "state",
		Account:        EncodeAddress(pub),
		Previous:       previous,
		Representative: representative,
		Balance:        balanceRaw,
		Link:           link,
		LinkAsAccount:  EncodeAddress(linkPub),
		Signature:      sig,
		Work:           work,
	}
	return block, strings.ToUpper(hex.EncodeToString(hash)), nil
}

// AddressToLink converts an account address to the 64-hex link value used by
// send blocks.
func AddressToLink(address string) (string, error) {
	pub, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(pub)), nil
}

func hashStateBlock(accountPub []byte, previous, representative, balanceRaw, link string) ([]byte, error) {
	prev, err := hex.DecodeString(previous)
	if err != nil || len(prev) != 32 {
		return nil, errors.New("previous must be 64 hex chars")
	}
	repPub, err := DecodeAddress(representative)
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(balanceRaw, 10)
	if !ok || balance.Sign() < 0 {
		return nil, errors.New("invalid raw balance")
	}
	balanceBytes := make([]byte, 16)
	if balance.BitLen() > 128 {
		return nil, errors.New("raw balance exceeds 128 bits")
	}
	balance.FillBytes(balanceBytes)
	linkBytes, err := hex.DecodeString(link)
	if err != nil || len(linkBytes) != 32 {
		return nil, errors.New("link must be 64 hex chars")
	}

	h, _ := blake2b.New256(nil)
	h.Write(statePreamble)
	h.Write(accountPub)
	h.Write(prev)
	h.Write(repPub)
	h.Write(balanceBytes)
	h.Write(linkBytes)
	return h.Sum(nil), nil
}
