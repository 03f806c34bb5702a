package chain

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrInvalidTxHash  = errors.New("invalid transaction hash")
)

// BaseChainID is the EVM chain id of Base mainnet.
const BaseChainID int64 = 8453

// IsAddress reports whether s is 40 hex characters, optionally 0x-prefixed.
func IsAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}

// FormatAddress returns the canonical lowercase 0x form of an address.
func FormatAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return "0x" + strings.ToLower(strip0x(s)), nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a valid address.
func ChecksumAddress(s string) string {
	return common.HexToAddress(strings.TrimSpace(s)).Hex()
}

// IsTxHash reports whether s is 64 hex characters, optionally 0x-prefixed.
func IsTxHash(s string) bool {
	h := strip0x(strings.TrimSpace(s))
	if len(h) != 2*common.HashLength {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// FormatTxHash returns the canonical lowercase 0x form of a transaction hash.
func FormatTxHash(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsTxHash(s) {
		return "", ErrInvalidTxHash
	}
	return "0x" + strings.ToLower(strip0x(s)), nil
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
