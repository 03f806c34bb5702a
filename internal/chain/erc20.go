package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(fmt.Sprintf("chain: parse erc20 abi: %v", err))
	}
	erc20ABI = parsed
}

// EncodeTransfer builds the call data for ERC-20 transfer(to, amount).
func EncodeTransfer(to string, amount *big.Int) ([]byte, error) {
	if !IsAddress(to) {
		return nil, ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}
	return data, nil
}

// CAIP2 returns the chain identifier in CAIP-2 form, e.g. "eip155:8453".
func CAIP2(chainID int64) string {
	return fmt.Sprintf("eip155:%d", chainID)
}
