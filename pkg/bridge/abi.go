package bridge

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"trx_discount_back/internal/wallet"
)

// AddressParam encodes a TRON address as a 32-byte ABI word.
func AddressParam(address string) (string, error) {
	body, err := wallet.Body(address)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(common.LeftPadBytes(body, 32)), nil
}

var ErrNegativeUint = errors.New("negative value for uint256 parameter")

// UintParam encodes a non-negative amount as a 32-byte ABI word.
func UintParam(v int64) (string, error) {
	if v < 0 {
		return "", errors.Wrapf(ErrNegativeUint, "%d", v)
	}
	return hex.EncodeToString(common.LeftPadBytes(big.NewInt(v).Bytes(), 32)), nil
}
