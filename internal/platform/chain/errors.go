package chain

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrWrongNetwork       = errors.New("wrong network")
	ErrReverted           = errors.New("transaction reverted")
	ErrTokenIDNotFound    = errors.New("token id not found in transaction logs")
)

// WrongNetworkError carries the parameters a wallet needs to add or switch
// to the expected network.
type WrongNetworkError struct {
	Got  *big.Int
	Want Network
}

func (e *WrongNetworkError) Error() string {
	return fmt.Sprintf("wrong network: connected to chain %s, expected %s (%s)", e.Got, e.Want.ChainIDHex, e.Want.Name)
}

func (e *WrongNetworkError) Is(target error) bool {
	return target == ErrWrongNetwork
}
