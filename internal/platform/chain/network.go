package chain

import (
	"fmt"
	"math/big"
)

// Currency is the native token of a network.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network describes an EVM chain in the shape wallets expect for
// wallet_addEthereumChain.
type Network struct {
	ChainID     *big.Int `json:"-"`
	ChainIDHex  string   `json:"chainId"`
	Name        string   `json:"chainName"`
	Currency    Currency `json:"nativeCurrency"`
	RPCURLs     []string `json:"rpcUrls"`
	ExplorerURL []string `json:"blockExplorerUrls"`
}

// PolygonAmoy is the default network for minting.
var PolygonAmoy = Network{
	ChainID:     big.NewInt(80002),
	ChainIDHex:  "0x13882",
	Name:        "Polygon Amoy Testnet",
	Currency:    Currency{Name: "MATIC", Symbol: "MATIC", Decimals: 18},
	RPCURLs:     []string{"https://rpc-amoy.polygon.technology/"},
	ExplorerURL: []string{"https://amoy.polygonscan.com/"},
}

// NetworkFor returns PolygonAmoy when id matches it, otherwise a minimal
// description built from id and rpcURL.
func NetworkFor(id *big.Int, rpcURL string) Network {
	if id.Cmp(PolygonAmoy.ChainID) == 0 {
		n := PolygonAmoy
		if rpcURL != "" {
			n.RPCURLs = []string{rpcURL}
		}
		return n
	}
	return Network{
		ChainID:    new(big.Int).Set(id),
		ChainIDHex: fmt.Sprintf("0x%x", id),
		Name:       fmt.Sprintf("Chain %s", id),
		Currency:   Currency{Name: "ETH", Symbol: "ETH", Decimals: 18},
		RPCURLs:    []string{rpcURL},
	}
}

// TxURL links a transaction on the network's explorer, or "" without one.
func (n Network) TxURL(hash string) string {
	if len(n.ExplorerURL) == 0 {
		return ""
	}
	return n.ExplorerURL[0] + "tx/" + hash
}
