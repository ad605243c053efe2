package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PharmaNFTABI covers the parts of the medicine NFT contract the service uses.
const PharmaNFTABI = `[
  {"type":"function","name":"mintMedicine","stateMutability":"nonpayable",
   "inputs":[
     {"name":"to","type":"address"},
     {"name":"tokenURI","type":"string"},
     {"name":"medicineId","type":"string"},
     {"name":"batchNumber","type":"string"},
     {"name":"manufacturerName","type":"string"},
     {"name":"expiryDate","type":"string"},
     {"name":"manufacturingDate","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"MedicineMinted","anonymous":false,
   "inputs":[
     {"name":"tokenId","type":"uint256","indexed":true},
     {"name":"manufacturer","type":"address","indexed":true},
     {"name":"medicineId","type":"string","indexed":false},
     {"name":"batchNumber","type":"string","indexed":false}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[
     {"name":"from","type":"address","indexed":true},
     {"name":"to","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true}]}
]`

// MintCall holds the mintMedicine arguments.
type MintCall struct {
	To                common.Address
	TokenURI          string
	MedicineID        string
	BatchNumber       string
	ManufacturerName  string
	ExpiryDate        string
	ManufacturingDate string
}

// Contract packs calls to and parses logs from one deployed contract.
type Contract struct {
	Address common.Address
	abi     abi.ABI
}

func NewContract(address common.Address) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(PharmaNFTABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Contract{Address: address, abi: parsed}, nil
}

func (c *Contract) PackMint(call MintCall) ([]byte, error) {
	data, err := c.abi.Pack("mintMedicine",
		call.To, call.TokenURI, call.MedicineID, call.BatchNumber,
		call.ManufacturerName, call.ExpiryDate, call.ManufacturingDate)
	if err != nil {
		return nil, fmt.Errorf("pack mintMedicine: %w", err)
	}
	return data, nil
}

// Minted is the mint read back from a receipt. Manufacturer, MedicineID and
// BatchNumber are set only when FromEvent is true; a Transfer fallback
// carries the token id alone.
type Minted struct {
	TokenID      string
	Manufacturer common.Address
	MedicineID   string
	BatchNumber  string
	FromEvent    bool
}

// MintedFromReceipt reads the mint out of logs emitted by the contract.
// A decodable MedicineMinted wins; otherwise a Transfer from the zero
// address, otherwise the first Transfer seen.
func (c *Contract) MintedFromReceipt(receipt *types.Receipt) (*Minted, error) {
	mintedID := c.abi.Events["MedicineMinted"].ID
	transferID := c.abi.Events["Transfer"].ID

	var mintTransfer, anyTransfer *big.Int
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != c.Address || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case mintedID:
			if m, ok := c.decodeMinted(lg); ok {
				return m, nil
			}
		case transferID:
			if len(lg.Topics) < 4 {
				continue
			}
			id := new(big.Int).SetBytes(lg.Topics[3].Bytes())
			from := common.BytesToAddress(lg.Topics[1].Bytes())
			if from == (common.Address{}) && mintTransfer == nil {
				mintTransfer = id
			}
			if anyTransfer == nil {
				anyTransfer = id
			}
		}
	}
	switch {
	case mintTransfer != nil:
		return &Minted{TokenID: mintTransfer.String()}, nil
	case anyTransfer != nil:
		return &Minted{TokenID: anyTransfer.String()}, nil
	}
	return nil, ErrTokenIDNotFound
}

func (c *Contract) decodeMinted(lg *types.Log) (*Minted, bool) {
	if len(lg.Topics) < 3 {
		return nil, false
	}
	var args struct {
		MedicineId  string
		BatchNumber string
	}
	if err := c.abi.UnpackIntoInterface(&args, "MedicineMinted", lg.Data); err != nil {
		return nil, false
	}
	return &Minted{
		TokenID:      new(big.Int).SetBytes(lg.Topics[1].Bytes()).String(),
		Manufacturer: common.BytesToAddress(lg.Topics[2].Bytes()),
		MedicineID:   args.MedicineId,
		BatchNumber:  args.BatchNumber,
		FromEvent:    true,
	}, true
}

// PackMinted builds the data of a MedicineMinted log.
func (c *Contract) PackMinted(medicineID, batchNumber string) ([]byte, error) {
	data, err := c.abi.Events["MedicineMinted"].Inputs.NonIndexed().Pack(medicineID, batchNumber)
	if err != nil {
		return nil, fmt.Errorf("pack MedicineMinted: %w", err)
	}
	return data, nil
}

// EventID exposes an event topic hash for tests and log filters.
func (c *Contract) EventID(name string) common.Hash {
	return c.abi.Events[name].ID
}
