package medicine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Medicine is one minted batch.
type Medicine struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	ManufacturerName   string          `db:"manufacturer_name" json:"manufacturer_name"`
	ManufacturerID     uuid.UUID       `db:"manufacturer_id" json:"manufacturer_id"`
	BatchNumber        string          `db:"batch_number" json:"batch_number"`
	MedicineType       string          `db:"medicine_type" json:"medicine_type"`
	ManufacturingDate  time.Time       `db:"manufacturing_date" json:"manufacturing_date"`
	ExpiryDate         time.Time       `db:"expiry_date" json:"expiry_date"`
	Price              decimal.Decimal `db:"price" json:"price"`
	Quantity           int             `db:"quantity" json:"quantity"`
	TokenID            string          `db:"token_id" json:"token_id"`
	TransactionHash    string          `db:"transaction_hash" json:"transaction_hash"`
	ContractAddress    string          `db:"contract_address" json:"contract_address"`
	QRPayload          string          `db:"qr_payload" json:"qr_payload"`
	IsActive           bool            `db:"is_active" json:"is_active"`
	IsRecalled         bool            `db:"is_recalled" json:"is_recalled"`
	VerificationStatus string          `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// ExpiredAt reports whether the expiry date lies strictly before now.
func (m *Medicine) ExpiredAt(now time.Time) bool {
	return m.ExpiryDate.Before(now)
}

// Unit is one physical item of a batch.
type Unit struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MedicineID   uuid.UUID `db:"medicine_id" json:"medicine_id"`
	SerialNumber int       `db:"serial_number" json:"serial_number"`
	TokenID      string    `db:"token_id" json:"token_id"`
	QRPayload    string    `db:"qr_payload" json:"qr_payload"`
	IsVerified   bool      `db:"is_verified" json:"is_verified"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Stats summarises a manufacturer's catalogue.
type Stats struct {
	TotalMedicines int `json:"total_medicines"`
	TotalBatches   int `json:"total_batches"`
	TotalScans     int `json:"total_scans"`
}

// QRCode is the JSON document printed on batch and unit labels.
type QRCode struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Batch    string `json:"batch"`
}

func (q QRCode) String() string {
	b, _ := json.Marshal(q)
	return string(b)
}

// UnitTokenID derives the token id of the serial-th unit of a batch.
func UnitTokenID(batchTokenID string, serial int) string {
	return fmt.Sprintf("%s-%d", batchTokenID, serial)
}

// BuildUnits derives the Quantity units of a minted batch. Serial numbers
// run from 1 to Quantity.
func BuildUnits(m *Medicine) []*Unit {
	units := make([]*Unit, 0, m.Quantity)
	for i := 1; i <= m.Quantity; i++ {
		tokenID := UnitTokenID(m.TokenID, i)
		units = append(units, &Unit{
			MedicineID:   m.ID,
			SerialNumber: i,
			TokenID:      tokenID,
			QRPayload:    QRCode{Contract: m.ContractAddress, TokenID: tokenID, Batch: m.BatchNumber}.String(),
			Status:       "minted",
		})
	}
	return units
}
