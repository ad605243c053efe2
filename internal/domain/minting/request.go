package minting

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

const (
	metadataImage       = "https://vly.ai/logo.png"
	unknownManufacturer = "Unknown Manufacturer"
	tokenURIPrefix      = "data:application/json;base64,"
)

// BatchRequest is the manufacturer's mint form.
type BatchRequest struct {
	Name              string          `json:"name" validate:"required,max=200"`
	ManufacturerName  string          `json:"manufacturer_name" validate:"max=200"`
	BatchNumber       string          `json:"batch_number" validate:"required,max=100"`
	MedicineType      string          `json:"medicine_type" validate:"required,oneof=tablet capsule syrup injection ointment"`
	ManufacturingDate string          `json:"manufacturing_date" validate:"required,datetime=2006-01-02"`
	ExpiryDate        string          `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity" validate:"required,min=1,max=100"`
}

// batch checks the request and builds the batch it describes. An empty
// manufacturer name falls back to the caller's name.
func (r BatchRequest) batch(caller *account.Account) (*medicine.Medicine, error) {
	name := strings.TrimSpace(r.Name)
	batch := strings.TrimSpace(r.BatchNumber)
	if name == "" || batch == "" {
		return nil, apperr.Invalidf("name and batch_number are required")
	}
	if !medicine.ValidType(r.MedicineType) {
		return nil, apperr.Invalidf("invalid medicine_type: %s", r.MedicineType)
	}
	if r.Quantity < 1 || r.Quantity > medicine.MaxQuantity {
		return nil, apperr.Invalidf("quantity must be between 1 and %d", medicine.MaxQuantity)
	}
	if r.Price.IsNegative() {
		return nil, apperr.Invalidf("price must not be negative")
	}

	mfgDate, err := time.Parse(medicine.DateLayout, r.ManufacturingDate)
	if err != nil {
		return nil, apperr.Invalidf("manufacturing_date must be YYYY-MM-DD")
	}
	expDate, err := time.Parse(medicine.DateLayout, r.ExpiryDate)
	if err != nil {
		return nil, apperr.Invalidf("expiry_date must be YYYY-MM-DD")
	}
	if !expDate.After(mfgDate) {
		return nil, apperr.Invalidf("expiry_date must be after manufacturing_date")
	}

	mfr := strings.TrimSpace(r.ManufacturerName)
	if mfr == "" {
		mfr = strings.TrimSpace(caller.Name)
	}
	if mfr == "" {
		mfr = unknownManufacturer
	}

	return &medicine.Medicine{
		Name:              name,
		ManufacturerName:  mfr,
		ManufacturerID:    caller.ID,
		BatchNumber:       batch,
		MedicineType:      r.MedicineType,
		ManufacturingDate: mfgDate,
		ExpiryDate:        expDate,
		Price:             r.Price.Round(2),
		Quantity:          r.Quantity,
	}, nil
}

// Metadata is the ERC-721 metadata document embedded in the token URI.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

func MetadataFor(m *medicine.Medicine) Metadata {
	return Metadata{
		Name:        fmt.Sprintf("%s - Batch %s", m.Name, m.BatchNumber),
		Description: fmt.Sprintf("Authentic %s manufactured by %s", m.Name, m.ManufacturerName),
		Image:       metadataImage,
		Attributes: []Attribute{
			{TraitType: "Batch", Value: m.BatchNumber},
			{TraitType: "Manufacturer", Value: m.ManufacturerName},
			{TraitType: "Expiry", Value: m.ExpiryDate.Format(medicine.DateLayout)},
			{TraitType: "Type", Value: m.MedicineType},
		},
	}
}

// TokenURI inlines the metadata as a base64 data URI.
func (md Metadata) TokenURI() (string, error) {
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("marshal token metadata: %w", err)
	}
	return tokenURIPrefix + base64.StdEncoding.EncodeToString(b), nil
}
