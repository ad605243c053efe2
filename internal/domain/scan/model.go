package scan

import (
	"time"

	"github.com/google/uuid"
)

type Verdict string

const (
	VerdictGenuine  Verdict = "genuine"
	VerdictExpired  Verdict = "expired"
	VerdictRecalled Verdict = "recalled"
	VerdictUnknown  Verdict = "unknown"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictGenuine, VerdictExpired, VerdictRecalled, VerdictUnknown:
		return true
	}
	return false
}

// Result is the outcome of one verification attempt. Every call site that
// stores or returns a verdict uses this type.
type Result struct {
	Verdict      Verdict `json:"verdict"`
	Matched      bool    `json:"matched"`
	Confidence   float64 `json:"confidence"`
	DetectedText string  `json:"detected_text,omitempty"`
	MedicineName string  `json:"medicine_name,omitempty"`
}

// NewResult builds a result for a verdict. Lookups are exact so confidence
// is always 1.
func NewResult(v Verdict, medicineName, detectedText string) Result {
	return Result{
		Verdict:      v,
		Matched:      v != VerdictUnknown,
		Confidence:   1,
		DetectedText: detectedText,
		MedicineName: medicineName,
	}
}

func (r Result) Genuine() bool { return r.Verdict == VerdictGenuine }

// Scan is an append-only audit row for one resolution.
type Scan struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	MedicineID  *uuid.UUID `db:"medicine_id" json:"medicine_id,omitempty"`
	UnitID      *uuid.UUID `db:"unit_id" json:"unit_id,omitempty"`
	AccountID   *uuid.UUID `db:"account_id" json:"account_id,omitempty"`
	Result      Result     `json:"result"`
	PayloadKind string     `db:"payload_kind" json:"payload_kind"`
	RawPayload  string     `db:"raw_payload" json:"raw_payload"`
	Location    string     `db:"location" json:"location,omitempty"`
	DeviceInfo  string     `db:"device_info" json:"device_info,omitempty"`
	ScannedAt   time.Time  `db:"scanned_at" json:"scanned_at"`

	Medicine *MedicineSummary `json:"medicine,omitempty"`
}

// MedicineSummary is joined onto history rows when the medicine still exists.
type MedicineSummary struct {
	Name             string    `json:"name"`
	BatchNumber      string    `json:"batch_number"`
	ManufacturerName string    `json:"manufacturer_name"`
	ExpiryDate       time.Time `json:"expiry_date"`
}
