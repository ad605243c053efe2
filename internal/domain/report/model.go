package report

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusResolved = "resolved"
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusPending:  {StatusReviewed, StatusResolved},
	StatusReviewed: {StatusResolved},
}

func validStatus(s string) bool {
	return s == StatusPending || s == StatusReviewed || s == StatusResolved
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Report is a consumer's suspicion about a medicine.
type Report struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ReporterID   *uuid.UUID `db:"reporter_id" json:"reporter_id,omitempty"`
	MedicineID   *uuid.UUID `db:"medicine_id" json:"medicine_id,omitempty"`
	MedicineName string     `db:"medicine_name" json:"medicine_name"`
	BatchNumber  string     `db:"batch_number" json:"batch_number"`
	Reason       string     `db:"reason" json:"reason"`
	Description  string     `db:"description" json:"description"`
	Location     string     `db:"location" json:"location"`
	QRPayload    string     `db:"qr_payload" json:"qr_payload,omitempty"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
