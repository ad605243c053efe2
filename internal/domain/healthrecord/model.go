package healthrecord

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypePrescription = "prescription"
	TypeDiagnosis    = "diagnosis"
	TypeLabReport    = "lab_report"
	TypeVaccination  = "vaccination"
	TypeAllergy      = "allergy"
)

var validTypes = map[string]bool{
	TypePrescription: true, TypeDiagnosis: true, TypeLabReport: true, TypeVaccination: true, TypeAllergy: true,
}

func ValidType(t string) bool { return validTypes[t] }

// Record is a medical document owned by one account.
type Record struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	OwnerID     uuid.UUID   `db:"owner_id" json:"owner_id"`
	RecordType  string      `db:"record_type" json:"record_type"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	DoctorID    *uuid.UUID  `db:"doctor_id" json:"doctor_id,omitempty"`
	RecordDate  time.Time   `db:"record_date" json:"record_date"`
	Medications []uuid.UUID `db:"medications" json:"medications"`
	Attachments []string    `db:"attachments" json:"attachments"`
	IsPrivate   bool        `db:"is_private" json:"is_private"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// VisibleTo reports whether id may read the record. Private records are
// limited to the owner and the attending doctor.
func (r *Record) VisibleTo(id uuid.UUID) bool {
	if !r.IsPrivate || r.OwnerID == id {
		return true
	}
	return r.DoctorID != nil && *r.DoctorID == id
}
