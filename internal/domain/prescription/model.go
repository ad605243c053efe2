package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	UnknownMedicine = "Unknown Medicine"
)

func validStatus(s string) bool {
	return s == StatusActive || s == StatusCompleted || s == StatusCancelled
}

// Medication is one line of a prescription. MedicineName is filled in on
// read and not stored.
type Medication struct {
	MedicineID   uuid.UUID `json:"medicine_id" validate:"required"`
	MedicineName string    `json:"medicine_name,omitempty"`
	Dosage       string    `json:"dosage" validate:"required,max=100"`
	Frequency    string    `json:"frequency" validate:"required,max=100"`
	Duration     string    `json:"duration" validate:"required,max=100"`
	Instructions string    `json:"instructions" validate:"max=500"`
}

type Prescription struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	PatientID        uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	Diagnosis        string       `db:"diagnosis" json:"diagnosis"`
	Medications      []Medication `db:"medications" json:"medications"`
	PrescriptionDate time.Time    `db:"prescription_date" json:"prescription_date"`
	ValidUntil       time.Time    `db:"valid_until" json:"valid_until"`
	Status           string       `db:"status" json:"status"`
	Notes            string       `db:"notes" json:"notes,omitempty"`
	QRCode           string       `db:"qr_code" json:"qr_code"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

// Involves reports whether id is the patient or the prescribing doctor.
func (p *Prescription) Involves(id uuid.UUID) bool {
	return p.PatientID == id || p.DoctorID == id
}
