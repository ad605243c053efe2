package alert

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeMedicineRecall       = "medicine_recall"
	TypeExpiryWarning        = "expiry_warning"
	TypePrescriptionReminder = "prescription_reminder"
	TypeVerificationAlert    = "verification_alert"

	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

type Alert struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AccountID       uuid.UUID  `db:"account_id" json:"account_id"`
	Type            string     `db:"type" json:"type"`
	Title           string     `db:"title" json:"title"`
	Message         string     `db:"message" json:"message"`
	Severity        string     `db:"severity" json:"severity"`
	IsRead          bool       `db:"is_read" json:"is_read"`
	RelatedEntityID *uuid.UUID `db:"related_entity_id" json:"related_entity_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Email selects the template used when a critical alert is mailed. The
// zero value uses the generic critical-alert template.
type Email struct {
	Template string
	Data     map[string]string
}
