// Package notify implements the alert fan-out engine: when a measurement
// raises an alert, it materializes in-app notification rows for the patient
// and each eligible caregiver, and dispatches the email leg asynchronously.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/cuidasalud/cuidasalud/internal/domain/vitals"
)

// Event types carried on notification rows.
const (
	TypeAlerta       = "alerta"
	TypeRecordatorio = "recordatorio"
	TypeSistema      = "sistema"
)

// Notification maps to the notification table: one delivery record per
// recipient per event. CaregiverID is nil for the patient's own row.
// StaffID records the staff member whose action triggered the event, when
// known.
type Notification struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	CaregiverID *uuid.UUID      `db:"caregiver_id" json:"caregiver_id,omitempty"`
	StaffID     *string         `db:"staff_id" json:"staff_id,omitempty"`
	Type        string          `db:"type" json:"type"`
	Severity    vitals.Severity `db:"severity" json:"severity"`
	Title       string          `db:"title" json:"title"`
	Message     string          `db:"message" json:"message"`

	DeliveredApp   bool       `db:"delivered_app" json:"delivered_app"`
	DeliveredEmail bool       `db:"delivered_email" json:"delivered_email"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CaregiverPreference maps to the caregiver_preference table: per-caregiver
// severity filters and channel switches. Rows are created lazily, so the
// absence of a row means the defaults apply.
type CaregiverPreference struct {
	CaregiverID      uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	RecibirCriticas  bool      `db:"recibir_criticas" json:"recibir_criticas"`
	RecibirModeradas bool      `db:"recibir_moderadas" json:"recibir_moderadas"`
	RecibirLeves     bool      `db:"recibir_leves" json:"recibir_leves"`
	CanalApp         bool      `db:"canal_app" json:"canal_app"`
	CanalEmail       bool      `db:"canal_email" json:"canal_email"`

	// Quiet hours suppress the email channel only, HH:MM local time.
	// Both set or both unset.
	QuietStart *string `db:"quiet_start" json:"quiet_start,omitempty"`
	QuietEnd   *string `db:"quiet_end" json:"quiet_end,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreference returns the preference applied to caregivers who never
// saved one: every severity except leve, app on, email off.
func DefaultPreference(caregiverID uuid.UUID) *CaregiverPreference {
	return &CaregiverPreference{
		CaregiverID:      caregiverID,
		RecibirCriticas:  true,
		RecibirModeradas: true,
		RecibirLeves:     false,
		CanalApp:         true,
		CanalEmail:       false,
	}
}

// WantsSeverity reports whether the caregiver accepts alerts of the given
// severity at all. A rejection skips the caregiver entirely, no row is
// written for any channel. Severities outside the closed set never pass.
func (p *CaregiverPreference) WantsSeverity(severity vitals.Severity) bool {
	switch severity {
	case vitals.SeverityCritica:
		return p.RecibirCriticas
	case vitals.SeverityModerada:
		return p.RecibirModeradas
	case vitals.SeverityLeve:
		return p.RecibirLeves
	case vitals.SeverityNone:
		return false
	default:
		return false
	}
}

// InQuietHours reports whether t falls inside the caregiver's quiet window.
// Windows may wrap past midnight, e.g. 22:00 to 07:00.
func (p *CaregiverPreference) InQuietHours(t time.Time) bool {
	if p.QuietStart == nil || p.QuietEnd == nil {
		return false
	}
	start, okS := parseClock(*p.QuietStart)
	end, okE := parseClock(*p.QuietEnd)
	if !okS || !okE || start == end {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

func parseClock(s string) (int, bool) {
	var h, m int
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	for _, c := range []byte{s[0], s[1], s[3], s[4]} {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	h = int(s[0]-'0')*10 + int(s[1]-'0')
	m = int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
