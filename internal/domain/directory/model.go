// Package directory holds the people and catalog registries the alert
// pipeline depends on: patients, caregivers, the links between them, and
// the clinical parameter catalog.
package directory

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	RUT       string     `db:"rut" json:"rut"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Caregiver maps to the caregiver table.
type Caregiver struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RUT       string    `db:"rut" json:"rut"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FullName returns the caregiver's display name.
func (c *Caregiver) FullName() string {
	return c.FirstName + " " + c.LastName
}

// CaregiverLink maps to the patient_caregiver_link table. An inactive link
// is kept for history but excluded from alert fan-out.
type CaregiverLink struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	CaregiverID  uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	Relationship *string   `db:"relationship" json:"relationship,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Unit maps to the unit table, e.g. mmHg, mg/dL.
type Unit struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Code string    `db:"code" json:"code"`
	Name string    `db:"name" json:"name"`
}

// Parameter maps to the parameter table: a measurable clinical variable
// such as systolic pressure or glycemia.
type Parameter struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	UnitID    *uuid.UUID `db:"unit_id" json:"unit_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
