// Package vitals implements the clinical alert pipeline core: threshold
// evaluation of measured values against patient reference ranges, the alert
// lifecycle state machine, and the intake flow that ties them together.
package vitals

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how far a value deviates from its normal band.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLeve     Severity = "leve"
	SeverityModerada Severity = "moderada"
	SeverityCritica  Severity = "critica"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLeve:     1,
	SeverityModerada: 2,
	SeverityCritica:  3,
}

// Rank returns the ordinal position of the severity, none < leve <
// moderada < critica. Unknown values rank below none.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the closed set of severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MaxSeverity returns the higher-ranked of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// AlertState is the lifecycle state of a measurement's alert.
type AlertState string

const (
	StateNew        AlertState = "new"
	StateInProgress AlertState = "in_progress"
	StateResolved   AlertState = "resolved"
	StateIgnored    AlertState = "ignored"
)

// IsTerminal reports whether the state admits no further claims.
func (s AlertState) IsTerminal() bool {
	return s == StateResolved || s == StateIgnored
}

// PatientRange maps to the patient_range table: one versioned reference
// band for a (patient, parameter) pair. At most one version is vigente at
// any instant.
type PatientRange struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ParameterID   uuid.UUID  `db:"parameter_id" json:"parameter_id"`
	ParameterCode string     `db:"parameter_code" json:"parameter_code,omitempty"`
	MinNormal     float64    `db:"min_normal" json:"min_normal"`
	MaxNormal     float64    `db:"max_normal" json:"max_normal"`
	MinCritico    *float64   `db:"min_critico" json:"min_critico,omitempty"`
	MaxCritico    *float64   `db:"max_critico" json:"max_critico,omitempty"`
	VigenciaDesde time.Time  `db:"vigencia_desde" json:"vigencia_desde"`
	VigenciaHasta *time.Time `db:"vigencia_hasta" json:"vigencia_hasta,omitempty"`
	Version       int        `db:"version" json:"version"`
	DefinedBy     string     `db:"defined_by" json:"defined_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// CoversAt reports whether the range's validity window includes t.
func (r *PatientRange) CoversAt(t time.Time) bool {
	if t.Before(r.VigenciaDesde) {
		return false
	}
	return r.VigenciaHasta == nil || t.Before(*r.VigenciaHasta)
}

// Measurement maps to the measurement table: one clinical reading event
// owning 1..N detail rows.
type Measurement struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
	EvaluatedAt  *time.Time `db:"evaluated_at" json:"evaluated_at,omitempty"`
	Origin       *string    `db:"origin" json:"origin,omitempty"`
	RecordedBy   *string    `db:"recorded_by" json:"recorded_by,omitempty"`
	Observation  *string    `db:"observation" json:"observation,omitempty"`

	HasAlert     bool       `db:"has_alert" json:"has_alert"`
	MaxSeverity  Severity   `db:"max_severity" json:"max_severity"`
	AlertSummary *string    `db:"alert_summary" json:"alert_summary,omitempty"`
	AlertState   AlertState `db:"alert_state" json:"alert_state"`
	ClaimedBy    *string    `db:"claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	IgnoredAt    *time.Time `db:"ignored_at" json:"ignored_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Details []*MeasurementDetail `db:"-" json:"details,omitempty"`
}

// MeasurementDetail maps to the measurement_detail table: one parameter's
// evaluation within a measurement. Immutable after creation.
type MeasurementDetail struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	MeasurementID uuid.UUID  `db:"measurement_id" json:"measurement_id"`
	ParameterID   uuid.UUID  `db:"parameter_id" json:"parameter_id"`
	UnitID        *uuid.UUID `db:"unit_id" json:"unit_id,omitempty"`
	Value         *float64   `db:"value" json:"value,omitempty"`
	TextValue     *string    `db:"text_value" json:"text_value,omitempty"`
	OutOfRange    bool       `db:"out_of_range" json:"out_of_range"`
	Severity      Severity   `db:"severity" json:"severity"`
	ThresholdMin  *float64   `db:"threshold_min" json:"threshold_min,omitempty"`
	ThresholdMax  *float64   `db:"threshold_max" json:"threshold_max,omitempty"`
	AlertType     string     `db:"alert_type" json:"alert_type"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
