package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AlertFilter narrows alert listings.
type AlertFilter struct {
	PatientID  *uuid.UUID
	State      *AlertState
	ClaimedBy  *string
	ActiveOnly bool
}

type Repository interface {
	// Measurements
	CreateMeasurement(ctx context.Context, m *Measurement) error
	GetMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error)
	ListMeasurements(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Measurement, int, error)
	UpdateAlertAggregate(ctx context.Context, id uuid.UUID, hasAlert bool, maxSeverity Severity, summary *string, evaluatedAt time.Time) error

	// Details
	CreateDetail(ctx context.Context, d *MeasurementDetail) error
	ListDetails(ctx context.Context, measurementID uuid.UUID) ([]*MeasurementDetail, error)

	// Alert state machine storage
	// ClaimMeasurement performs the conditional claim update and reports
	// how many rows it changed. Zero rows means the guard failed and the
	// caller must re-read to classify the refusal.
	ClaimMeasurement(ctx context.Context, id uuid.UUID, staffID string, at time.Time) (int64, error)
	SetTerminalState(ctx context.Context, id uuid.UUID, state AlertState, at time.Time) error

	// Alert read paths
	ListAlerts(ctx context.Context, f AlertFilter, limit, offset int) ([]*Measurement, int, error)
	ListAlertsByPatients(ctx context.Context, patientIDs []uuid.UUID, activeOnly bool) ([]*Measurement, error)

	// Ranges
	CreateRange(ctx context.Context, r *PatientRange) error
	GetVigenteRange(ctx context.Context, patientID, parameterID uuid.UUID, at time.Time) (*PatientRange, error)
	ListRanges(ctx context.Context, patientID uuid.UUID) ([]*PatientRange, error)
}
