package vitals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AlertNotifier receives alert events raised at measurement intake. The
// fan-out engine implements it; failures are logged, never propagated to
// the intake caller.
type AlertNotifier interface {
	AlertRaised(ctx context.Context, patientID uuid.UUID, severity Severity, title, message string) error
}

// CaregiverDirectory resolves which patients a caregiver may see.
type CaregiverDirectory interface {
	PatientIDsForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error)
}

// TxRunner executes fn inside a storage transaction propagated through the
// context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NoTx is a TxRunner for tests and single-statement setups.
func NoTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// DetailInput is one parameter reading supplied at intake.
type DetailInput struct {
	ParameterID uuid.UUID `json:"parameter_id"`
	UnitID      *uuid.UUID `json:"unit_id,omitempty"`
	Value       *float64  `json:"value,omitempty"`
	TextValue   *string   `json:"text_value,omitempty"`
}

// MeasurementInput is the intake payload for one reading event.
type MeasurementInput struct {
	PatientID   uuid.UUID     `json:"patient_id"`
	Origin      *string       `json:"origin,omitempty"`
	RecordedBy  *string       `json:"recorded_by,omitempty"`
	Observation *string       `json:"observation,omitempty"`
	Details     []DetailInput `json:"details"`
}

type Service struct {
	repo      Repository
	tx        TxRunner
	notifier  AlertNotifier
	directory CaregiverDirectory
	logger    zerolog.Logger
}

func NewService(repo Repository, tx TxRunner, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = NoTx
	}
	return &Service{repo: repo, tx: tx, logger: logger}
}

// SetNotifier attaches the fan-out engine. Optional; intake works without
// it (alerts are persisted but not fanned out).
func (s *Service) SetNotifier(n AlertNotifier) {
	s.notifier = n
}

// SetCaregiverDirectory attaches the caregiver-to-patient resolver used by
// ListAlertsForCaregiver.
func (s *Service) SetCaregiverDirectory(d CaregiverDirectory) {
	s.directory = d
}

// CreateMeasurement evaluates every supplied detail against the patient's
// vigente ranges, persists the measurement aggregate in one transaction,
// and raises fan-out when an alert results.
func (s *Service) CreateMeasurement(ctx context.Context, in *MeasurementInput) (*Measurement, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if len(in.Details) == 0 {
		return nil, fmt.Errorf("at least one detail is required")
	}

	now := time.Now().UTC()
	m := &Measurement{
		PatientID:    in.PatientID,
		RegisteredAt: now,
		Origin:       in.Origin,
		RecordedBy:   in.RecordedBy,
		Observation:  in.Observation,
		MaxSeverity:  SeverityNone,
		AlertState:   StateNew,
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateMeasurement(ctx, m); err != nil {
			return fmt.Errorf("create measurement: %w", err)
		}

		hasAlert := false
		maxSev := SeverityNone
		var alertTypes []string

		for i := range in.Details {
			d, err := s.evaluateAndStore(ctx, m.ID, m.PatientID, &in.Details[i], now)
			if err != nil {
				return err
			}
			m.Details = append(m.Details, d)
			if d.OutOfRange {
				hasAlert = true
				maxSev = MaxSeverity(maxSev, d.Severity)
				alertTypes = append(alertTypes, d.AlertType)
			}
		}

		var summary *string
		if hasAlert {
			sum := strings.Join(alertTypes, ", ")
			summary = &sum
		}
		m.HasAlert = hasAlert
		m.MaxSeverity = maxSev
		m.AlertSummary = summary
		m.EvaluatedAt = &now

		return s.repo.UpdateAlertAggregate(ctx, m.ID, hasAlert, maxSev, summary, now)
	})
	if err != nil {
		return nil, err
	}

	if m.HasAlert {
		s.raiseAlert(ctx, m)
	}
	return m, nil
}

// EvaluateDetail adds one more evaluated reading to an existing measurement
// and recomputes the parent's alert aggregate.
func (s *Service) EvaluateDetail(ctx context.Context, measurementID uuid.UUID, in *DetailInput) (*MeasurementDetail, error) {
	m, err := s.repo.GetMeasurement(ctx, measurementID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hadAlert := m.HasAlert
	prevSeverity := m.MaxSeverity
	var detail *MeasurementDetail

	err = s.tx(ctx, func(ctx context.Context) error {
		d, err := s.evaluateAndStore(ctx, m.ID, m.PatientID, in, now)
		if err != nil {
			return err
		}
		detail = d

		details, err := s.repo.ListDetails(ctx, m.ID)
		if err != nil {
			return err
		}

		hasAlert := false
		maxSev := SeverityNone
		var alertTypes []string
		for _, dd := range details {
			if dd.OutOfRange {
				hasAlert = true
				maxSev = MaxSeverity(maxSev, dd.Severity)
				alertTypes = append(alertTypes, dd.AlertType)
			}
		}
		var summary *string
		if hasAlert {
			sum := strings.Join(alertTypes, ", ")
			summary = &sum
		}
		m.HasAlert = hasAlert
		m.MaxSeverity = maxSev
		m.AlertSummary = summary
		return s.repo.UpdateAlertAggregate(ctx, m.ID, hasAlert, maxSev, summary, now)
	})
	if err != nil {
		return nil, err
	}

	// Fan out on the first alerting detail and again whenever a later
	// detail escalates the aggregate severity. Same-severity additions do
	// not re-notify.
	if m.HasAlert && (!hadAlert || m.MaxSeverity.Rank() > prevSeverity.Rank()) {
		s.raiseAlert(ctx, m)
	}
	return detail, nil
}

func (s *Service) evaluateAndStore(ctx context.Context, measurementID, patientID uuid.UUID, in *DetailInput, at time.Time) (*MeasurementDetail, error) {
	if in.ParameterID == uuid.Nil {
		return nil, fmt.Errorf("parameter_id is required")
	}

	var pr *PatientRange
	if in.Value != nil {
		var err error
		pr, err = s.repo.GetVigenteRange(ctx, patientID, in.ParameterID, at)
		if err != nil {
			return nil, fmt.Errorf("load vigente range: %w", err)
		}
	}

	ev := Evaluate(in.Value, pr)
	d := &MeasurementDetail{
		MeasurementID: measurementID,
		ParameterID:   in.ParameterID,
		UnitID:        in.UnitID,
		Value:         in.Value,
		TextValue:     in.TextValue,
		OutOfRange:    ev.OutOfRange,
		Severity:      ev.Severity,
		AlertType:     ev.AlertType,
	}
	if pr != nil {
		d.ThresholdMin = &pr.MinNormal
		d.ThresholdMax = &pr.MaxNormal
	}
	if err := s.repo.CreateDetail(ctx, d); err != nil {
		return nil, fmt.Errorf("create detail: %w", err)
	}
	return d, nil
}

func (s *Service) raiseAlert(ctx context.Context, m *Measurement) {
	if s.notifier == nil {
		return
	}
	title := fmt.Sprintf("Alerta %s", m.MaxSeverity)
	message := "Medicion fuera de rango"
	if m.AlertSummary != nil {
		message = *m.AlertSummary
	}
	if err := s.notifier.AlertRaised(ctx, m.PatientID, m.MaxSeverity, title, message); err != nil {
		s.logger.Error().Err(err).
			Str("measurement_id", m.ID.String()).
			Str("patient_id", m.PatientID.String()).
			Msg("alert fan-out failed")
	}
}

// Claim assigns the measurement's alert to staffID. Re-claiming by the same
// staff member is idempotent; any other refusal is classified by re-reading
// the row.
func (s *Service) Claim(ctx context.Context, id uuid.UUID, staffID string) (*Measurement, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, fmt.Errorf("staff id is required")
	}

	now := time.Now().UTC()
	affected, err := s.repo.ClaimMeasurement(ctx, id, staffID, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		m, err := s.repo.GetMeasurement(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case !m.HasAlert:
			return nil, ErrNoAlert
		case m.AlertState.IsTerminal():
			return nil, ErrAlreadyTerminal
		case m.ClaimedBy != nil && *m.ClaimedBy != staffID:
			return nil, ErrClaimConflict
		default:
			// The guard failed but the re-read shows a claimable row:
			// a concurrent writer got in between. Treat as conflict.
			return nil, ErrClaimConflict
		}
	}
	return s.repo.GetMeasurement(ctx, id)
}

// SetTerminal moves the alert to resolved or ignored. A claim is not a
// prerequisite, and re-applying a terminal target overwrites the previous
// one.
func (s *Service) SetTerminal(ctx context.Context, id uuid.UUID, target AlertState) (*Measurement, error) {
	if target != StateResolved && target != StateIgnored {
		return nil, ErrInvalidTarget
	}

	m, err := s.repo.GetMeasurement(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.HasAlert {
		return nil, ErrNoAlert
	}

	if err := s.repo.SetTerminalState(ctx, id, target, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetMeasurement(ctx, id)
}

func (s *Service) GetMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	m, err := s.repo.GetMeasurement(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.repo.ListDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Details = details
	return m, nil
}

func (s *Service) ListMeasurements(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	return s.repo.ListMeasurements(ctx, patientID, limit, offset)
}

func (s *Service) ListAlerts(ctx context.Context, f AlertFilter, limit, offset int) ([]*Measurement, int, error) {
	return s.repo.ListAlerts(ctx, f, limit, offset)
}

// ListAlertsForCaregiver returns alert-bearing measurements for every
// patient actively linked to the caregiver. activeOnly restricts to alerts
// still awaiting attention.
func (s *Service) ListAlertsForCaregiver(ctx context.Context, caregiverID uuid.UUID, activeOnly bool) ([]*Measurement, error) {
	if s.directory == nil {
		return nil, fmt.Errorf("caregiver directory not configured")
	}
	patientIDs, err := s.directory.PatientIDsForCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAlertsByPatients(ctx, patientIDs, activeOnly)
}

// CreateRange validates and stores a new reference range version. The
// normal band must have positive width; a zero-width band is a
// configuration error caught here, never at evaluation time.
func (s *Service) CreateRange(ctx context.Context, pr *PatientRange) error {
	if pr.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if pr.ParameterID == uuid.Nil {
		return fmt.Errorf("parameter_id is required")
	}
	if pr.MinNormal >= pr.MaxNormal {
		return fmt.Errorf("%w: min_normal must be below max_normal", ErrConfig)
	}
	if pr.MinCritico != nil && *pr.MinCritico > pr.MinNormal {
		return fmt.Errorf("%w: min_critico must not exceed min_normal", ErrConfig)
	}
	if pr.MaxCritico != nil && *pr.MaxCritico < pr.MaxNormal {
		return fmt.Errorf("%w: max_critico must not be below max_normal", ErrConfig)
	}
	if pr.DefinedBy == "" {
		pr.DefinedBy = "staff"
	}
	return s.tx(ctx, func(ctx context.Context) error {
		return s.repo.CreateRange(ctx, pr)
	})
}

func (s *Service) GetVigenteRange(ctx context.Context, patientID, parameterID uuid.UUID) (*PatientRange, error) {
	return s.repo.GetVigenteRange(ctx, patientID, parameterID, time.Now().UTC())
}

func (s *Service) ListRanges(ctx context.Context, patientID uuid.UUID) ([]*PatientRange, error) {
	return s.repo.ListRanges(ctx, patientID)
}
