package vitals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	measurements map[uuid.UUID]*Measurement
	details      map[uuid.UUID][]*MeasurementDetail
	ranges       []*PatientRange
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		measurements: make(map[uuid.UUID]*Measurement),
		details:      make(map[uuid.UUID][]*MeasurementDetail),
	}
}

func (m *mockRepo) CreateMeasurement(_ context.Context, mm *Measurement) error {
	if mm.ID == uuid.Nil {
		mm.ID = uuid.New()
	}
	mm.CreatedAt = time.Now()
	m.measurements[mm.ID] = mm
	return nil
}

func (m *mockRepo) GetMeasurement(_ context.Context, id uuid.UUID) (*Measurement, error) {
	mm, ok := m.measurements[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mm
	return &cp, nil
}

func (m *mockRepo) ListMeasurements(_ context.Context, patientID *uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	var out []*Measurement
	for _, mm := range m.measurements {
		if patientID != nil && mm.PatientID != *patientID {
			continue
		}
		out = append(out, mm)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateAlertAggregate(_ context.Context, id uuid.UUID, hasAlert bool, maxSeverity Severity, summary *string, evaluatedAt time.Time) error {
	mm, ok := m.measurements[id]
	if !ok {
		return ErrNotFound
	}
	mm.HasAlert = hasAlert
	mm.MaxSeverity = maxSeverity
	mm.AlertSummary = summary
	mm.EvaluatedAt = &evaluatedAt
	return nil
}

func (m *mockRepo) CreateDetail(_ context.Context, d *MeasurementDetail) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.details[d.MeasurementID] = append(m.details[d.MeasurementID], d)
	return nil
}

func (m *mockRepo) ListDetails(_ context.Context, measurementID uuid.UUID) ([]*MeasurementDetail, error) {
	return m.details[measurementID], nil
}

// ClaimMeasurement mirrors the conditional UPDATE: the row changes only
// when it has an alert, is not terminal, and is unclaimed or claimed by the
// same staff member.
func (m *mockRepo) ClaimMeasurement(_ context.Context, id uuid.UUID, staffID string, at time.Time) (int64, error) {
	mm, ok := m.measurements[id]
	if !ok {
		return 0, nil
	}
	if !mm.HasAlert || mm.AlertState.IsTerminal() {
		return 0, nil
	}
	if mm.ClaimedBy != nil && *mm.ClaimedBy != staffID {
		return 0, nil
	}
	mm.AlertState = StateInProgress
	mm.ClaimedBy = &staffID
	mm.ClaimedAt = &at
	return 1, nil
}

func (m *mockRepo) SetTerminalState(_ context.Context, id uuid.UUID, state AlertState, at time.Time) error {
	mm, ok := m.measurements[id]
	if !ok {
		return ErrNotFound
	}
	switch state {
	case StateResolved:
		mm.AlertState = StateResolved
		mm.ResolvedAt = &at
		mm.IgnoredAt = nil
	case StateIgnored:
		mm.AlertState = StateIgnored
		mm.IgnoredAt = &at
		mm.ResolvedAt = nil
	default:
		return ErrInvalidTarget
	}
	return nil
}

func (m *mockRepo) ListAlerts(_ context.Context, f AlertFilter, limit, offset int) ([]*Measurement, int, error) {
	var out []*Measurement
	for _, mm := range m.measurements {
		if !mm.HasAlert {
			continue
		}
		if f.PatientID != nil && mm.PatientID != *f.PatientID {
			continue
		}
		if f.State != nil && mm.AlertState != *f.State {
			continue
		}
		if f.ClaimedBy != nil && (mm.ClaimedBy == nil || *mm.ClaimedBy != *f.ClaimedBy) {
			continue
		}
		if f.ActiveOnly && mm.AlertState.IsTerminal() {
			continue
		}
		out = append(out, mm)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListAlertsByPatients(_ context.Context, patientIDs []uuid.UUID, activeOnly bool) ([]*Measurement, error) {
	set := make(map[uuid.UUID]bool, len(patientIDs))
	for _, id := range patientIDs {
		set[id] = true
	}
	var out []*Measurement
	for _, mm := range m.measurements {
		if !mm.HasAlert || !set[mm.PatientID] {
			continue
		}
		if activeOnly && mm.AlertState.IsTerminal() {
			continue
		}
		out = append(out, mm)
	}
	return out, nil
}

func (m *mockRepo) CreateRange(_ context.Context, r *PatientRange) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	maxVersion := 0
	for _, ex := range m.ranges {
		if ex.PatientID == r.PatientID && ex.ParameterID == r.ParameterID {
			if ex.VigenciaHasta == nil {
				ex.VigenciaHasta = &r.VigenciaDesde
			}
			if ex.Version > maxVersion {
				maxVersion = ex.Version
			}
		}
	}
	r.Version = maxVersion + 1
	m.ranges = append(m.ranges, r)
	return nil
}

func (m *mockRepo) GetVigenteRange(_ context.Context, patientID, parameterID uuid.UUID, at time.Time) (*PatientRange, error) {
	var best *PatientRange
	for _, r := range m.ranges {
		if r.PatientID != patientID || r.ParameterID != parameterID {
			continue
		}
		if !r.CoversAt(at) {
			continue
		}
		if best == nil || r.Version > best.Version {
			best = r
		}
	}
	return best, nil
}

func (m *mockRepo) ListRanges(_ context.Context, patientID uuid.UUID) ([]*PatientRange, error) {
	var out []*PatientRange
	for _, r := range m.ranges {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockNotifier struct {
	calls []notifierCall
	err   error
}

type notifierCall struct {
	patientID uuid.UUID
	severity  Severity
	title     string
	message   string
}

func (n *mockNotifier) AlertRaised(_ context.Context, patientID uuid.UUID, severity Severity, title, message string) error {
	n.calls = append(n.calls, notifierCall{patientID, severity, title, message})
	return n.err
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, NoTx, zerolog.Nop())
}

func seedRange(t *testing.T, svc *Service, patientID uuid.UUID, code string, min, max float64) uuid.UUID {
	t.Helper()
	paramID := uuid.New()
	pr := &PatientRange{
		PatientID:     patientID,
		ParameterID:   paramID,
		ParameterCode: code,
		MinNormal:     min,
		MaxNormal:     max,
		VigenciaDesde: time.Now().Add(-time.Hour),
		DefinedBy:     "dr-house",
	}
	if err := svc.CreateRange(context.Background(), pr); err != nil {
		t.Fatalf("seed range: %v", err)
	}
	return paramID
}

func TestCreateMeasurement_NormalValues(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	notifier := &mockNotifier{}
	svc.SetNotifier(notifier)

	patientID := uuid.New()
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)

	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(80)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if m.HasAlert {
		t.Error("in-range value must not raise an alert")
	}
	if m.MaxSeverity != SeverityNone {
		t.Errorf("max severity = %q, want none", m.MaxSeverity)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier called %d times for a normal measurement", len(notifier.calls))
	}
	if m.Details[0].AlertType != AlertTypeOK {
		t.Errorf("detail alert type = %q, want OK", m.Details[0].AlertType)
	}
}

func TestCreateMeasurement_AggregatesWorstSeverity(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	notifier := &mockNotifier{}
	svc.SetNotifier(notifier)

	patientID := uuid.New()
	fcID := seedRange(t, svc, patientID, "FC", 60, 100)
	satID := seedRange(t, svc, patientID, "SAT", 90, 100)

	// FC 105 is leve; SAT 80 deviates 10 on a span of 10, critica.
	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details: []DetailInput{
			{ParameterID: fcID, Value: f(105)},
			{ParameterID: satID, Value: f(80)},
		},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if !m.HasAlert {
		t.Fatal("out-of-range values must raise an alert")
	}
	if m.MaxSeverity != SeverityCritica {
		t.Errorf("max severity = %q, want critica", m.MaxSeverity)
	}
	if m.AlertState != StateNew {
		t.Errorf("alert state = %q, want new", m.AlertState)
	}
	if m.AlertSummary == nil || *m.AlertSummary != "FC_FUERA_RANGO, SAT_FUERA_RANGO" {
		t.Errorf("alert summary = %v", m.AlertSummary)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(notifier.calls))
	}
	if notifier.calls[0].severity != SeverityCritica {
		t.Errorf("notifier severity = %q, want critica", notifier.calls[0].severity)
	}
}

func TestCreateMeasurement_TextOnlyAndMissingRange(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	patientID := uuid.New()
	text := "sin novedad"
	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details: []DetailInput{
			{ParameterID: uuid.New(), TextValue: &text},
			{ParameterID: uuid.New(), Value: f(7.2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if m.HasAlert {
		t.Error("SIN_VALOR and SIN_RANGO details must not raise alerts")
	}
	if m.Details[0].AlertType != AlertTypeNoValue {
		t.Errorf("text-only detail alert type = %q, want SIN_VALOR", m.Details[0].AlertType)
	}
	if m.Details[1].AlertType != AlertTypeNoRange {
		t.Errorf("unconfigured detail alert type = %q, want SIN_RANGO", m.Details[1].AlertType)
	}
}

func TestCreateMeasurement_NotifierFailureDoesNotFailIntake(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	svc.SetNotifier(&mockNotifier{err: errors.New("broker down")})

	patientID := uuid.New()
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)

	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(200)}},
	})
	if err != nil {
		t.Fatalf("intake must succeed despite notifier failure, got %v", err)
	}
	if !m.HasAlert {
		t.Error("alert must still be persisted")
	}
}

func TestCreateMeasurement_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())

	if _, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{}); err == nil {
		t.Error("missing patient_id must fail")
	}
	if _, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{PatientID: uuid.New()}); err == nil {
		t.Error("empty details must fail")
	}
}

func TestClaim_Lifecycle(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)

	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(130)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}

	claimed, err := svc.Claim(context.Background(), m.ID, "nurse-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.AlertState != StateInProgress {
		t.Errorf("state = %q, want in_progress", claimed.AlertState)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != "nurse-1" {
		t.Errorf("claimed_by = %v, want nurse-1", claimed.ClaimedBy)
	}

	// Same staff member re-claims: idempotent success.
	again, err := svc.Claim(context.Background(), m.ID, "nurse-1")
	if err != nil {
		t.Fatalf("idempotent re-claim failed: %v", err)
	}
	if again.AlertState != StateInProgress {
		t.Errorf("state after re-claim = %q", again.AlertState)
	}

	// Different staff member: conflict.
	if _, err := svc.Claim(context.Background(), m.ID, "nurse-2"); !errors.Is(err, ErrClaimConflict) {
		t.Errorf("claim by second staff = %v, want ErrClaimConflict", err)
	}
}

func TestClaim_Refusals(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := uuid.New()

	// Unknown measurement.
	if _, err := svc.Claim(context.Background(), uuid.New(), "nurse-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("claim on unknown id = %v, want ErrNotFound", err)
	}

	// Measurement without an alert.
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)
	normal, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(80)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if _, err := svc.Claim(context.Background(), normal.ID, "nurse-1"); !errors.Is(err, ErrNoAlert) {
		t.Errorf("claim without alert = %v, want ErrNoAlert", err)
	}

	// Terminal alert.
	alerting, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(130)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if _, err := svc.SetTerminal(context.Background(), alerting.ID, StateResolved); err != nil {
		t.Fatalf("SetTerminal: %v", err)
	}
	if _, err := svc.Claim(context.Background(), alerting.ID, "nurse-1"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("claim on resolved alert = %v, want ErrAlreadyTerminal", err)
	}

	// Empty staff id.
	if _, err := svc.Claim(context.Background(), alerting.ID, "  "); err == nil {
		t.Error("blank staff id must fail")
	}
}

func TestSetTerminal_DirectResolveWithoutClaim(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)

	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(130)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}

	resolved, err := svc.SetTerminal(context.Background(), m.ID, StateResolved)
	if err != nil {
		t.Fatalf("resolve from new without claim: %v", err)
	}
	if resolved.AlertState != StateResolved || resolved.ResolvedAt == nil {
		t.Errorf("state = %q, resolved_at = %v", resolved.AlertState, resolved.ResolvedAt)
	}
}

func TestSetTerminal_OverwritesPreviousTerminal(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)

	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(130)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}

	if _, err := svc.SetTerminal(context.Background(), m.ID, StateResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ignored, err := svc.SetTerminal(context.Background(), m.ID, StateIgnored)
	if err != nil {
		t.Fatalf("ignore after resolve: %v", err)
	}
	if ignored.AlertState != StateIgnored {
		t.Errorf("state = %q, want ignored", ignored.AlertState)
	}
	if ignored.IgnoredAt == nil {
		t.Error("ignored_at must be set")
	}
	if ignored.ResolvedAt != nil {
		t.Error("resolved_at must be cleared on overwrite")
	}
}

func TestSetTerminal_Errors(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	paramID := seedRange(t, svc, patientID, "FC", 60, 100)

	if _, err := svc.SetTerminal(context.Background(), uuid.New(), StateResolved); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id = %v, want ErrNotFound", err)
	}

	normal, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: paramID, Value: f(80)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if _, err := svc.SetTerminal(context.Background(), normal.ID, StateResolved); !errors.Is(err, ErrNoAlert) {
		t.Errorf("terminal without alert = %v, want ErrNoAlert", err)
	}
	if _, err := svc.SetTerminal(context.Background(), normal.ID, StateInProgress); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("in_progress target = %v, want ErrInvalidTarget", err)
	}
	if _, err := svc.SetTerminal(context.Background(), normal.ID, AlertState("archived")); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("unknown target = %v, want ErrInvalidTarget", err)
	}
}

func TestEvaluateDetail_ReAggregates(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	notifier := &mockNotifier{}
	svc.SetNotifier(notifier)
	patientID := uuid.New()
	fcID := seedRange(t, svc, patientID, "FC", 60, 100)
	satID := seedRange(t, svc, patientID, "SAT", 90, 100)

	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: fcID, Value: f(80)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Fatal("no alert expected yet")
	}

	d, err := svc.EvaluateDetail(context.Background(), m.ID, &DetailInput{ParameterID: satID, Value: f(70)})
	if err != nil {
		t.Fatalf("EvaluateDetail: %v", err)
	}
	if !d.OutOfRange || d.Severity != SeverityCritica {
		t.Errorf("detail = %+v, want critica out of range", d)
	}

	updated, err := svc.GetMeasurement(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMeasurement: %v", err)
	}
	if !updated.HasAlert || updated.MaxSeverity != SeverityCritica {
		t.Errorf("aggregate = has_alert %v severity %q", updated.HasAlert, updated.MaxSeverity)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("notifier called %d times, want 1", len(notifier.calls))
	}
}

func TestEvaluateDetail_EscalationReNotifies(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	notifier := &mockNotifier{}
	svc.SetNotifier(notifier)
	patientID := uuid.New()
	fcID := seedRange(t, svc, patientID, "FC", 60, 100)
	pasID := seedRange(t, svc, patientID, "PAS", 90, 140)
	satID := seedRange(t, svc, patientID, "SAT", 90, 100)

	// 112 against [60,100]: deviation 12 over span 40, moderada.
	m, err := svc.CreateMeasurement(context.Background(), &MeasurementInput{
		PatientID: patientID,
		Details:   []DetailInput{{ParameterID: fcID, Value: f(112)}},
	})
	if err != nil {
		t.Fatalf("CreateMeasurement: %v", err)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].severity != SeverityModerada {
		t.Fatalf("intake fan-out = %+v, want one moderada call", notifier.calls)
	}

	// Another moderada does not re-notify.
	if _, err := svc.EvaluateDetail(context.Background(), m.ID, &DetailInput{ParameterID: pasID, Value: f(155)}); err != nil {
		t.Fatalf("EvaluateDetail: %v", err)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("same-severity detail re-notified, calls = %d", len(notifier.calls))
	}

	// A critica detail escalates the aggregate and fans out again.
	if _, err := svc.EvaluateDetail(context.Background(), m.ID, &DetailInput{ParameterID: satID, Value: f(70)}); err != nil {
		t.Fatalf("EvaluateDetail: %v", err)
	}
	if len(notifier.calls) != 2 {
		t.Fatalf("escalation must re-notify, calls = %d", len(notifier.calls))
	}
	if notifier.calls[1].severity != SeverityCritica {
		t.Errorf("escalation severity = %q, want critica", notifier.calls[1].severity)
	}
}

func TestCreateRange_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())
	patientID := uuid.New()

	err := svc.CreateRange(context.Background(), &PatientRange{
		PatientID:     patientID,
		ParameterID:   uuid.New(),
		MinNormal:     100,
		MaxNormal:     100,
		VigenciaDesde: time.Now(),
	})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("zero-width band = %v, want ErrConfig", err)
	}

	err = svc.CreateRange(context.Background(), &PatientRange{
		PatientID:     patientID,
		ParameterID:   uuid.New(),
		MinNormal:     120,
		MaxNormal:     80,
		VigenciaDesde: time.Now(),
	})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("inverted band = %v, want ErrConfig", err)
	}
}

func TestCreateRange_VersionsAndSupersedes(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	paramID := uuid.New()

	mk := func(min, max float64) *PatientRange {
		return &PatientRange{
			PatientID:     patientID,
			ParameterID:   paramID,
			ParameterCode: "FC",
			MinNormal:     min,
			MaxNormal:     max,
			VigenciaDesde: time.Now().Add(-time.Minute),
			DefinedBy:     "dr-house",
		}
	}

	first := mk(60, 100)
	if err := svc.CreateRange(context.Background(), first); err != nil {
		t.Fatalf("first range: %v", err)
	}
	second := mk(50, 110)
	if err := svc.CreateRange(context.Background(), second); err != nil {
		t.Fatalf("second range: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("second version = %d, want 2", second.Version)
	}

	vigente, err := svc.GetVigenteRange(context.Background(), patientID, paramID)
	if err != nil {
		t.Fatalf("GetVigenteRange: %v", err)
	}
	if vigente == nil || vigente.ID != second.ID {
		t.Errorf("vigente range is not the latest version")
	}
}

func TestListAlertsForCaregiver(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	p1 := uuid.New()
	p2 := uuid.New()
	fc1 := seedRange(t, svc, p1, "FC", 60, 100)
	fc2 := seedRange(t, svc, p2, "FC", 60, 100)

	for _, in := range []*MeasurementInput{
		{PatientID: p1, Details: []DetailInput{{ParameterID: fc1, Value: f(130)}}},
		{PatientID: p2, Details: []DetailInput{{ParameterID: fc2, Value: f(130)}}},
	} {
		if _, err := svc.CreateMeasurement(context.Background(), in); err != nil {
			t.Fatalf("CreateMeasurement: %v", err)
		}
	}

	caregiverID := uuid.New()
	svc.SetCaregiverDirectory(stubDirectory{caregiverID: {p1}})

	alerts, err := svc.ListAlertsForCaregiver(context.Background(), caregiverID, true)
	if err != nil {
		t.Fatalf("ListAlertsForCaregiver: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].PatientID != p1 {
		t.Errorf("alert belongs to %s, want %s", alerts[0].PatientID, p1)
	}
}

type stubDirectory map[uuid.UUID][]uuid.UUID

func (d stubDirectory) PatientIDsForCaregiver(_ context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	return d[caregiverID], nil
}
