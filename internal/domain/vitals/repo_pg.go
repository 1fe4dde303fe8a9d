package vitals

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuidasalud/cuidasalud/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const measurementCols = `id, patient_id, registered_at, evaluated_at, origin, recorded_by, observation,
	has_alert, max_severity, alert_summary, alert_state, claimed_by, claimed_at, resolved_at, ignored_at,
	created_at`

func (r *repoPG) CreateMeasurement(ctx context.Context, m *Measurement) error {
	m.ID = uuid.New()
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now().UTC()
	}
	if m.MaxSeverity == "" {
		m.MaxSeverity = SeverityNone
	}
	if m.AlertState == "" {
		m.AlertState = StateNew
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO measurement (
			id, patient_id, registered_at, evaluated_at, origin, recorded_by, observation,
			has_alert, max_severity, alert_summary, alert_state
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.PatientID, m.RegisteredAt, m.EvaluatedAt, m.Origin, m.RecordedBy, m.Observation,
		m.HasAlert, m.MaxSeverity, m.AlertSummary, m.AlertState,
	)
	return err
}

func (r *repoPG) GetMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	return scanMeasurement(r.conn(ctx).QueryRow(ctx,
		`SELECT `+measurementCols+` FROM measurement WHERE id = $1`, id))
}

func (r *repoPG) ListMeasurements(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	var total int
	var rows pgx.Rows
	var err error

	if patientID != nil {
		if err = r.conn(ctx).QueryRow(ctx,
			`SELECT COUNT(*) FROM measurement WHERE patient_id = $1`, *patientID).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+measurementCols+` FROM measurement WHERE patient_id = $1
			 ORDER BY registered_at DESC LIMIT $2 OFFSET $3`, *patientID, limit, offset)
	} else {
		if err = r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM measurement`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT `+measurementCols+` FROM measurement ORDER BY registered_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	ms, err := collectMeasurements(rows)
	if err != nil {
		return nil, 0, err
	}
	return ms, total, nil
}

func (r *repoPG) UpdateAlertAggregate(ctx context.Context, id uuid.UUID, hasAlert bool, maxSeverity Severity, summary *string, evaluatedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE measurement SET has_alert=$2, max_severity=$3, alert_summary=$4, evaluated_at=$5
		WHERE id = $1`,
		id, hasAlert, maxSeverity, summary, evaluatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Details --

const detailCols = `id, measurement_id, parameter_id, unit_id, value, text_value,
	out_of_range, severity, threshold_min, threshold_max, alert_type, created_at`

func (r *repoPG) CreateDetail(ctx context.Context, d *MeasurementDetail) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO measurement_detail (
			id, measurement_id, parameter_id, unit_id, value, text_value,
			out_of_range, severity, threshold_min, threshold_max, alert_type
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.MeasurementID, d.ParameterID, d.UnitID, d.Value, d.TextValue,
		d.OutOfRange, d.Severity, d.ThresholdMin, d.ThresholdMax, d.AlertType,
	)
	return err
}

func (r *repoPG) ListDetails(ctx context.Context, measurementID uuid.UUID) ([]*MeasurementDetail, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+detailCols+` FROM measurement_detail WHERE measurement_id = $1 ORDER BY created_at`,
		measurementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []*MeasurementDetail
	for rows.Next() {
		var d MeasurementDetail
		if err := rows.Scan(&d.ID, &d.MeasurementID, &d.ParameterID, &d.UnitID, &d.Value, &d.TextValue,
			&d.OutOfRange, &d.Severity, &d.ThresholdMin, &d.ThresholdMax, &d.AlertType, &d.CreatedAt); err != nil {
			return nil, err
		}
		details = append(details, &d)
	}
	return details, nil
}

// -- Alert state machine --

func (r *repoPG) ClaimMeasurement(ctx context.Context, id uuid.UUID, staffID string, at time.Time) (int64, error) {
	// Atomic compare-and-set: the guard conditions and the write happen in
	// one statement so two concurrent claimants cannot both succeed.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE measurement
		SET alert_state = 'in_progress', claimed_by = $2, claimed_at = $3
		WHERE id = $1
		  AND has_alert
		  AND alert_state NOT IN ('resolved', 'ignored')
		  AND (claimed_by IS NULL OR claimed_by = $2)`,
		id, staffID, at,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) SetTerminalState(ctx context.Context, id uuid.UUID, state AlertState, at time.Time) error {
	var sql string
	switch state {
	case StateResolved:
		sql = `UPDATE measurement SET alert_state='resolved', resolved_at=$2, ignored_at=NULL WHERE id = $1`
	case StateIgnored:
		sql = `UPDATE measurement SET alert_state='ignored', ignored_at=$2, resolved_at=NULL WHERE id = $1`
	default:
		return ErrInvalidTarget
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Alert read paths --

func (r *repoPG) ListAlerts(ctx context.Context, f AlertFilter, limit, offset int) ([]*Measurement, int, error) {
	where := `WHERE has_alert`
	args := []interface{}{}
	n := 0

	next := func() string {
		n++
		return "$" + strconv.Itoa(n)
	}

	if f.PatientID != nil {
		where += ` AND patient_id = ` + next()
		args = append(args, *f.PatientID)
	}
	if f.State != nil {
		where += ` AND alert_state = ` + next()
		args = append(args, *f.State)
	}
	if f.ClaimedBy != nil {
		where += ` AND claimed_by = ` + next()
		args = append(args, *f.ClaimedBy)
	}
	if f.ActiveOnly {
		where += ` AND alert_state IN ('new', 'in_progress')`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM measurement `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitArg, offsetArg := next(), next()
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+measurementCols+` FROM measurement `+where+`
		 ORDER BY CASE max_severity
			WHEN 'critica' THEN 3 WHEN 'moderada' THEN 2 WHEN 'leve' THEN 1 ELSE 0
		 END DESC, registered_at DESC LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	ms, err := collectMeasurements(rows)
	if err != nil {
		return nil, 0, err
	}
	return ms, total, nil
}

func (r *repoPG) ListAlertsByPatients(ctx context.Context, patientIDs []uuid.UUID, activeOnly bool) ([]*Measurement, error) {
	if len(patientIDs) == 0 {
		return nil, nil
	}
	sql := `SELECT ` + measurementCols + ` FROM measurement WHERE has_alert AND patient_id = ANY($1)`
	if activeOnly {
		sql += ` AND alert_state IN ('new', 'in_progress')`
	}
	sql += ` ORDER BY registered_at DESC`

	rows, err := r.conn(ctx).Query(ctx, sql, patientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMeasurements(rows)
}

// -- Ranges --

const rangeCols = `r.id, r.patient_id, r.parameter_id, p.code, r.min_normal, r.max_normal,
	r.min_critico, r.max_critico, r.vigencia_desde, r.vigencia_hasta, r.version, r.defined_by, r.created_at`

func (r *repoPG) CreateRange(ctx context.Context, pr *PatientRange) error {
	pr.ID = uuid.New()
	if pr.VigenciaDesde.IsZero() {
		pr.VigenciaDesde = time.Now().UTC()
	}

	// Close the previous vigente window before inserting the new version.
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_range SET vigencia_hasta = $3
		WHERE patient_id = $1 AND parameter_id = $2 AND vigencia_hasta IS NULL`,
		pr.PatientID, pr.ParameterID, pr.VigenciaDesde,
	)
	if err != nil {
		return err
	}

	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_range (
			id, patient_id, parameter_id, min_normal, max_normal, min_critico, max_critico,
			vigencia_desde, vigencia_hasta, version, defined_by
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM patient_range WHERE patient_id = $2 AND parameter_id = $3),
			$10
		) RETURNING version`,
		pr.ID, pr.PatientID, pr.ParameterID, pr.MinNormal, pr.MaxNormal, pr.MinCritico, pr.MaxCritico,
		pr.VigenciaDesde, pr.VigenciaHasta, pr.DefinedBy,
	).Scan(&pr.Version)
}

// GetVigenteRange returns the range version covering the given instant, or
// nil when no version applies.
func (r *repoPG) GetVigenteRange(ctx context.Context, patientID, parameterID uuid.UUID, at time.Time) (*PatientRange, error) {
	pr, err := scanRange(r.conn(ctx).QueryRow(ctx, `
		SELECT `+rangeCols+`
		FROM patient_range r
		JOIN parameter p ON p.id = r.parameter_id
		WHERE r.patient_id = $1 AND r.parameter_id = $2
		  AND r.vigencia_desde <= $3
		  AND (r.vigencia_hasta IS NULL OR r.vigencia_hasta > $3)
		ORDER BY r.version DESC
		LIMIT 1`,
		patientID, parameterID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return pr, nil
}

func (r *repoPG) ListRanges(ctx context.Context, patientID uuid.UUID) ([]*PatientRange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rangeCols+`
		FROM patient_range r
		JOIN parameter p ON p.id = r.parameter_id
		WHERE r.patient_id = $1
		ORDER BY p.code, r.version DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []*PatientRange
	for rows.Next() {
		var pr PatientRange
		if err := rows.Scan(&pr.ID, &pr.PatientID, &pr.ParameterID, &pr.ParameterCode,
			&pr.MinNormal, &pr.MaxNormal, &pr.MinCritico, &pr.MaxCritico,
			&pr.VigenciaDesde, &pr.VigenciaHasta, &pr.Version, &pr.DefinedBy, &pr.CreatedAt); err != nil {
			return nil, err
		}
		ranges = append(ranges, &pr)
	}
	return ranges, nil
}

// -- scan helpers --

func scanMeasurement(row pgx.Row) (*Measurement, error) {
	var m Measurement
	err := row.Scan(&m.ID, &m.PatientID, &m.RegisteredAt, &m.EvaluatedAt, &m.Origin, &m.RecordedBy,
		&m.Observation, &m.HasAlert, &m.MaxSeverity, &m.AlertSummary, &m.AlertState,
		&m.ClaimedBy, &m.ClaimedAt, &m.ResolvedAt, &m.IgnoredAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func collectMeasurements(rows pgx.Rows) ([]*Measurement, error) {
	var ms []*Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.ID, &m.PatientID, &m.RegisteredAt, &m.EvaluatedAt, &m.Origin, &m.RecordedBy,
			&m.Observation, &m.HasAlert, &m.MaxSeverity, &m.AlertSummary, &m.AlertState,
			&m.ClaimedBy, &m.ClaimedAt, &m.ResolvedAt, &m.IgnoredAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		ms = append(ms, &m)
	}
	return ms, nil
}

func scanRange(row pgx.Row) (*PatientRange, error) {
	var pr PatientRange
	err := row.Scan(&pr.ID, &pr.PatientID, &pr.ParameterID, &pr.ParameterCode,
		&pr.MinNormal, &pr.MaxNormal, &pr.MinCritico, &pr.MaxCritico,
		&pr.VigenciaDesde, &pr.VigenciaHasta, &pr.Version, &pr.DefinedBy, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

