package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuidasalud/cuidasalud/internal/platform/db"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

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

func wrapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// -- Patients --

const patientCols = `id, rut, first_name, last_name, email, phone, birth_date, active, created_at, updated_at`

func (r *repoPG) CreatePatient(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, rut, first_name, last_name, email, phone, birth_date, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.RUT, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Active,
	)
	return err
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetPatientByRUT(ctx context.Context, rut string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE rut = $1`, rut))
}

func (r *repoPG) UpdatePatient(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, email=$4, phone=$5, birth_date=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Active,
	)
	return err
}

func (r *repoPG) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatientRows(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.RUT, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.BirthDate,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func scanPatientRows(rows pgx.Rows) (*Patient, error) {
	var p Patient
	err := rows.Scan(&p.ID, &p.RUT, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.BirthDate,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Caregivers --

const caregiverCols = `id, rut, first_name, last_name, email, phone, active, created_at`

func (r *repoPG) CreateCaregiver(ctx context.Context, cg *Caregiver) error {
	cg.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO caregiver (id, rut, first_name, last_name, email, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		cg.ID, cg.RUT, cg.FirstName, cg.LastName, cg.Email, cg.Phone, cg.Active,
	)
	return err
}

func (r *repoPG) GetCaregiver(ctx context.Context, id uuid.UUID) (*Caregiver, error) {
	var cg Caregiver
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+caregiverCols+` FROM caregiver WHERE id = $1`, id).
		Scan(&cg.ID, &cg.RUT, &cg.FirstName, &cg.LastName, &cg.Email, &cg.Phone, &cg.Active, &cg.CreatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &cg, nil
}

func (r *repoPG) ListCaregivers(ctx context.Context, limit, offset int) ([]*Caregiver, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM caregiver`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+caregiverCols+` FROM caregiver ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var caregivers []*Caregiver
	for rows.Next() {
		var cg Caregiver
		if err := rows.Scan(&cg.ID, &cg.RUT, &cg.FirstName, &cg.LastName, &cg.Email, &cg.Phone,
			&cg.Active, &cg.CreatedAt); err != nil {
			return nil, 0, err
		}
		caregivers = append(caregivers, &cg)
	}
	return caregivers, total, nil
}

// -- Links --

func (r *repoPG) CreateLink(ctx context.Context, l *CaregiverLink) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_caregiver_link (id, patient_id, caregiver_id, relationship, active)
		VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.PatientID, l.CaregiverID, l.Relationship, l.Active,
	)
	return err
}

func (r *repoPG) DeactivateLink(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient_caregiver_link SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ActiveLinksForPatient(ctx context.Context, patientID uuid.UUID) ([]*CaregiverLink, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, caregiver_id, relationship, active, created_at
		FROM patient_caregiver_link
		WHERE patient_id = $1 AND active ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*CaregiverLink
	for rows.Next() {
		var l CaregiverLink
		if err := rows.Scan(&l.ID, &l.PatientID, &l.CaregiverID, &l.Relationship, &l.Active, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, nil
}

func (r *repoPG) ListPatientsForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.rut, p.first_name, p.last_name, p.email, p.phone, p.birth_date,
		       p.active, p.created_at, p.updated_at
		FROM patient p
		JOIN patient_caregiver_link l ON l.patient_id = p.id
		WHERE l.caregiver_id = $1 AND l.active
		ORDER BY p.last_name, p.first_name`, caregiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatientRows(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, nil
}

// -- Catalog --

func (r *repoPG) CreateUnit(ctx context.Context, u *Unit) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO unit (id, code, name) VALUES ($1,$2,$3)`, u.ID, u.Code, u.Name)
	return err
}

func (r *repoPG) ListUnits(ctx context.Context) ([]*Unit, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, code, name FROM unit ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name); err != nil {
			return nil, err
		}
		units = append(units, &u)
	}
	return units, nil
}

func (r *repoPG) CreateParameter(ctx context.Context, p *Parameter) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO parameter (id, code, name, unit_id) VALUES ($1,$2,$3,$4)`,
		p.ID, p.Code, p.Name, p.UnitID)
	return err
}

func (r *repoPG) GetParameter(ctx context.Context, id uuid.UUID) (*Parameter, error) {
	var p Parameter
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, code, name, unit_id, created_at FROM parameter WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.UnitID, &p.CreatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (r *repoPG) GetParameterByCode(ctx context.Context, code string) (*Parameter, error) {
	var p Parameter
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, code, name, unit_id, created_at FROM parameter WHERE code = $1`, code).
		Scan(&p.ID, &p.Code, &p.Name, &p.UnitID, &p.CreatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (r *repoPG) ListParameters(ctx context.Context) ([]*Parameter, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, code, name, unit_id, created_at FROM parameter ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []*Parameter
	for rows.Next() {
		var p Parameter
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.UnitID, &p.CreatedAt); err != nil {
			return nil, err
		}
		params = append(params, &p)
	}
	return params, nil
}
