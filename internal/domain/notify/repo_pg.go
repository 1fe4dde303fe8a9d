package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuidasalud/cuidasalud/internal/platform/db"
)

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

const notificationCols = `id, patient_id, caregiver_id, staff_id, type, severity, title, message,
	delivered_app, delivered_email, read_at, created_at`

func (r *repoPG) CreateNotification(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO notification (
			id, patient_id, caregiver_id, staff_id, type, severity, title, message,
			delivered_app, delivered_email, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		n.ID, n.PatientID, n.CaregiverID, n.StaffID, n.Type, n.Severity, n.Title, n.Message,
		n.DeliveredApp, n.DeliveredEmail, n.CreatedAt,
	)
	return err
}

func (r *repoPG) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return scanNotification(r.conn(ctx).QueryRow(ctx,
		`SELECT `+notificationCols+` FROM notification WHERE id = $1`, id))
}

func (r *repoPG) SetEmailDelivered(ctx context.Context, id uuid.UUID, delivered bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE notification SET delivered_email = $2 WHERE id = $1`, id, delivered)
	return err
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notification SET read_at = $2 WHERE id = $1 AND read_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already read. Re-check so already-read stays
		// idempotent.
		if _, err := r.GetNotification(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE patient_id = $1 AND caregiver_id IS NULL`,
		patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notificationCols+` FROM notification
		 WHERE patient_id = $1 AND caregiver_id IS NULL
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectNotifications(rows)
	return out, total, err
}

func (r *repoPG) ListForCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE caregiver_id = $1`,
		caregiverID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notificationCols+` FROM notification
		 WHERE caregiver_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		caregiverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectNotifications(rows)
	return out, total, err
}

const preferenceCols = `caregiver_id, recibir_criticas, recibir_moderadas, recibir_leves,
	canal_app, canal_email, quiet_start, quiet_end, updated_at`

func (r *repoPG) GetPreference(ctx context.Context, caregiverID uuid.UUID) (*CaregiverPreference, error) {
	p := &CaregiverPreference{}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+preferenceCols+` FROM caregiver_preference WHERE caregiver_id = $1`,
		caregiverID).Scan(
		&p.CaregiverID, &p.RecibirCriticas, &p.RecibirModeradas, &p.RecibirLeves,
		&p.CanalApp, &p.CanalEmail, &p.QuietStart, &p.QuietEnd, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) UpsertPreference(ctx context.Context, p *CaregiverPreference) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO caregiver_preference (
			caregiver_id, recibir_criticas, recibir_moderadas, recibir_leves,
			canal_app, canal_email, quiet_start, quiet_end, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (caregiver_id) DO UPDATE SET
			recibir_criticas = EXCLUDED.recibir_criticas,
			recibir_moderadas = EXCLUDED.recibir_moderadas,
			recibir_leves = EXCLUDED.recibir_leves,
			canal_app = EXCLUDED.canal_app,
			canal_email = EXCLUDED.canal_email,
			quiet_start = EXCLUDED.quiet_start,
			quiet_end = EXCLUDED.quiet_end,
			updated_at = EXCLUDED.updated_at`,
		p.CaregiverID, p.RecibirCriticas, p.RecibirModeradas, p.RecibirLeves,
		p.CanalApp, p.CanalEmail, p.QuietStart, p.QuietEnd, p.UpdatedAt,
	)
	return err
}

func scanNotification(row pgx.Row) (*Notification, error) {
	n := &Notification{}
	err := row.Scan(
		&n.ID, &n.PatientID, &n.CaregiverID, &n.StaffID, &n.Type, &n.Severity, &n.Title, &n.Message,
		&n.DeliveredApp, &n.DeliveredEmail, &n.ReadAt, &n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func collectNotifications(rows pgx.Rows) ([]*Notification, error) {
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID, &n.PatientID, &n.CaregiverID, &n.StaffID, &n.Type, &n.Severity, &n.Title, &n.Message,
			&n.DeliveredApp, &n.DeliveredEmail, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
