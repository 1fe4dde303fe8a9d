package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuidasalud/cuidasalud/internal/domain/vitals"
	"github.com/cuidasalud/cuidasalud/internal/platform/auth"
	"github.com/cuidasalud/cuidasalud/internal/platform/mailer"
)

// Contact is the slice of a person the fan-out needs: identity, a display
// name, and an optional email address.
type Contact struct {
	ID       uuid.UUID
	FullName string
	Email    *string
}

// Directory resolves recipients for a patient's alert.
type Directory interface {
	PatientContact(ctx context.Context, patientID uuid.UUID) (*Contact, error)
	// ActiveCaregivers returns the caregivers actively linked to the
	// patient, in stable order.
	ActiveCaregivers(ctx context.Context, patientID uuid.UUID) ([]*Contact, error)
}

// EmailQueue is the async email leg. mailer.Dispatcher implements it.
type EmailQueue interface {
	Enqueue(job mailer.Job) bool
}

type Service struct {
	repo      Repository
	directory Directory
	emails    EmailQueue
	templates *mailer.TemplateEngine
	logger    zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, directory Directory, emails EmailQueue, templates *mailer.TemplateEngine, logger zerolog.Logger) *Service {
	if templates == nil {
		templates = mailer.NewTemplateEngine()
	}
	return &Service{
		repo:      repo,
		directory: directory,
		emails:    emails,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify fans an event out to the patient and their caregivers and returns
// the patient-scoped row. The patient's row is always written first. A
// caregiver whose preference rejects the severity, or who has no channel
// enabled, gets no row; otherwise one row is written and each enabled
// channel fires against it. Email failures only leave delivered_email
// false, they never fail the fan-out.
func (s *Service) Notify(ctx context.Context, patientID uuid.UUID, typ string, severity vitals.Severity, title, message string) (*Notification, error) {
	if typ == "" {
		typ = TypeAlerta
	}
	patient, err := s.directory.PatientContact(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	var staffID *string
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		staffID = &uid
	}

	pn := &Notification{
		PatientID:    patientID,
		StaffID:      staffID,
		Type:         typ,
		Severity:     severity,
		Title:        title,
		Message:      message,
		DeliveredApp: true,
	}
	if err := s.repo.CreateNotification(ctx, pn); err != nil {
		return nil, fmt.Errorf("create patient notification: %w", err)
	}
	if patient.Email != nil {
		s.sendEmail(ctx, pn.ID, *patient.Email, "alert-patient", map[string]string{
			"patient_name": patient.FullName,
			"severity":     string(severity),
			"summary":      message,
			"date":         s.now().Format("2006-01-02 15:04"),
		})
	}

	caregivers, err := s.directory.ActiveCaregivers(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve caregivers: %w", err)
	}

	for _, cg := range caregivers {
		prefs, err := s.PreferencesFor(ctx, cg.ID)
		if err != nil {
			return nil, fmt.Errorf("load preferences for caregiver %s: %w", cg.ID, err)
		}
		if !prefs.WantsSeverity(severity) {
			continue
		}
		// No enabled channel, nothing to record.
		if !prefs.CanalApp && !prefs.CanalEmail {
			continue
		}

		cgID := cg.ID
		n := &Notification{
			PatientID:    patientID,
			CaregiverID:  &cgID,
			StaffID:      staffID,
			Type:         typ,
			Severity:     severity,
			Title:        title,
			Message:      message,
			DeliveredApp: prefs.CanalApp,
		}
		if err := s.repo.CreateNotification(ctx, n); err != nil {
			return nil, fmt.Errorf("create caregiver notification: %w", err)
		}

		if prefs.CanalEmail && cg.Email != nil && !prefs.InQuietHours(s.now()) {
			s.sendEmail(ctx, n.ID, *cg.Email, "alert-caregiver", map[string]string{
				"patient_name": patient.FullName,
				"severity":     string(severity),
				"summary":      message,
				"date":         s.now().Format("2006-01-02 15:04"),
			})
		}
	}
	return pn, nil
}

// sendEmail queues the email leg. On success the worker callback flips the
// notification's delivered_email flag; on any failure the flag stays false.
func (s *Service) sendEmail(ctx context.Context, notificationID uuid.UUID, to, templateID string, data map[string]string) {
	if s.emails == nil {
		return
	}
	subject, body, err := s.templates.Render(templateID, data)
	if err != nil {
		s.logger.Error().Err(err).Str("template", templateID).Msg("email template render failed")
		return
	}

	queued := s.emails.Enqueue(mailer.Job{
		To:      to,
		Subject: subject,
		Body:    body,
		OnDone: func(sendErr error) {
			if sendErr != nil {
				return
			}
			if err := s.repo.SetEmailDelivered(context.Background(), notificationID, true); err != nil {
				s.logger.Error().Err(err).
					Str("notification_id", notificationID.String()).
					Msg("failed to record email delivery")
			}
		},
	})
	if !queued {
		s.logger.Warn().
			Str("notification_id", notificationID.String()).
			Msg("email leg dropped, queue unavailable")
	}
}

// PreferencesFor returns the caregiver's stored preference or the defaults
// when none was ever saved. Reads never create rows.
func (s *Service) PreferencesFor(ctx context.Context, caregiverID uuid.UUID) (*CaregiverPreference, error) {
	p, err := s.repo.GetPreference(ctx, caregiverID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, ErrNotFound) {
		return DefaultPreference(caregiverID), nil
	}
	return nil, err
}

// SavePreferences validates and upserts a caregiver's preference row.
func (s *Service) SavePreferences(ctx context.Context, p *CaregiverPreference) error {
	if p.CaregiverID == uuid.Nil {
		return fmt.Errorf("caregiver_id is required")
	}
	if (p.QuietStart == nil) != (p.QuietEnd == nil) {
		return fmt.Errorf("quiet_start and quiet_end must be set together")
	}
	if p.QuietStart != nil {
		if _, ok := parseClock(*p.QuietStart); !ok {
			return fmt.Errorf("quiet_start must be HH:MM")
		}
		if _, ok := parseClock(*p.QuietEnd); !ok {
			return fmt.Errorf("quiet_end must be HH:MM")
		}
	}
	return s.repo.UpsertPreference(ctx, p)
}

// MarkRead stamps the notification as read. Already-read notifications are
// left untouched.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetNotification(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListForPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListForCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListForCaregiver(ctx, caregiverID, limit, offset)
}
