package notify

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error)
	// SetEmailDelivered flips the email flag after the async leg reports
	// back. A failed send leaves the flag false, it is never an error.
	SetEmailDelivered(ctx context.Context, id uuid.UUID, delivered bool) error
	MarkRead(ctx context.Context, id uuid.UUID) error
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Notification, int, error)
	ListForCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Notification, int, error)

	// GetPreference returns ErrNotFound when the caregiver never saved one.
	GetPreference(ctx context.Context, caregiverID uuid.UUID) (*CaregiverPreference, error)
	UpsertPreference(ctx context.Context, p *CaregiverPreference) error
}
