package directory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Patients
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByRUT(ctx context.Context, rut string) (*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error
	ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	// Caregivers
	CreateCaregiver(ctx context.Context, cg *Caregiver) error
	GetCaregiver(ctx context.Context, id uuid.UUID) (*Caregiver, error)
	ListCaregivers(ctx context.Context, limit, offset int) ([]*Caregiver, int, error)

	// Links
	CreateLink(ctx context.Context, l *CaregiverLink) error
	DeactivateLink(ctx context.Context, id uuid.UUID) error
	ActiveLinksForPatient(ctx context.Context, patientID uuid.UUID) ([]*CaregiverLink, error)
	ListPatientsForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Patient, error)

	// Catalog
	CreateUnit(ctx context.Context, u *Unit) error
	ListUnits(ctx context.Context) ([]*Unit, error)
	CreateParameter(ctx context.Context, p *Parameter) error
	GetParameter(ctx context.Context, id uuid.UUID) (*Parameter, error)
	GetParameterByCode(ctx context.Context, code string) (*Parameter, error)
	ListParameters(ctx context.Context) ([]*Parameter, error)
}
