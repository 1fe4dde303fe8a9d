package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.RUT) == "" {
		return fmt.Errorf("rut is required")
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	p.Active = true
	return s.repo.CreatePatient(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) GetPatientByRUT(ctx context.Context, rut string) (*Patient, error) {
	return s.repo.GetPatientByRUT(ctx, rut)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.repo.UpdatePatient(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListPatients(ctx, limit, offset)
}

func (s *Service) CreateCaregiver(ctx context.Context, cg *Caregiver) error {
	if strings.TrimSpace(cg.RUT) == "" {
		return fmt.Errorf("rut is required")
	}
	if strings.TrimSpace(cg.FirstName) == "" || strings.TrimSpace(cg.LastName) == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	cg.Active = true
	return s.repo.CreateCaregiver(ctx, cg)
}

func (s *Service) GetCaregiver(ctx context.Context, id uuid.UUID) (*Caregiver, error) {
	return s.repo.GetCaregiver(ctx, id)
}

func (s *Service) ListCaregivers(ctx context.Context, limit, offset int) ([]*Caregiver, int, error) {
	return s.repo.ListCaregivers(ctx, limit, offset)
}

// LinkCaregiver associates a caregiver with a patient. Both sides must exist.
func (s *Service) LinkCaregiver(ctx context.Context, l *CaregiverLink) error {
	if l.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if l.CaregiverID == uuid.Nil {
		return fmt.Errorf("caregiver_id is required")
	}
	if _, err := s.repo.GetPatient(ctx, l.PatientID); err != nil {
		return fmt.Errorf("patient not found: %w", err)
	}
	if _, err := s.repo.GetCaregiver(ctx, l.CaregiverID); err != nil {
		return fmt.Errorf("caregiver not found: %w", err)
	}
	l.Active = true
	return s.repo.CreateLink(ctx, l)
}

func (s *Service) UnlinkCaregiver(ctx context.Context, linkID uuid.UUID) error {
	return s.repo.DeactivateLink(ctx, linkID)
}

func (s *Service) ActiveLinksForPatient(ctx context.Context, patientID uuid.UUID) ([]*CaregiverLink, error) {
	return s.repo.ActiveLinksForPatient(ctx, patientID)
}

func (s *Service) ListPatientsForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Patient, error) {
	return s.repo.ListPatientsForCaregiver(ctx, caregiverID)
}

func (s *Service) CreateUnit(ctx context.Context, u *Unit) error {
	if strings.TrimSpace(u.Code) == "" {
		return fmt.Errorf("code is required")
	}
	return s.repo.CreateUnit(ctx, u)
}

func (s *Service) ListUnits(ctx context.Context) ([]*Unit, error) {
	return s.repo.ListUnits(ctx)
}

func (s *Service) CreateParameter(ctx context.Context, p *Parameter) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.CreateParameter(ctx, p)
}

func (s *Service) GetParameter(ctx context.Context, id uuid.UUID) (*Parameter, error) {
	return s.repo.GetParameter(ctx, id)
}

func (s *Service) GetParameterByCode(ctx context.Context, code string) (*Parameter, error) {
	return s.repo.GetParameterByCode(ctx, code)
}

func (s *Service) ListParameters(ctx context.Context) ([]*Parameter, error) {
	return s.repo.ListParameters(ctx)
}
