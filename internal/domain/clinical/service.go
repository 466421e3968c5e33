package clinical

import (
	"context"
	"strings"
	"time"

	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/ids"
)

type Service struct {
	diagnoses     DiagnosisRepository
	prescriptions PrescriptionRepository
	tx            db.TxRunner
	visits        VisitChecker
	medications   MedicationChecker
	now           func() time.Time
}

func NewService(diag DiagnosisRepository, rx PrescriptionRepository, tx db.TxRunner, visits VisitChecker, medications MedicationChecker) *Service {
	if tx == nil {
		tx = db.NopTxRunner{}
	}
	return &Service{diagnoses: diag, prescriptions: rx, tx: tx, visits: visits, medications: medications, now: time.Now}
}

func (s *Service) requireVisit(ctx context.Context, entity, visitID string) error {
	if strings.TrimSpace(visitID) == "" {
		return apperrors.Validation(entity, "visit_id", "visit_id is required")
	}
	if s.visits == nil {
		return nil
	}
	ok, err := s.visits.VisitExists(ctx, visitID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundRef("visit", "visit_id", visitID)
	}
	return nil
}

func rejectVisitChange(entity, current string, patched *string) error {
	if patched != nil && strings.TrimSpace(*patched) != current {
		return apperrors.Validation(entity, "visit_id", "visit_id cannot be changed")
	}
	return nil
}

// DeleteByVisit removes every diagnosis and prescription of a visit. The
// visit ledger calls it inside its delete transaction.
func (s *Service) DeleteByVisit(ctx context.Context, visitID string) error {
	if _, err := s.diagnoses.DeleteByVisit(ctx, visitID); err != nil {
		return err
	}
	_, err := s.prescriptions.DeleteByVisit(ctx, visitID)
	return err
}

// -- Diagnosis --

func validateDiagnosis(d *Diagnosis) error {
	d.DiagnosisCode = strings.TrimSpace(d.DiagnosisCode)
	if d.DiagnosisCode == "" {
		return apperrors.Validation("diagnosis", "diagnosis_code", "diagnosis_code is required")
	}
	d.Description = trimOptional(d.Description)
	d.Notes = trimOptional(d.Notes)
	return nil
}

func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	if err := validateDiagnosis(d); err != nil {
		return err
	}
	d.VisitID = strings.TrimSpace(d.VisitID)
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireVisit(ctx, "diagnosis", d.VisitID); err != nil {
			return err
		}
		d.ID = ids.OrNew(d.ID, ids.PrefixDiagnosis)
		return s.diagnoses.Create(ctx, d)
	})
}

func (s *Service) GetDiagnosis(ctx context.Context, id string) (*Diagnosis, error) {
	return s.diagnoses.GetByID(ctx, id)
}

func (s *Service) ListDiagnoses(ctx context.Context, visitID string) ([]*Diagnosis, error) {
	if err := s.requireVisit(ctx, "diagnosis", visitID); err != nil {
		return nil, err
	}
	return s.diagnoses.ListByVisit(ctx, visitID)
}

func (s *Service) UpdateDiagnosis(ctx context.Context, id string, patch DiagnosisPatch) (*Diagnosis, error) {
	var out *Diagnosis
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.diagnoses.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := rejectVisitChange("diagnosis", d.VisitID, patch.VisitID); err != nil {
			return err
		}
		if patch.DiagnosisCode != nil {
			d.DiagnosisCode = *patch.DiagnosisCode
		}
		if patch.Description != nil {
			d.Description = patch.Description
		}
		if patch.Notes != nil {
			d.Notes = patch.Notes
		}
		if err := validateDiagnosis(d); err != nil {
			return err
		}
		if err := s.diagnoses.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func (s *Service) DeleteDiagnosis(ctx context.Context, id string) error {
	return s.diagnoses.Delete(ctx, id)
}

// -- Prescription --

func validatePrescription(p *Prescription) error {
	if p.DurationDays <= 0 {
		return apperrors.Validation("prescription", "duration_days", "duration_days must be positive")
	}
	if p.RefillsAllowed < 0 {
		return apperrors.Validation("prescription", "refills_allowed", "refills_allowed cannot be negative")
	}
	if p.MedicationID <= 0 {
		return apperrors.Validation("prescription", "medication_id", "medication_id is required")
	}
	p.Dosage = trimOptional(p.Dosage)
	p.Frequency = trimOptional(p.Frequency)
	p.Instructions = trimOptional(p.Instructions)
	return nil
}

func (s *Service) requireMedication(ctx context.Context, id int) error {
	if s.medications == nil {
		return nil
	}
	ok, err := s.medications.MedicationExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundRef("medication", "medication_id", id)
	}
	return nil
}

// CreatePrescription attaches a prescription to an existing visit. The
// prescribed date defaults to now.
func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := validatePrescription(p); err != nil {
		return err
	}
	p.VisitID = strings.TrimSpace(p.VisitID)
	if p.PrescribedDate.IsZero() {
		p.PrescribedDate = s.now().UTC()
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireVisit(ctx, "prescription", p.VisitID); err != nil {
			return err
		}
		if err := s.requireMedication(ctx, p.MedicationID); err != nil {
			return err
		}
		p.ID = ids.OrNew(p.ID, ids.PrefixPrescription)
		return s.prescriptions.Create(ctx, p)
	})
}

func (s *Service) GetPrescription(ctx context.Context, id string) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, visitID string) ([]*Prescription, error) {
	if err := s.requireVisit(ctx, "prescription", visitID); err != nil {
		return nil, err
	}
	return s.prescriptions.ListByVisit(ctx, visitID)
}

func (s *Service) UpdatePrescription(ctx context.Context, id string, patch PrescriptionPatch) (*Prescription, error) {
	var out *Prescription
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := rejectVisitChange("prescription", p.VisitID, patch.VisitID); err != nil {
			return err
		}
		medChanged := patch.MedicationID != nil && *patch.MedicationID != p.MedicationID
		if patch.MedicationID != nil {
			p.MedicationID = *patch.MedicationID
		}
		if patch.Dosage != nil {
			p.Dosage = patch.Dosage
		}
		if patch.Frequency != nil {
			p.Frequency = patch.Frequency
		}
		if patch.DurationDays != nil {
			p.DurationDays = *patch.DurationDays
		}
		if patch.Instructions != nil {
			p.Instructions = patch.Instructions
		}
		if patch.RefillsAllowed != nil {
			p.RefillsAllowed = *patch.RefillsAllowed
		}
		if err := validatePrescription(p); err != nil {
			return err
		}
		if medChanged {
			if err := s.requireMedication(ctx, p.MedicationID); err != nil {
				return err
			}
		}
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) DeletePrescription(ctx context.Context, id string) error {
	return s.prescriptions.Delete(ctx, id)
}

// CountByMedication lets the reference store guard medication changes.
func (s *Service) CountByMedication(ctx context.Context, medicationID int) (int, error) {
	return s.prescriptions.CountByMedication(ctx, medicationID)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
