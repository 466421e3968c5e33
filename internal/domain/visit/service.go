package visit

import (
	"context"
	"strings"
	"time"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/internal/platform/websocket"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/dates"
	"github.com/orms/orms/pkg/ids"
)

type Service struct {
	repo         Repository
	tx           db.TxRunner
	participants ParticipantChecker
	clinical     ClinicalPurger
	bills        BillCounter
	events       websocket.EventPublisher
	now          func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, participants ParticipantChecker) *Service {
	if tx == nil {
		tx = db.NopTxRunner{}
	}
	return &Service{repo: repo, tx: tx, participants: participants, now: time.Now}
}

// SetClinicalPurger attaches the clinical store that is cleared when a visit
// is deleted.
func (s *Service) SetClinicalPurger(p ClinicalPurger) {
	s.clinical = p
}

// SetBillCounter attaches the billing store that guards visit deletion.
func (s *Service) SetBillCounter(b BillCounter) {
	s.bills = b
}

// SetPublisher attaches the queue feed.
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.events = p
}

func (s *Service) checkRef(ctx context.Context, entity, field, id string, exists func(context.Context, string) (bool, error)) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Validation("visit", field, "%s is required", field)
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundRef(entity, field, id)
	}
	return nil
}

func (s *Service) checkParticipants(ctx context.Context, v *Visit) error {
	v.PatientID = strings.TrimSpace(v.PatientID)
	v.DoctorID = strings.TrimSpace(v.DoctorID)
	v.CreatedByUserID = strings.TrimSpace(v.CreatedByUserID)
	if s.participants == nil {
		return nil
	}
	if err := s.checkRef(ctx, "patient", "patient_id", v.PatientID, s.participants.PatientExists); err != nil {
		return err
	}
	if err := s.checkRef(ctx, "doctor", "doctor_id", v.DoctorID, s.participants.DoctorExists); err != nil {
		return err
	}
	return s.checkRef(ctx, "user", "created_by_user_id", v.CreatedByUserID, s.participants.UserExists)
}

func validateDuration(d *int) error {
	if d != nil && *d <= 0 {
		return apperrors.Validation("visit", "duration_minutes", "duration_minutes must be positive")
	}
	return nil
}

// CreateVisit books a new visit. It always starts Scheduled and never
// creates clinical or billing rows.
func (s *Service) CreateVisit(ctx context.Context, v *Visit) error {
	if v.CheckInDatetime != nil {
		return apperrors.Validation("visit", "check_in_datetime", "a new visit cannot be checked in")
	}
	if v.DurationMinutes != nil {
		return apperrors.Validation("visit", "duration_minutes", "duration_minutes can only be set once the visit is in progress")
	}
	if v.VisitDatetime.IsZero() {
		v.VisitDatetime = s.now().UTC()
	}
	v.ChiefComplaint = trimOptional(v.ChiefComplaint)
	v.Notes = trimOptional(v.Notes)
	v.Status = InitialStatus

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkParticipants(ctx, v); err != nil {
			return err
		}
		v.ID = ids.OrNew(v.ID, ids.PrefixVisit)
		if err := s.repo.Create(ctx, v); err != nil {
			return err
		}
		if err := s.repo.AddStatusChange(ctx, &StatusChange{VisitID: v.ID, To: v.Status, ChangedAt: s.now().UTC()}); err != nil {
			return err
		}
		s.publishAfterCommit(ctx, visitEvent(EventCreated, v))
		return nil
	})
}

// ImportVisit stores a historical visit in whatever status it reached. The
// references and the check-in and duration rules still apply.
func (s *Service) ImportVisit(ctx context.Context, v *Visit) error {
	if err := reference.CheckAssigned("visit", "status", v.Status); err != nil {
		return err
	}
	if v.VisitDatetime.IsZero() {
		return apperrors.Validation("visit", "visit_datetime", "visit_datetime is required")
	}
	if v.CheckInDatetime != nil && v.Status == reference.VisitScheduled {
		return apperrors.Validation("visit", "check_in_datetime", "a scheduled visit cannot have a check-in time")
	}
	// check-in is only ever set on the move out of Scheduled
	if v.CheckInDatetime == nil && v.Status != reference.VisitScheduled && v.Status != reference.VisitCancelled {
		return apperrors.Validation("visit", "check_in_datetime", "check_in_datetime is required for a %s visit", v.Status)
	}
	if v.DurationMinutes != nil && !durationAllowed(v.Status) {
		return apperrors.Validation("visit", "duration_minutes", "duration_minutes is not allowed for a %s visit", v.Status)
	}
	if err := validateDuration(v.DurationMinutes); err != nil {
		return err
	}
	v.ChiefComplaint = trimOptional(v.ChiefComplaint)
	v.Notes = trimOptional(v.Notes)

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkParticipants(ctx, v); err != nil {
			return err
		}
		v.ID = ids.OrNew(v.ID, ids.PrefixVisit)
		if err := s.repo.Create(ctx, v); err != nil {
			return err
		}
		changed := v.CreatedAt
		if changed.IsZero() {
			changed = s.now().UTC()
		}
		return s.repo.AddStatusChange(ctx, &StatusChange{VisitID: v.ID, To: v.Status, ChangedAt: changed})
	})
}

func (s *Service) GetVisit(ctx context.Context, id string) (*Visit, error) {
	return s.repo.GetByID(ctx, id)
}

// VisitExists lets the clinical and billing stores check their parent.
func (s *Service) VisitExists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListVisits(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, apperrors.Validation("visit", "status", "unknown visit status")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperrors.Validation("visit", "to", "to must not be before from")
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Queue returns the scheduled and checked-in visits, oldest first. A blank
// doctorID returns the whole clinic's queue.
func (s *Service) Queue(ctx context.Context, doctorID string) ([]*Visit, error) {
	return s.repo.Queue(ctx, doctorID)
}

// Stats computes the dashboard counters for the calendar day containing now.
func (s *Service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	start := dates.StartOfDay(now)
	return s.repo.Stats(ctx, start, start.AddDate(0, 0, 1))
}

func (s *Service) StatusHistory(ctx context.Context, id string) ([]*StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.StatusHistory(ctx, id)
}

// CountByPatient, CountByDoctor and CountByCreator guard identity deletes.
func (s *Service) CountByPatient(ctx context.Context, id string) (int, error) {
	return s.repo.CountByPatient(ctx, id)
}

func (s *Service) CountByDoctor(ctx context.Context, id string) (int, error) {
	return s.repo.CountByDoctor(ctx, id)
}

func (s *Service) CountByCreator(ctx context.Context, id string) (int, error) {
	return s.repo.CountByCreator(ctx, id)
}

// Transition moves the visit to target. The row stays locked for the rest of
// the transaction so concurrent transitions of one visit serialize.
func (s *Service) Transition(ctx context.Context, id string, target reference.VisitStatus) (*Visit, error) {
	if err := reference.CheckAssigned("visit", "status", target); err != nil {
		return nil, err
	}
	var out *Visit
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from := v.Status
		if !CanTransition(from, target) {
			return apperrors.InvalidTransition("visit", from, target)
		}
		now := s.now().UTC()
		if target == reference.VisitCheckedIn {
			if v.CheckInDatetime != nil {
				return apperrors.Validation("visit", "check_in_datetime", "visit %s is already checked in", id)
			}
			v.CheckInDatetime = &now
		}
		v.Status = target
		if err := s.repo.Update(ctx, v); err != nil {
			return err
		}
		if err := s.repo.AddStatusChange(ctx, &StatusChange{VisitID: v.ID, From: &from, To: target, ChangedAt: now}); err != nil {
			return err
		}
		ev := visitEvent(EventStatusChanged, v)
		ev.From = from.String()
		s.publishAfterCommit(ctx, ev)
		out = v
		return nil
	})
	return out, err
}

// UpdateVisit applies patch under these rules: the schedule and doctor only
// change while Scheduled, the chief complaint only before a terminal status,
// and the duration only once the visit is in progress. Notes and the
// follow-up date can always change. check_in_datetime is never patchable.
func (s *Service) UpdateVisit(ctx context.Context, id string, patch Patch) (*Visit, error) {
	var out *Visit
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if patch.VisitDatetime != nil || patch.DoctorID != nil {
			if v.Status != reference.VisitScheduled {
				field := "visit_datetime"
				if patch.VisitDatetime == nil {
					field = "doctor_id"
				}
				return apperrors.Validation("visit", field, "%s can only change while the visit is scheduled", field)
			}
		}
		if patch.VisitDatetime != nil {
			if patch.VisitDatetime.IsZero() {
				return apperrors.Validation("visit", "visit_datetime", "visit_datetime is required")
			}
			v.VisitDatetime = *patch.VisitDatetime
		}
		if patch.DoctorID != nil && *patch.DoctorID != v.DoctorID {
			doctorID := strings.TrimSpace(*patch.DoctorID)
			if s.participants != nil {
				if err := s.checkRef(ctx, "doctor", "doctor_id", doctorID, s.participants.DoctorExists); err != nil {
					return err
				}
			}
			v.DoctorID = doctorID
		}
		if patch.ChiefComplaint != nil {
			if v.Status.Terminal() {
				return apperrors.Validation("visit", "chief_complaint", "chief_complaint cannot change once the visit is %s", v.Status)
			}
			v.ChiefComplaint = trimOptional(patch.ChiefComplaint)
		}
		if patch.DurationMinutes != nil {
			if !durationAllowed(v.Status) {
				return apperrors.Validation("visit", "duration_minutes", "duration_minutes is not allowed for a %s visit", v.Status)
			}
			if err := validateDuration(patch.DurationMinutes); err != nil {
				return err
			}
			d := *patch.DurationMinutes
			v.DurationMinutes = &d
		}
		if patch.Notes != nil {
			v.Notes = trimOptional(patch.Notes)
		}
		if patch.FollowUpDate != nil {
			f := dates.StartOfDay(*patch.FollowUpDate)
			v.FollowUpDate = &f
		}
		if err := s.repo.Update(ctx, v); err != nil {
			return err
		}
		s.publishAfterCommit(ctx, visitEvent(EventUpdated, v))
		out = v
		return nil
	})
	return out, err
}

// DeleteVisit removes a Scheduled or Cancelled visit that no bill references,
// together with its diagnoses, prescriptions and status history.
func (s *Service) DeleteVisit(ctx context.Context, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Deletable(v.Status) {
			return apperrors.Conflict("visit", "visit %s is %s; only scheduled or cancelled visits can be deleted", id, v.Status)
		}
		if s.bills != nil {
			n, err := s.bills.CountByVisit(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Conflict("visit", "visit %s is referenced by %d bill(s)", id, n)
			}
		}
		if s.clinical != nil {
			if err := s.clinical.DeleteByVisit(ctx, id); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		s.publishAfterCommit(ctx, visitEvent(EventDeleted, v))
		return nil
	})
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
