package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/domain/clinical"
	"github.com/orms/orms/internal/domain/identity"
	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
)

// -- Lookup tables --

// The lookup tables are seeded by migrations. Their rows are only checked
// against the enum each one backs.

func checkLookup[T interface {
	~int
	String() string
}](r record, idCol string, fromCode func(int) (T, error)) error {
	code, err := r.integer(idCol)
	if err != nil {
		return err
	}
	v, err := fromCode(code)
	if err != nil {
		return r.invalid(idCol, "unknown %s %d", idCol, code)
	}
	if name := r.str("name"); name != "" && lookupKey(name) != lookupKey(v.String()) {
		return r.invalid("name", "%s %d is %q, not %q", idCol, code, v.String(), name)
	}
	return nil
}

func (im *Importer) checkSex(_ context.Context, r record) error {
	return checkLookup(r, "sex_id", reference.SexFromCode)
}

func (im *Importer) checkVisitStatus(_ context.Context, r record) error {
	return checkLookup(r, "status_id", reference.VisitStatusFromCode)
}

func (im *Importer) checkPaymentMethod(_ context.Context, r record) error {
	return checkLookup(r, "method_id", reference.PaymentMethodFromCode)
}

// -- Catalog --

func (im *Importer) medication(ctx context.Context, r record) error {
	id, err := r.integer("medication_id")
	if err != nil {
		return err
	}
	return im.targets.Reference.CreateMedication(ctx, &reference.Medication{
		ID:              id,
		Name:            r.str("name"),
		GenericName:     r.opt("generic_name"),
		Category:        r.opt("category"),
		CommonDose:      r.opt("common_dose"),
		CommonFrequency: r.opt("common_frequency"),
	})
}

func (im *Importer) department(ctx context.Context, r record) error {
	return im.targets.Reference.CreateDepartment(ctx, &reference.Department{
		ID:          r.str("department_id"),
		Name:        r.str("name"),
		Code:        r.str("code"),
		Description: r.opt("description"),
	})
}

// -- People --

func (r record) sex(col string) (reference.Sex, error) {
	code, err := r.integer(col)
	if err != nil {
		return 0, err
	}
	s, err := reference.SexFromCode(code)
	if err != nil {
		return 0, err
	}
	return s, nil
}

func (im *Importer) doctor(ctx context.Context, r record) error {
	sex, err := r.sex("sex_id")
	if err != nil {
		return err
	}
	hired, err := r.date("hire_date")
	if err != nil {
		return err
	}
	return im.targets.Identity.CreateDoctor(ctx, &identity.Doctor{
		ID:            r.str("doctor_id"),
		FirstName:     r.str("first_name"),
		LastName:      r.str("last_name"),
		LicenseNumber: r.str("license_number"),
		Sex:           sex,
		DepartmentID:  r.str("department_id"),
		Phone:         r.opt("phone"),
		Email:         r.opt("email"),
		HireDate:      hired,
	})
}

func (im *Importer) patient(ctx context.Context, r record) error {
	sex, err := r.sex("sex_id")
	if err != nil {
		return err
	}
	dob, err := r.date("date_of_birth")
	if err != nil {
		return err
	}
	p := &identity.Patient{
		ID:                           r.str("patient_id"),
		FirstName:                    r.str("first_name"),
		LastName:                     r.str("last_name"),
		Sex:                          sex,
		Phone:                        r.str("phone"),
		Email:                        r.opt("email"),
		Address:                      r.opt("address"),
		EmergencyContactName:         r.opt("emergency_contact_name"),
		EmergencyContactRelationship: r.opt("emergency_contact_relationship"),
		EmergencyContactPhone:        r.opt("emergency_contact_phone"),
	}
	if dob != nil {
		p.DateOfBirth = *dob
	}
	if code, err := r.optInt("gender_identity_id"); err != nil {
		return err
	} else if code != nil {
		g, err := reference.GenderIdentityFromCode(*code)
		if err != nil {
			return err
		}
		p.GenderIdentity = &g
	}
	return im.targets.Identity.CreatePatient(ctx, p)
}

func (im *Importer) user(ctx context.Context, r record) error {
	active, err := r.boolean("is_active", true)
	if err != nil {
		return err
	}
	created, err := r.datetime("created_at")
	if err != nil {
		return err
	}
	lastLogin, err := r.datetime("last_login")
	if err != nil {
		return err
	}
	u := &identity.User{
		ID:           r.str("user_id"),
		Username:     r.str("username"),
		PasswordHash: r.str("password_hash"),
		Role:         identity.Role(strings.ToLower(r.str("role"))),
		IsActive:     active,
		LastLogin:    lastLogin,
	}
	if created != nil {
		u.CreatedAt = *created
	}
	return im.targets.Identity.ImportUser(ctx, u)
}

// -- Visits and clinical records --

// visitStatus accepts a status code or name.
func (r record) visitStatus(col string) (reference.VisitStatus, error) {
	v := r.str(col)
	if v == "" {
		return 0, r.invalid(col, "%s is required", col)
	}
	if code, err := strconv.Atoi(v); err == nil {
		s, err := reference.VisitStatusFromCode(code)
		if err != nil {
			return 0, err
		}
		return s, nil
	}
	s, err := reference.ParseVisitStatus(lookupKey(v))
	if err != nil {
		return 0, r.invalid(col, "unknown visit status %q", v)
	}
	return s, nil
}

func (im *Importer) visit(ctx context.Context, r record) error {
	status, err := r.visitStatus("status_id")
	if err != nil {
		return err
	}
	at, err := r.datetime("visit_datetime")
	if err != nil {
		return err
	}
	checkIn, err := r.datetime("check_in_datetime")
	if err != nil {
		return err
	}
	duration, err := r.optInt("duration_minutes")
	if err != nil {
		return err
	}
	followUp, err := r.date("follow_up_date")
	if err != nil {
		return err
	}
	created, err := r.datetime("created_at")
	if err != nil {
		return err
	}
	v := &visit.Visit{
		ID:              r.str("visit_id"),
		PatientID:       r.str("patient_id"),
		DoctorID:        r.str("doctor_id"),
		CheckInDatetime: checkIn,
		DurationMinutes: duration,
		ChiefComplaint:  r.opt("chief_complaint"),
		Status:          status,
		Notes:           r.opt("notes"),
		FollowUpDate:    followUp,
		CreatedByUserID: r.str("created_by_user_id"),
	}
	if at != nil {
		v.VisitDatetime = *at
	}
	if created != nil {
		v.CreatedAt = *created
	}
	return im.targets.Visits.ImportVisit(ctx, v)
}

func (im *Importer) diagnosis(ctx context.Context, r record) error {
	return im.targets.Clinical.CreateDiagnosis(ctx, &clinical.Diagnosis{
		ID:            r.str("diagnosis_id"),
		VisitID:       r.str("visit_id"),
		DiagnosisCode: r.str("diagnosis_code"),
		Description:   r.opt("description"),
		Notes:         r.opt("notes"),
	})
}

func (im *Importer) prescription(ctx context.Context, r record) error {
	med, err := r.integer("medication_id")
	if err != nil {
		return err
	}
	days, err := r.integer("duration_days")
	if err != nil {
		return err
	}
	refills, err := r.intOr("refills_allowed", 0)
	if err != nil {
		return err
	}
	prescribed, err := r.datetime("prescribed_date")
	if err != nil {
		return err
	}
	p := &clinical.Prescription{
		ID:             r.str("prescription_id"),
		VisitID:        r.str("visit_id"),
		MedicationID:   med,
		Dosage:         r.opt("dosage"),
		Frequency:      r.opt("frequency"),
		DurationDays:   days,
		Instructions:   r.opt("instructions"),
		RefillsAllowed: refills,
	}
	if prescribed != nil {
		p.PrescribedDate = *prescribed
	}
	return im.targets.Clinical.CreatePrescription(ctx, p)
}

// -- Billing --

func (im *Importer) bill(ctx context.Context, r record) error {
	total, err := r.number("amount_total")
	if err != nil {
		return err
	}
	tax, err := r.number("tax")
	if err != nil {
		return err
	}
	// exports without a subtotal column carry tax-inclusive totals
	subtotal, err := r.optNumber("subtotal")
	if err != nil {
		return err
	}
	billed, err := r.datetime("billing_date")
	if err != nil {
		return err
	}
	paid, err := r.datetime("payment_date")
	if err != nil {
		return err
	}
	b := &billing.Bill{
		ID:          r.str("bill_id"),
		VisitID:     r.str("visit_id"),
		PatientID:   r.str("patient_id"),
		Tax:         tax,
		AmountTotal: total,
		PaymentDate: paid,
	}
	if subtotal != nil {
		b.Subtotal = *subtotal
	} else if total >= tax {
		b.Subtotal = total - tax
	}
	switch lookupKey(r.str("status")) {
	case "", "pending":
		b.Status = billing.StatusPending
	case "paid":
		b.Status = billing.StatusPaid
	default:
		return r.invalid("status", "unknown bill status %q", r.str("status"))
	}
	if code, err := r.optInt("payment_method_id"); err != nil {
		return err
	} else if code != nil {
		pm, err := reference.PaymentMethodFromCode(*code)
		if err != nil {
			return err
		}
		b.PaymentMethod = &pm
	}
	if billed != nil {
		b.BillingDate = *billed
	}
	return im.targets.Billing.ImportBill(ctx, b)
}

func (im *Importer) billService(ctx context.Context, r record) error {
	amount, err := r.number("amount")
	if err != nil {
		return err
	}
	qty, err := r.intOr("quantity", 1)
	if err != nil {
		return err
	}
	return im.targets.Billing.ImportService(ctx, &billing.BillService{
		ID:          r.str("service_id"),
		BillID:      r.str("bill_id"),
		ServiceName: r.str("service_name"),
		Amount:      amount,
		Quantity:    qty,
	})
}
