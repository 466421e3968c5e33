package reference

import (
	"time"
)

// Medication is a catalog drug. Its id is a database serial.
type Medication struct {
	ID              int       `json:"medication_id"`
	Name            string    `json:"name"`
	GenericName     *string   `json:"generic_name,omitempty"`
	Category        *string   `json:"category,omitempty"`
	CommonDose      *string   `json:"common_dose,omitempty"`
	CommonFrequency *string   `json:"common_frequency,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Department struct {
	ID          string    `json:"department_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MedicalService is a priced item used when invoicing a visit.
type MedicalService struct {
	ID        string    `json:"medical_service_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ConsultationService names the catalog entry priced for new registrations.
const ConsultationService = "consultation"

// Lookups is every closed enumeration with its codes.
type Lookups struct {
	Sex            []LookupValue `json:"sex"`
	GenderIdentity []LookupValue `json:"gender_identity"`
	VisitStatus    []LookupValue `json:"visit_status"`
	PaymentMethod  []LookupValue `json:"payment_method"`
}

// LookupTable pairs a seeded table with the enum it mirrors.
type LookupTable struct {
	Table    string
	IDColumn string
	Values   []LookupValue
}

func lookupTables() []LookupTable {
	return []LookupTable{
		{Table: "sex", IDColumn: "sex_id", Values: sexSet.values()},
		{Table: "gender_identity", IDColumn: "gender_identity_id", Values: genderSet.values()},
		{Table: "visit_status", IDColumn: "status_id", Values: visitStatusSet.values()},
		{Table: "payment_methods", IDColumn: "method_id", Values: paymentMethodSet.values()},
	}
}
