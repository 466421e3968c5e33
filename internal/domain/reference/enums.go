package reference

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/orms/orms/pkg/apperrors"
)

// enumSet is the name table behind each closed enumeration.
type enumSet[T ~int] struct {
	kind  string
	names map[T]string
}

func (e enumSet[T]) name(v T) string {
	if n, ok := e.names[v]; ok {
		return n
	}
	return "unknown(" + strconv.Itoa(int(v)) + ")"
}

func (e enumSet[T]) valid(v T) bool {
	_, ok := e.names[v]
	return ok
}

func (e enumSet[T]) fromCode(code int) (T, error) {
	v := T(code)
	if code == 0 {
		return 0, apperrors.Validation(e.kind, "code", "%s code is required", e.kind)
	}
	if !e.valid(v) {
		return 0, apperrors.NotFoundRef(e.kind, e.kind, code)
	}
	return v, nil
}

func (e enumSet[T]) parse(s string) (T, error) {
	s = strings.TrimSpace(s)
	for v, n := range e.names {
		if strings.EqualFold(n, s) {
			return v, nil
		}
	}
	if code, err := strconv.Atoi(s); err == nil {
		return e.fromCode(code)
	}
	return 0, apperrors.Validation(e.kind, "name", "unknown %s %q", e.kind, s)
}

func (e enumSet[T]) values() []LookupValue {
	out := make([]LookupValue, 0, len(e.names))
	for v, n := range e.names {
		out = append(out, LookupValue{Code: int(v), Name: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (e enumSet[T]) marshal(v T) ([]byte, error) {
	if !e.valid(v) {
		return nil, apperrors.Validation(e.kind, "code", "unknown %s code %d", e.kind, int(v))
	}
	return json.Marshal(e.names[v])
}

// unmarshal accepts either the name or the integer code. A code is taken
// as given; CheckAssigned rejects unknown codes where the value is stored.
func (e enumSet[T]) unmarshal(data []byte) (T, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return e.parse(s)
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return 0, apperrors.Validation(e.kind, "", "expected %s name or code", e.kind)
	}
	return T(code), nil
}

// CheckAssigned checks an enum value about to be stored in entity.field.
// A zero value is missing; any other value outside the set cites an
// unknown code.
func CheckAssigned[T interface {
	~int
	Valid() bool
}](entity, field string, v T) error {
	if v == 0 {
		return apperrors.Validation(entity, field, "%s is required", field)
	}
	if !v.Valid() {
		return apperrors.NotFoundRef(field, field, int(v))
	}
	return nil
}

// LookupValue is one row of a lookup table.
type LookupValue struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Sex

type Sex int

const (
	SexMale   Sex = 1
	SexFemale Sex = 2
)

var sexSet = enumSet[Sex]{kind: "sex", names: map[Sex]string{
	SexMale:   "male",
	SexFemale: "female",
}}

func (s Sex) Code() int                     { return int(s) }
func (s Sex) String() string                { return sexSet.name(s) }
func (s Sex) Valid() bool                   { return sexSet.valid(s) }
func (s Sex) MarshalJSON() ([]byte, error)  { return sexSet.marshal(s) }
func (s *Sex) UnmarshalJSON(b []byte) error { return unmarshalInto(sexSet, s, b) }
func ParseSex(name string) (Sex, error)     { return sexSet.parse(name) }
func SexFromCode(code int) (Sex, error)     { return sexSet.fromCode(code) }

// GenderIdentity

type GenderIdentity int

const (
	GenderMale           GenderIdentity = 1
	GenderFemale         GenderIdentity = 2
	GenderNonBinary      GenderIdentity = 3
	GenderPreferNotToSay GenderIdentity = 4
	GenderOther          GenderIdentity = 5
)

var genderSet = enumSet[GenderIdentity]{kind: "gender_identity", names: map[GenderIdentity]string{
	GenderMale:           "male",
	GenderFemale:         "female",
	GenderNonBinary:      "non-binary",
	GenderPreferNotToSay: "prefer not to say",
	GenderOther:          "other",
}}

func (g GenderIdentity) Code() int                     { return int(g) }
func (g GenderIdentity) String() string                { return genderSet.name(g) }
func (g GenderIdentity) Valid() bool                   { return genderSet.valid(g) }
func (g GenderIdentity) MarshalJSON() ([]byte, error)  { return genderSet.marshal(g) }
func (g *GenderIdentity) UnmarshalJSON(b []byte) error { return unmarshalInto(genderSet, g, b) }
func ParseGenderIdentity(name string) (GenderIdentity, error) {
	return genderSet.parse(name)
}
func GenderIdentityFromCode(code int) (GenderIdentity, error) {
	return genderSet.fromCode(code)
}

// VisitStatus. Ordinals follow the lifecycle order.

type VisitStatus int

const (
	VisitScheduled  VisitStatus = 1
	VisitCheckedIn  VisitStatus = 2
	VisitInProgress VisitStatus = 3
	VisitCompleted  VisitStatus = 4
	VisitCancelled  VisitStatus = 5
)

var visitStatusSet = enumSet[VisitStatus]{kind: "visit_status", names: map[VisitStatus]string{
	VisitScheduled:  "scheduled",
	VisitCheckedIn:  "checked-in",
	VisitInProgress: "in-progress",
	VisitCompleted:  "completed",
	VisitCancelled:  "cancelled",
}}

func (v VisitStatus) Code() int                     { return int(v) }
func (v VisitStatus) String() string                { return visitStatusSet.name(v) }
func (v VisitStatus) Valid() bool                   { return visitStatusSet.valid(v) }
func (v VisitStatus) MarshalJSON() ([]byte, error)  { return visitStatusSet.marshal(v) }
func (v *VisitStatus) UnmarshalJSON(b []byte) error { return unmarshalInto(visitStatusSet, v, b) }
func ParseVisitStatus(name string) (VisitStatus, error) {
	return visitStatusSet.parse(name)
}
func VisitStatusFromCode(code int) (VisitStatus, error) {
	return visitStatusSet.fromCode(code)
}

// Terminal reports whether no further transition is possible.
func (v VisitStatus) Terminal() bool {
	return v == VisitCompleted || v == VisitCancelled
}

// PaymentMethod

type PaymentMethod int

const (
	PaymentCash         PaymentMethod = 1
	PaymentCreditCard   PaymentMethod = 2
	PaymentDebitCard    PaymentMethod = 3
	PaymentInsurance    PaymentMethod = 4
	PaymentBankTransfer PaymentMethod = 5
)

var paymentMethodSet = enumSet[PaymentMethod]{kind: "payment_method", names: map[PaymentMethod]string{
	PaymentCash:         "Cash",
	PaymentCreditCard:   "Credit Card",
	PaymentDebitCard:    "Debit Card",
	PaymentInsurance:    "Insurance",
	PaymentBankTransfer: "Bank Transfer",
}}

func (p PaymentMethod) Code() int                     { return int(p) }
func (p PaymentMethod) String() string                { return paymentMethodSet.name(p) }
func (p PaymentMethod) Valid() bool                   { return paymentMethodSet.valid(p) }
func (p PaymentMethod) MarshalJSON() ([]byte, error)  { return paymentMethodSet.marshal(p) }
func (p *PaymentMethod) UnmarshalJSON(b []byte) error { return unmarshalInto(paymentMethodSet, p, b) }
func ParsePaymentMethod(name string) (PaymentMethod, error) {
	return paymentMethodSet.parse(name)
}
func PaymentMethodFromCode(code int) (PaymentMethod, error) {
	return paymentMethodSet.fromCode(code)
}

func unmarshalInto[T ~int](set enumSet[T], dst *T, data []byte) error {
	v, err := set.unmarshal(data)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
