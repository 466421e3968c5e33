package identity

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/dates"
	"github.com/orms/orms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PATCH("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)

	api.GET("/doctors", h.ListDoctors)
	api.POST("/doctors", h.CreateDoctor)
	api.GET("/doctors/:id", h.GetDoctor)
	api.PATCH("/doctors/:id", h.UpdateDoctor)
	api.DELETE("/doctors/:id", h.DeleteDoctor)

	api.GET("/users", h.ListUsers)
	api.POST("/users", h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.PATCH("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeleteUser)
}

func parseDate(entity, field string, s *string) (*time.Time, error) {
	t, err := dates.Optional(s, dates.ParseDate)
	if err != nil {
		return nil, apperrors.Validation(entity, field, "%s must be a date (YYYY-MM-DD)", field)
	}
	return t, nil
}

// -- Patients --

// PatientRequest is the wire form of a new patient. Dates are strings in
// any layout pkg/dates accepts.
type PatientRequest struct {
	ID                           string                    `json:"patient_id"`
	FirstName                    string                    `json:"first_name"`
	LastName                     string                    `json:"last_name"`
	DateOfBirth                  string                    `json:"date_of_birth"`
	Sex                          reference.Sex             `json:"sex"`
	GenderIdentity               *reference.GenderIdentity `json:"gender_identity"`
	Phone                        string                    `json:"phone"`
	Email                        *string                   `json:"email"`
	Address                      *string                   `json:"address"`
	EmergencyContactName         *string                   `json:"emergency_contact_name"`
	EmergencyContactRelationship *string                   `json:"emergency_contact_relationship"`
	EmergencyContactPhone        *string                   `json:"emergency_contact_phone"`
}

func (r PatientRequest) ToPatient() (*Patient, error) {
	dob, err := parseDate("patient", "date_of_birth", &r.DateOfBirth)
	if err != nil {
		return nil, err
	}
	p := &Patient{
		ID:                           r.ID,
		FirstName:                    r.FirstName,
		LastName:                     r.LastName,
		Sex:                          r.Sex,
		GenderIdentity:               r.GenderIdentity,
		Phone:                        r.Phone,
		Email:                        r.Email,
		Address:                      r.Address,
		EmergencyContactName:         r.EmergencyContactName,
		EmergencyContactRelationship: r.EmergencyContactRelationship,
		EmergencyContactPhone:        r.EmergencyContactPhone,
	}
	if dob != nil {
		p.DateOfBirth = *dob
	}
	return p, nil
}

type patientPatchRequest struct {
	FirstName                    *string                   `json:"first_name"`
	LastName                     *string                   `json:"last_name"`
	DateOfBirth                  *string                   `json:"date_of_birth"`
	Sex                          *reference.Sex            `json:"sex"`
	GenderIdentity               *reference.GenderIdentity `json:"gender_identity"`
	Phone                        *string                   `json:"phone"`
	Email                        *string                   `json:"email"`
	Address                      *string                   `json:"address"`
	EmergencyContactName         *string                   `json:"emergency_contact_name"`
	EmergencyContactRelationship *string                   `json:"emergency_contact_relationship"`
	EmergencyContactPhone        *string                   `json:"emergency_contact_phone"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req PatientRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("patient", "body", "invalid request body")
	}
	p, err := req.ToPatient()
	if err != nil {
		return err
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := PatientFilter{Search: c.QueryParam("search")}
	if sex := c.QueryParam("sex"); sex != "" {
		v, err := reference.ParseSex(sex)
		if err != nil {
			return err
		}
		f.Sex = &v
	}
	patients, total, err := h.svc.SearchPatients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var req patientPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("patient", "body", "invalid request body")
	}
	dob, err := parseDate("patient", "date_of_birth", req.DateOfBirth)
	if err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), c.Param("id"), PatientPatch{
		FirstName:                    req.FirstName,
		LastName:                     req.LastName,
		DateOfBirth:                  dob,
		Sex:                          req.Sex,
		GenderIdentity:               req.GenderIdentity,
		Phone:                        req.Phone,
		Email:                        req.Email,
		Address:                      req.Address,
		EmergencyContactName:         req.EmergencyContactName,
		EmergencyContactRelationship: req.EmergencyContactRelationship,
		EmergencyContactPhone:        req.EmergencyContactPhone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.DeletePatient(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctors --

type doctorRequest struct {
	ID            string        `json:"doctor_id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	LicenseNumber string        `json:"license_number"`
	Sex           reference.Sex `json:"sex"`
	DepartmentID  string        `json:"department_id"`
	Phone         *string       `json:"phone"`
	Email         *string       `json:"email"`
	HireDate      *string       `json:"hire_date"`
}

type doctorPatchRequest struct {
	FirstName     *string        `json:"first_name"`
	LastName      *string        `json:"last_name"`
	LicenseNumber *string        `json:"license_number"`
	Sex           *reference.Sex `json:"sex"`
	DepartmentID  *string        `json:"department_id"`
	Phone         *string        `json:"phone"`
	Email         *string        `json:"email"`
	HireDate      *string        `json:"hire_date"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req doctorRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("doctor", "body", "invalid request body")
	}
	hired, err := parseDate("doctor", "hire_date", req.HireDate)
	if err != nil {
		return err
	}
	d := &Doctor{
		ID:            req.ID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		LicenseNumber: req.LicenseNumber,
		Sex:           req.Sex,
		DepartmentID:  req.DepartmentID,
		Phone:         req.Phone,
		Email:         req.Email,
		HireDate:      hired,
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.GetDoctor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := DoctorFilter{DepartmentID: c.QueryParam("department_id"), Search: c.QueryParam("search")}
	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	var req doctorPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("doctor", "body", "invalid request body")
	}
	hired, err := parseDate("doctor", "hire_date", req.HireDate)
	if err != nil {
		return err
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), c.Param("id"), DoctorPatch{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		LicenseNumber: req.LicenseNumber,
		Sex:           req.Sex,
		DepartmentID:  req.DepartmentID,
		Phone:         req.Phone,
		Email:         req.Email,
		HireDate:      hired,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	if err := h.svc.DeleteDoctor(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Users --

type userRequest struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	IsActive *bool  `json:"is_active"`
}

type userPatchRequest struct {
	Role     *Role   `json:"role"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("user", "body", "invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), NewUser{
		ID:       req.ID,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	u, err := h.svc.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	var req userPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("user", "body", "invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), c.Param("id"), UserPatch{
		Role:     req.Role,
		IsActive: req.IsActive,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	if err := h.svc.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
