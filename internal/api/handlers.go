package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/auth"
	"github.com/mesikahq/hospital-ops/internal/billing"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/medrecord"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
	"github.com/mesikahq/hospital-ops/internal/report"
	"github.com/mesikahq/hospital-ops/internal/schedule"
)

type Handler struct {
	authService     auth.Service
	patientService  patient.Service
	providerService provider.Service
	scheduleManager schedule.Manager
	billingEngine   billing.Engine
	recordService   medrecord.Service
	reportService   report.Service
	auditService    audit.Service
}

func NewHandler(
	authService auth.Service,
	patientService patient.Service,
	providerService provider.Service,
	scheduleManager schedule.Manager,
	billingEngine billing.Engine,
	recordService medrecord.Service,
	reportService report.Service,
	auditService audit.Service,
) *Handler {
	return &Handler{
		authService:     authService,
		patientService:  patientService,
		providerService: providerService,
		scheduleManager: scheduleManager,
		billingEngine:   billingEngine,
		recordService:   recordService,
		reportService:   reportService,
		auditService:    auditService,
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *dualstore.ValidationError
	var perr *dualstore.PersistenceError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, dualstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, schedule.ErrSchedulingConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrInvalidState),
		errors.Is(err, schedule.ErrProviderInactive),
		errors.Is(err, billing.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// Auth handlers

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type RegisterUserRequest struct {
	Username string   `json:"username" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.Roles)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.authService.RefreshToken(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) DeactivateUser(c *gin.Context) {
	if err := h.authService.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deactivated"})
}

// Patient handlers

type PatientRequest struct {
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	DateOfBirth string `json:"date_of_birth" binding:"required"`
	Gender      string `json:"gender"`
	BloodGroup  string `json:"blood_group"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

func (r *PatientRequest) toPatient() (*patient.Patient, error) {
	dob, err := time.Parse("2006-01-02", r.DateOfBirth)
	if err != nil {
		return nil, &dualstore.ValidationError{Fields: []string{"date_of_birth"}}
	}
	return &patient.Patient{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: dob,
		Gender:      r.Gender,
		BloodGroup:  r.BloodGroup,
		Phone:       r.Phone,
		Email:       r.Email,
		Address:     r.Address,
	}, nil
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.toPatient()
	if err != nil {
		respondError(c, err)
		return
	}

	id, err := h.patientService.Register(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.patientService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.toPatient()
	if err != nil {
		respondError(c, err)
		return
	}
	p.ID = c.Param("id")

	if err := h.patientService.Update(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "patient updated"})
}

func (h *Handler) ArchivePatient(c *gin.Context) {
	if err := h.patientService.Archive(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "patient archived"})
}

func (h *Handler) ListPatients(c *gin.Context) {
	if term := c.Query("q"); term != "" {
		patients, err := h.patientService.Search(c.Request.Context(), term)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"patients": patients})
		return
	}

	patients, err := h.patientService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": patients})
}

// Provider handlers

type ProviderRequest struct {
	Name        string   `json:"name" binding:"required"`
	Type        string   `json:"type" binding:"required"`
	Department  string   `json:"department" binding:"required"`
	Specialties []string `json:"specialties"`
}

func (h *Handler) RegisterProvider(c *gin.Context) {
	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.providerService.Register(c.Request.Context(), &provider.Provider{
		Name:        req.Name,
		Type:        provider.ProviderType(req.Type),
		Department:  req.Department,
		Specialties: req.Specialties,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetProvider(c *gin.Context) {
	p, err := h.providerService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProviders(c *gin.Context) {
	providers, err := h.providerService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

func (h *Handler) DeactivateProvider(c *gin.Context) {
	if err := h.providerService.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "provider deactivated"})
}

// Appointment handlers

type BookAppointmentRequest struct {
	PatientID  string    `json:"patient_id" binding:"required"`
	ProviderID string    `json:"provider_id" binding:"required"`
	Department string    `json:"department"`
	Start      time.Time `json:"start" binding:"required"`
	End        time.Time `json:"end" binding:"required"`
	Notes      string    `json:"notes"`
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	iv := schedule.Interval{Start: req.Start, End: req.End}
	id, err := h.scheduleManager.Book(c.Request.Context(), req.PatientID, req.ProviderID, req.Department, iv, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appt, err := h.scheduleManager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// ListAppointments supports ?date=YYYY-MM-DD and ?provider_id= filters.
func (h *Handler) ListAppointments(c *gin.Context) {
	ctx := c.Request.Context()

	if dateStr := c.Query("date"); dateStr != "" {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		appts, err := h.scheduleManager.ListByDate(ctx, day)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"appointments": appts})
		return
	}

	if providerID := c.Query("provider_id"); providerID != "" {
		appts, err := h.scheduleManager.ListByProvider(ctx, providerID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"appointments": appts})
		return
	}

	appts, err := h.scheduleManager.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	if err := h.scheduleManager.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled"})
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	if err := h.scheduleManager.Complete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment completed"})
}

type RescheduleRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	iv := schedule.Interval{Start: req.Start, End: req.End}
	if err := h.scheduleManager.Reschedule(c.Request.Context(), c.Param("id"), iv); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment rescheduled"})
}

// Billing handlers

type GenerateBillRequest struct {
	AppointmentID string             `json:"appointment_id" binding:"required"`
	LineItems     []billing.LineItem `json:"line_items" binding:"required"`
}

func (h *Handler) GenerateBill(c *gin.Context) {
	var req GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.billingEngine.Generate(c.Request.Context(), req.AppointmentID, req.LineItems)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetBill(c *gin.Context) {
	bill, err := h.billingEngine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) ListBills(c *gin.Context) {
	ctx := c.Request.Context()

	if patientID := c.Query("patient_id"); patientID != "" {
		bills, err := h.billingEngine.ListByPatient(ctx, patientID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bills": bills})
		return
	}

	bills, err := h.billingEngine.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": bills})
}

func (h *Handler) PayBill(c *gin.Context) {
	if err := h.billingEngine.MarkPaid(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bill paid"})
}

func (h *Handler) VoidBill(c *gin.Context) {
	if err := h.billingEngine.Void(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bill voided"})
}

// Medical record handlers

type MedicalRecordRequest struct {
	PatientID  string `json:"patient_id" binding:"required"`
	VisitDate  string `json:"visit_date"`
	Symptoms   string `json:"symptoms"`
	Diagnosis  string `json:"diagnosis" binding:"required"`
	Treatment  string `json:"treatment"`
	Medication string `json:"medication"`
	Tests      string `json:"tests"`
	Notes      string `json:"notes"`
}

func (h *Handler) AddMedicalRecord(c *gin.Context) {
	var req MedicalRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := &medrecord.MedicalRecord{
		PatientID:  req.PatientID,
		Symptoms:   req.Symptoms,
		Diagnosis:  req.Diagnosis,
		Treatment:  req.Treatment,
		Medication: req.Medication,
		Tests:      req.Tests,
		Notes:      req.Notes,
	}
	if req.VisitDate != "" {
		visit, err := time.Parse("2006-01-02", req.VisitDate)
		if err != nil {
			respondError(c, &dualstore.ValidationError{Fields: []string{"visit_date"}})
			return
		}
		rec.VisitDate = visit
	}

	id, err := h.recordService.Add(c.Request.Context(), rec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetMedicalRecord(c *gin.Context) {
	rec, err := h.recordService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) PatientHistory(c *gin.Context) {
	recs, err := h.recordService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"medical_records": recs})
}

// Report handlers

func (h *Handler) PatientStatistics(c *gin.Context) {
	stats, err := h.reportService.PatientStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) AppointmentAnalytics(c *gin.Context) {
	analytics, err := h.reportService.AppointmentAnalytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) FinancialReport(c *gin.Context) {
	rep, err := h.reportService.FinancialReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) MedicalAnalytics(c *gin.Context) {
	analytics, err := h.reportService.MedicalAnalytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) Dashboard(c *gin.Context) {
	summary, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ExportData(c *gin.Context) {
	export, err := h.reportService.ExportAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

// Audit handlers

func (h *Handler) GetAuditLogs(c *gin.Context) {
	filters := map[string]interface{}{}
	for _, key := range []string{"user_id", "event_type", "action", "resource", "resource_id", "status"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	from, _ := strconv.Atoi(c.DefaultQuery("from", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))

	events, err := h.auditService.QueryEvents(c.Request.Context(), filters, from, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
