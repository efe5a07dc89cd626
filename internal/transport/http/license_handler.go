package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "regsys/internal/errors"
	"regsys/internal/fingerprint"
	"regsys/internal/ledger"
	"regsys/internal/license"
)

// LicenseService is the part of license.Engine the handlers call.
type LicenseService interface {
	MachineFingerprint(ctx context.Context) string
	StoragePath(ctx context.Context) string
	Activate(ctx context.Context, raw string) error
	RefreshStatus(ctx context.Context) license.Report
	IssueLicense(ctx context.Context, target string, deadline, issueDate time.Time) license.Payload
}

// Ledger records issued licenses.
type Ledger interface {
	Append(e ledger.Entry) error
}

// LicenseHandler serves /api/license.
type LicenseHandler struct {
	service  LicenseService
	errors   *apperrors.ErrorHandler
	validate *validator.Validate
	ledger   Ledger
	clock    license.Clock
	logger   *slog.Logger
}

// NewLicenseHandler creates a handler. ledger may be nil.
func NewLicenseHandler(service LicenseService, ledger Ledger, clock license.Clock, logger *slog.Logger) *LicenseHandler {
	if clock == nil {
		clock = time.Now
	}
	return &LicenseHandler{
		service:  service,
		errors:   apperrors.NewErrorHandler(logger),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ledger:   ledger,
		clock:    clock,
		logger:   logger.With(slog.String("handler", "license")),
	}
}

// ActivateRequest carries a pasted license code.
type ActivateRequest struct {
	LicenseCode string `json:"license_code" validate:"required"`
}

// Bind implements render.Binder.
func (a *ActivateRequest) Bind(*http.Request) error { return nil }

// IssueRequest asks for a license for machine_code, or for this machine when
// machine_code is blank.
type IssueRequest struct {
	MachineCode string `json:"machine_code" validate:"omitempty,len=24"`
	Preset      string `json:"preset" validate:"omitempty,oneof=3d 10d 20d 1m 3m 1y permanent custom"`
	IssueDate   string `json:"issue_date,omitempty"`
	Deadline    string `json:"deadline,omitempty" validate:"required_if=Preset custom"`
}

// Bind implements render.Binder.
func (i *IssueRequest) Bind(*http.Request) error { return nil }

// IssueResponse returns the compact payload.
type IssueResponse struct {
	LicenseCode string `json:"license_code"`
	MachineCode string `json:"machine_code"`
	Preset      string `json:"preset"`
	IssueDate   string `json:"issue_date"`
	Deadline    string `json:"deadline"`
	Kind        string `json:"kind"`
}

// MachineResponse carries the code a customer sends to the vendor.
type MachineResponse struct {
	MachineCode string `json:"machine_code"`
	StoragePath string `json:"storage_path"`
}

// RegisterRoutes adds the license endpoints to r. limit wraps the activation
// route; issuance is registered only when enableIssue is set.
func (h *LicenseHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler, enableIssue bool) {
	r.Get("/machine", h.GetMachine)
	r.Get("/status", h.GetStatus)
	r.With(limit).Post("/activate", h.Activate)
	if enableIssue {
		r.Post("/issue", h.Issue)
	}
}

// GetMachine handles GET /api/license/machine
func (h *LicenseHandler) GetMachine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	render.JSON(w, r, MachineResponse{
		MachineCode: h.service.MachineFingerprint(ctx),
		StoragePath: h.service.StoragePath(ctx),
	})
}

// GetStatus handles GET /api/license/status
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.RefreshStatus(r.Context()))
}

// Activate handles POST /api/license/activate
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ActivateRequest
	if err := render.Bind(r, &req); err != nil {
		h.errors.HandleError(w, r, apperrors.BadRequest(err))
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	if err := h.service.Activate(ctx, req.LicenseCode); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, h.service.RefreshStatus(ctx))
}

// Issue handles POST /api/license/issue
func (h *LicenseHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IssueRequest
	if err := render.Bind(r, &req); err != nil {
		h.errors.HandleError(w, r, apperrors.BadRequest(err))
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	target := req.MachineCode
	if target != "" {
		fp, err := license.ValidateFingerprint(target)
		if err != nil {
			h.errors.HandleError(w, r, err)
			return
		}
		target = fp
	}

	preset, _ := license.ParsePreset(req.Preset)
	now := h.clock()
	issueDate, deadline, err := license.PlanDates(preset, req.IssueDate, req.Deadline, now)
	if err != nil {
		h.errors.HandleError(w, r, apperrors.BadRequest(err))
		return
	}

	payload := h.service.IssueLicense(ctx, target, deadline, issueDate)
	if target == "" {
		target = h.service.MachineFingerprint(ctx)
	}

	entry := ledger.NewEntry(now, target, preset, issueDate, deadline, payload)
	if h.ledger != nil {
		if err := h.ledger.Append(entry); err != nil {
			// The license is already issued; the ledger is bookkeeping.
			h.logger.WarnContext(ctx, "failed to record issued license",
				slog.String("error", err.Error()),
				slog.String("machine_code", fingerprint.Mask(target)))
		}
	}

	render.JSON(w, r, IssueResponse{
		LicenseCode: entry.Payload,
		MachineCode: target,
		Preset:      entry.Preset,
		IssueDate:   entry.IssueDate,
		Deadline:    entry.Deadline,
		Kind:        entry.Kind,
	})
}
