package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"regsys/internal/license"
)

// licenseProblem describes how one activation error kind is rendered.
type licenseProblem struct {
	status int
	slug   string
	title  string
}

var licenseProblems = map[license.ErrorKind]licenseProblem{
	license.KindMalformedPayload:        {http.StatusBadRequest, "malformed-payload", "Malformed License Code"},
	license.KindInvalidFingerprintField: {http.StatusBadRequest, "invalid-machine-field", "Invalid Machine Code Field"},
	license.KindInvalidDeadlineField:    {http.StatusBadRequest, "invalid-deadline-field", "Invalid Deadline Field"},
	license.KindFingerprintMismatch:     {http.StatusForbidden, "machine-mismatch", "License Machine Mismatch"},
	license.KindEnrollmentCodeInvalid:   {http.StatusUnprocessableEntity, "enrollment-code-invalid", "Enrollment Code Invalid"},
	license.KindAlreadyExpired:          {http.StatusUnprocessableEntity, "expired", "License Expired"},
	license.KindStorage:                 {http.StatusInternalServerError, "storage", "License Storage Failure"},
}

// ErrorHandler converts errors to problem responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError renders err as RFC 7807 problem details.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	if reqID != "" {
		problem.WithExtension("trace_id", reqID)
	}

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	_ = render.Render(w, r, problem)
}

// ErrorToProblem maps err to problem details.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var activationErr *license.ActivationError
	if errors.As(err, &activationErr) {
		p, ok := licenseProblems[activationErr.Kind]
		if !ok {
			p = licenseProblem{http.StatusInternalServerError, "unknown", "License Error"}
		}
		return NewProblemDetails(p.status, "/errors/license/"+p.slug, p.title, activationErr.Reason, r.URL.Path).
			WithExtension("error_code", string(activationErr.Kind))
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]ValidationError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, ValidationError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed",
			"request body failed validation", r.URL.Path).
			WithExtension("errors", fields)
	}

	var badRequest *BadRequestError
	if errors.As(err, &badRequest) {
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", badRequest.Error(), r.URL.Path)
	}

	switch {
	case errors.Is(err, license.ErrInvalidMachineCode):
		return NewProblemDetails(http.StatusBadRequest, TypeMachineCode, "Invalid Machine Code", err.Error(), r.URL.Path)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, "/errors/timeout", "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)
	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
			"An unexpected error occurred", r.URL.Path)
	}
}

// ValidationError describes one failed field rule.
type ValidationError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// BadRequestError marks client input that could not be decoded.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string { return "invalid request: " + e.Err.Error() }

func (e *BadRequestError) Unwrap() error { return e.Err }

// BadRequest wraps err as a BadRequestError.
func BadRequest(err error) error {
	return &BadRequestError{Err: err}
}
