package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"regsys/internal/ledger"
	"regsys/internal/license"
	"regsys/internal/middleware"
)

const testMachine = "ABCDEFGHIJKLMNOPQRSTUVWX"

// MockLicenseService implements LicenseService for testing
type MockLicenseService struct {
	mock.Mock
}

func (m *MockLicenseService) MachineFingerprint(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *MockLicenseService) StoragePath(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *MockLicenseService) Activate(ctx context.Context, raw string) error {
	return m.Called(ctx, raw).Error(0)
}

func (m *MockLicenseService) RefreshStatus(ctx context.Context) license.Report {
	return m.Called(ctx).Get(0).(license.Report)
}

func (m *MockLicenseService) IssueLicense(ctx context.Context, target string, deadline, issueDate time.Time) license.Payload {
	return m.Called(ctx, target, deadline, issueDate).Get(0).(license.Payload)
}

type recordingLedger struct {
	entries []ledger.Entry
	err     error
}

func (l *recordingLedger) Append(e ledger.Entry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, e)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 17, 9, 30, 0, 0, time.Local)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func newTestRouter(svc LicenseService, l Ledger, enableIssue bool, limiter *middleware.RateLimiter) http.Handler {
	logger := testLogger()
	return NewRouter(RouterConfig{
		License:     NewLicenseHandler(svc, l, fixedNow, logger),
		RateLimiter: limiter,
		EnableIssue: enableIssue,
		Logger:      logger,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewBuffer(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var out map[string]interface{}
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func TestLicenseHandler_GetMachine(t *testing.T) {
	svc := new(MockLicenseService)
	svc.On("MachineFingerprint", mock.Anything).Return(testMachine)
	svc.On("StoragePath", mock.Anything).Return("/tmp/" + testMachine + ".json")

	rr, body := doJSON(t, newTestRouter(svc, nil, false, nil), http.MethodGet, "/api/license/machine", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testMachine, body["machine_code"])
	assert.Equal(t, "/tmp/"+testMachine+".json", body["storage_path"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	svc.AssertExpectations(t)
}

func TestLicenseHandler_GetStatus(t *testing.T) {
	deadline := day(2026, 10, 27)
	tests := []struct {
		name   string
		report license.Report
		check  func(*testing.T, map[string]interface{})
	}{
		{
			name: "trial reports remaining days",
			report: license.Report{
				Status:      license.Trial,
				Fingerprint: testMachine,
				Deadline:    &deadline,
				CheckedAt:   day(2026, 10, 17),
			},
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "trial", body["status"])
				assert.Equal(t, true, body["licensed"])
				assert.Equal(t, "2026/10/27", body["deadline"])
				assert.Equal(t, float64(10), body["remaining_days"])
			},
		},
		{
			name: "unregistered",
			report: license.Report{
				Status:      license.Unregistered,
				Fingerprint: testMachine,
				CheckedAt:   day(2026, 10, 17),
			},
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "unregistered", body["status"])
				assert.Equal(t, false, body["licensed"])
				assert.NotContains(t, body, "remaining_days")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLicenseService)
			svc.On("RefreshStatus", mock.Anything).Return(tt.report)

			rr, body := doJSON(t, newTestRouter(svc, nil, false, nil), http.MethodGet, "/api/license/status", nil)

			assert.Equal(t, http.StatusOK, rr.Code)
			tt.check(t, body)
			svc.AssertExpectations(t)
		})
	}
}

func TestLicenseHandler_Activate(t *testing.T) {
	deadline := license.PermanentDeadline(time.Local)
	permanent := license.Report{Status: license.Permanent, Fingerprint: testMachine, Deadline: &deadline, CheckedAt: day(2026, 10, 17)}

	tests := []struct {
		name       string
		body       interface{}
		setupMock  func(*MockLicenseService)
		wantStatus int
		check      func(*testing.T, map[string]interface{})
	}{
		{
			name: "success returns the refreshed status",
			body: ActivateRequest{LicenseCode: "a|b|c|d"},
			setupMock: func(m *MockLicenseService) {
				m.On("Activate", mock.Anything, "a|b|c|d").Return(nil)
				m.On("RefreshStatus", mock.Anything).Return(permanent)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "permanent", body["status"])
				assert.Equal(t, "2122/12/31", body["deadline"])
			},
		},
		{
			name:       "missing code fails validation",
			body:       ActivateRequest{},
			setupMock:  func(*MockLicenseService) {},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
				require.Len(t, body["errors"], 1)
			},
		},
		{
			name:       "undecodable body",
			body:       "{not json",
			setupMock:  func(*MockLicenseService) {},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Bad Request", body["title"])
			},
		},
		{
			name: "fingerprint mismatch",
			body: ActivateRequest{LicenseCode: "a|b|c|d"},
			setupMock: func(m *MockLicenseService) {
				m.On("Activate", mock.Anything, "a|b|c|d").Return(&license.ActivationError{
					Kind:   license.KindFingerprintMismatch,
					Reason: "license is for another machine",
				})
			},
			wantStatus: http.StatusForbidden,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "FINGERPRINT_MISMATCH", body["error_code"])
				assert.Equal(t, "license is for another machine", body["detail"])
				assert.NotEmpty(t, body["trace_id"])
			},
		},
		{
			name: "expired license",
			body: ActivateRequest{LicenseCode: "a|b|c|d"},
			setupMock: func(m *MockLicenseService) {
				m.On("Activate", mock.Anything, "a|b|c|d").Return(&license.ActivationError{
					Kind:   license.KindAlreadyExpired,
					Reason: "license expired on 2026/10/14",
				})
			},
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ALREADY_EXPIRED", body["error_code"])
			},
		},
		{
			name: "storage failure",
			body: ActivateRequest{LicenseCode: "a|b|c|d"},
			setupMock: func(m *MockLicenseService) {
				m.On("Activate", mock.Anything, "a|b|c|d").Return(&license.ActivationError{
					Kind:   license.KindStorage,
					Reason: "cannot save license",
					Err:    errors.New("disk full"),
				})
			},
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "STORAGE_ERROR", body["error_code"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLicenseService)
			tt.setupMock(svc)

			rr, body := doJSON(t, newTestRouter(svc, nil, false, nil), http.MethodPost, "/api/license/activate", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			tt.check(t, body)
			svc.AssertExpectations(t)
		})
	}
}

func TestLicenseHandler_ActivateRateLimited(t *testing.T) {
	svc := new(MockLicenseService)
	svc.On("Activate", mock.Anything, mock.Anything).Return(&license.ActivationError{
		Kind: license.KindEnrollmentCodeInvalid, Reason: "enrollment code is invalid",
	}).Once()

	limiter := middleware.NewRateLimiter(0.001, 1, testLogger())
	router := newTestRouter(svc, nil, false, limiter)

	rr, _ := doJSON(t, router, http.MethodPost, "/api/license/activate", ActivateRequest{LicenseCode: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, body := doJSON(t, router, http.MethodPost, "/api/license/activate", ActivateRequest{LicenseCode: "x"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "/errors/rate-limit", body["type"])

	// Status reads are not limited.
	svc.On("RefreshStatus", mock.Anything).Return(license.Report{CheckedAt: fixedNow()})
	rr, _ = doJSON(t, router, http.MethodGet, "/api/license/status", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestLicenseHandler_IssueDisabled(t *testing.T) {
	svc := new(MockLicenseService)
	rr, body := doJSON(t, newTestRouter(svc, nil, false, nil), http.MethodPost, "/api/license/issue",
		IssueRequest{MachineCode: testMachine})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "/errors/not-found", body["type"])
	assert.Equal(t, "/api/license/issue", body["instance"])
	svc.AssertNotCalled(t, "IssueLicense", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLicenseHandler_Issue(t *testing.T) {
	payload := license.Payload{FingerprintEnc: "fp", LastSeenEnc: "ls", DeadlineEnc: "dl", EnrollmentCode: "ec"}

	t.Run("month preset for another machine", func(t *testing.T) {
		svc := new(MockLicenseService)
		svc.On("IssueLicense", mock.Anything, testMachine, day(2026, 11, 17), day(2026, 10, 17)).Return(payload)
		book := &recordingLedger{}

		rr, body := doJSON(t, newTestRouter(svc, book, true, nil), http.MethodPost, "/api/license/issue",
			IssueRequest{MachineCode: testMachine, Preset: "1m"})

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "fp|ls|dl|ec", body["license_code"])
		assert.Equal(t, testMachine, body["machine_code"])
		assert.Equal(t, "2026/11/17", body["deadline"])
		assert.Equal(t, "trial", body["kind"])
		require.Len(t, book.entries, 1)
		assert.Equal(t, "1m", book.entries[0].Preset)
		svc.AssertExpectations(t)
	})

	t.Run("self issue resolves the local fingerprint", func(t *testing.T) {
		svc := new(MockLicenseService)
		svc.On("IssueLicense", mock.Anything, "", license.PermanentDeadline(time.Local), day(2026, 10, 17)).Return(payload)
		svc.On("MachineFingerprint", mock.Anything).Return(testMachine)

		rr, body := doJSON(t, newTestRouter(svc, nil, true, nil), http.MethodPost, "/api/license/issue",
			IssueRequest{Preset: "permanent"})

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, testMachine, body["machine_code"])
		assert.Equal(t, "permanent", body["kind"])
		svc.AssertExpectations(t)
	})

	t.Run("custom deadline with explicit issue date", func(t *testing.T) {
		svc := new(MockLicenseService)
		svc.On("IssueLicense", mock.Anything, testMachine, day(2027, 1, 15), day(2026, 10, 1)).Return(payload)

		rr, _ := doJSON(t, newTestRouter(svc, nil, true, nil), http.MethodPost, "/api/license/issue",
			IssueRequest{MachineCode: testMachine, Preset: "custom", IssueDate: "2026/10/01", Deadline: "2027-01-15"})

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("ledger failure does not fail issuance", func(t *testing.T) {
		svc := new(MockLicenseService)
		svc.On("IssueLicense", mock.Anything, testMachine, mock.Anything, mock.Anything).Return(payload)

		rr, _ := doJSON(t, newTestRouter(svc, &recordingLedger{err: errors.New("locked")}, true, nil),
			http.MethodPost, "/api/license/issue", IssueRequest{MachineCode: testMachine})

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	rejects := []struct {
		name string
		req  IssueRequest
	}{
		{"short machine code", IssueRequest{MachineCode: "ABC"}},
		{"unknown preset", IssueRequest{MachineCode: testMachine, Preset: "2w"}},
		{"custom without deadline", IssueRequest{MachineCode: testMachine, Preset: "custom"}},
		{"unparseable deadline", IssueRequest{MachineCode: testMachine, Preset: "custom", Deadline: "next week"}},
		{"unparseable issue date", IssueRequest{MachineCode: testMachine, IssueDate: "17.10.2026"}},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLicenseService)

			rr, _ := doJSON(t, newTestRouter(svc, nil, true, nil), http.MethodPost, "/api/license/issue", tt.req)

			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			svc.AssertNotCalled(t, "IssueLicense", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRouter_Health(t *testing.T) {
	rr, body := doJSON(t, newTestRouter(new(MockLicenseService), nil, false, nil), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Metrics(t *testing.T) {
	logger := testLogger()
	router := NewRouter(RouterConfig{
		License: NewLicenseHandler(new(MockLicenseService), nil, fixedNow, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("license_activations_total 1\n"))
		}),
		Logger: logger,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "license_activations_total")
}
