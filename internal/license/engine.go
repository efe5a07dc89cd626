package license

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regsys/internal/codec"
	"regsys/internal/fingerprint"
	"regsys/internal/store"
)

// TracerName is the instrumentation name of license spans.
const TracerName = "regsys/license"

// Observer is told about every status determination.
type Observer interface {
	LicenseStatusChanged(ctx context.Context, report Report)
}

// Engine activates payloads and determines the license status of the local
// machine. It keeps no status between calls.
type Engine struct {
	codec   codec.Codec
	local   LocalFingerprint
	store   store.Store
	issuer  *Issuer
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	obsMu     sync.RWMutex
	observers []Observer

	// mu serializes access to the persisted slot within this process.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the source of "today".
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the logger. The component attribute is added by the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics enables metric recording.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithObserver registers an observer at construction time.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// NewEngine creates an engine for the machine identified by local, persisting
// through s.
func NewEngine(c codec.Codec, local LocalFingerprint, s store.Store, opts ...Option) *Engine {
	e := &Engine{
		codec: c,
		local: local,
		store: s,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(TracerName)
	}
	e.logger = e.logger.With(slog.String("component", "license_engine"))
	e.issuer = NewIssuer(c, local, e.clock)
	return e
}

// Subscribe registers an observer.
func (e *Engine) Subscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// MachineFingerprint returns the local machine fingerprint.
func (e *Engine) MachineFingerprint(ctx context.Context) string {
	return e.local.Fingerprint(ctx)
}

// StoragePath describes where the local license is persisted.
func (e *Engine) StoragePath(ctx context.Context) string {
	return e.store.Location(e.local.Fingerprint(ctx))
}

// IssueLicense builds a payload for target, see Issuer.Issue. No disk I/O
// takes place.
func (e *Engine) IssueLicense(ctx context.Context, target string, deadline, issueDate time.Time) Payload {
	ctx, span := e.tracer.Start(ctx, "license.Issue")
	defer span.End()
	defer e.metrics.recordDuration(ctx, "issue", time.Now())

	fp := strings.TrimSpace(target)
	selfIssued := fp == ""
	if selfIssued {
		fp = e.local.Fingerprint(ctx)
	}

	payload := e.issuer.Issue(ctx, fp, deadline, issueDate)
	e.metrics.recordIssued(ctx, deadline)

	span.SetAttributes(attribute.String("license.kind", deadlineKind(deadline)))
	e.logInfo(ctx, "issue", "license issued",
		slog.String("fingerprint", fingerprint.Mask(fp)),
		slog.Bool("self_issued", selfIssued),
		slog.String("deadline", FormatDate(deadline)),
		slog.String("kind", deadlineKind(deadline)))
	return payload
}

// Activate validates raw against the local machine and persists it. The
// existing license is left untouched unless every check passes.
func (e *Engine) Activate(ctx context.Context, raw string) (err error) {
	ctx, span := e.tracer.Start(ctx, "license.Activate")
	defer span.End()
	defer e.metrics.recordDuration(ctx, "activate", time.Now())
	defer func() {
		e.metrics.recordActivation(ctx, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.activate(ctx, raw); err != nil {
		e.logWarn(ctx, "activate", "activation rejected",
			slog.String("kind", string(KindOf(err))),
			slog.String("error", err.Error()))
		return err
	}

	e.logInfo(ctx, "activate", "license activated")
	e.notify(ctx, e.refreshLocked(ctx))
	return nil
}

func (e *Engine) activate(ctx context.Context, raw string) error {
	payload, err := ParsePayload(raw)
	if err != nil {
		return err
	}

	fp, err := e.codec.Decrypt(payload.FingerprintEnc)
	if err != nil {
		return newActivationError(KindInvalidFingerprintField, "machine code field cannot be decoded", err)
	}

	local := e.local.Fingerprint(ctx)
	if fp != local {
		return newActivationError(KindFingerprintMismatch, "machine code does not match this machine", nil)
	}

	if EnrollmentCode(e.codec, fp) != payload.EnrollmentCode {
		return newActivationError(KindEnrollmentCodeInvalid, "enrollment code verification failed", nil)
	}

	today := startOfDay(e.clock())

	deadline, err := e.decryptDate(payload.DeadlineEnc, today.Location())
	if err != nil {
		return newActivationError(KindInvalidDeadlineField, "deadline field is not a valid date", err)
	}

	if deadline.Before(today) {
		return newActivationError(KindAlreadyExpired,
			fmt.Sprintf("license expired on %s", FormatDate(deadline)), nil)
	}

	payload.LastSeenEnc = e.codec.Encrypt(FormatDate(today))
	if err := e.persist(local, payload); err != nil {
		return newActivationError(KindStorage, "cannot save license", err)
	}
	return nil
}

// RefreshStatus re-reads the persisted license and classifies it. Read and
// decode failures are reported as Unregistered, never as errors.
func (e *Engine) RefreshStatus(ctx context.Context) Report {
	ctx, span := e.tracer.Start(ctx, "license.RefreshStatus")
	defer span.End()
	defer e.metrics.recordDuration(ctx, "status", time.Now())

	e.mu.Lock()
	report := e.refreshLocked(ctx)
	e.mu.Unlock()

	span.SetAttributes(attribute.String("license.status", report.Status.String()))
	e.notify(ctx, report)
	return report
}

func (e *Engine) refreshLocked(ctx context.Context) Report {
	report := e.determine(ctx)
	e.metrics.recordStatus(ctx, report.Status)
	e.logDebug(ctx, "status", "status determined",
		slog.String("status", report.Status.String()),
		slog.String("fingerprint", fingerprint.Mask(report.Fingerprint)))
	return report
}

func (e *Engine) determine(ctx context.Context) Report {
	now := e.clock()
	today := startOfDay(now)
	local := e.local.Fingerprint(ctx)
	report := Report{Status: Unregistered, Fingerprint: local, CheckedAt: now}

	exists, err := e.store.Exists(local)
	if err != nil {
		e.logWarn(ctx, "status", "license slot unreadable", slog.String("error", err.Error()))
		return report
	}
	if !exists {
		return report
	}

	data, err := e.store.Read(local)
	if err != nil {
		e.logWarn(ctx, "status", "license slot unreadable", slog.String("error", err.Error()))
		return report
	}
	payload, err := unmarshalFile(data)
	if err != nil || !payload.Complete() {
		e.logDebug(ctx, "status", "stored license is corrupt")
		return report
	}

	fp, err := e.codec.Decrypt(payload.FingerprintEnc)
	if err != nil || fp != local {
		e.logDebug(ctx, "status", "stored license belongs to another machine")
		return report
	}

	lastSeen, err := e.decryptDate(payload.LastSeenEnc, today.Location())
	if err != nil {
		return report
	}
	deadline, err := e.decryptDate(payload.DeadlineEnc, today.Location())
	if err != nil {
		return report
	}
	report.LastSeen = &lastSeen
	report.Deadline = &deadline

	if today.Before(lastSeen) {
		e.metrics.recordRollback(ctx)
		e.logWarn(ctx, "status_rollback", "clock is behind the last seen date",
			slog.String("last_seen", FormatDate(lastSeen)),
			slog.String("today", FormatDate(today)))
		return report
	}

	payload.LastSeenEnc = e.codec.Encrypt(FormatDate(today))
	if err := e.persist(local, payload); err != nil {
		e.logWarn(ctx, "status", "cannot re-stamp last seen date", slog.String("error", err.Error()))
	}

	if !today.Before(deadline) {
		report.Status = Expired
		return report
	}

	if EnrollmentCode(e.codec, fp) != payload.EnrollmentCode {
		e.logWarn(ctx, "status", "enrollment code mismatch")
		return report
	}

	if IsPermanent(deadline) {
		report.Status = Permanent
	} else {
		report.Status = Trial
	}
	return report
}

func (e *Engine) decryptDate(enc string, loc *time.Location) (time.Time, error) {
	plain, err := e.codec.Decrypt(enc)
	if err != nil {
		return time.Time{}, err
	}
	return ParseDate(plain, loc)
}

func (e *Engine) persist(fp string, p Payload) error {
	data, err := marshalFile(p)
	if err != nil {
		return err
	}
	if err := e.store.Write(fp, data); err != nil {
		return fmt.Errorf("write %s: %w", e.store.Location(fp), err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, report Report) {
	e.obsMu.RLock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.obsMu.RUnlock()

	for _, o := range observers {
		o.LicenseStatusChanged(ctx, report)
	}
}
