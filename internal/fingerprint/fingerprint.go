// Package fingerprint derives the fixed-length machine fingerprint that binds a
// license to one installation.
package fingerprint

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Length is the number of characters in every machine fingerprint.
const Length = 24

// Placeholders used when the hardware query fails. Licensing must never be
// blocked by fingerprinting, so uniqueness is traded for availability.
const (
	PlaceholderDiskID = "DISK00000000"
	PlaceholderCPUID  = "CPU00000000000000"
)

// Derive concatenates the two identifiers, right-pads the result with '0' to
// Length characters and truncates it to exactly Length characters.
func Derive(diskID, cpuID string) string {
	joined := diskID + cpuID
	if len(joined) < Length {
		joined += strings.Repeat("0", Length-len(joined))
	}
	return joined[:Length]
}

// Source supplies the two opaque hardware identifiers.
type Source interface {
	DiskID(ctx context.Context) (string, error)
	CPUID(ctx context.Context) (string, error)
}

// Components holds the identifiers a fingerprint was derived from.
type Components struct {
	DiskID      string    `json:"disk_id"`
	CPUID       string    `json:"cpu_id"`
	DiskFailed  bool      `json:"disk_placeholder"`
	CPUFailed   bool      `json:"cpu_placeholder"`
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Provider resolves the local machine fingerprint once per process and caches
// it. Hardware does not change under a running process and the fingerprint
// doubles as a storage key, so it must stay stable across calls.
type Provider struct {
	source Source
	logger *slog.Logger

	mu     sync.Mutex
	cached *Components
}

// NewProvider creates a provider backed by source.
func NewProvider(source Source, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		source: source,
		logger: logger.With(slog.String("component", "fingerprint")),
	}
}

// Fingerprint returns the local machine fingerprint. It never fails.
func (p *Provider) Fingerprint(ctx context.Context) string {
	return p.Components(ctx).Fingerprint
}

// Components returns the cached derivation details, resolving them on first use.
func (p *Provider) Components(ctx context.Context) Components {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached
	}

	start := time.Now()
	c := Components{GeneratedAt: start}

	disk, err := p.source.DiskID(ctx)
	if err != nil || strings.TrimSpace(disk) == "" {
		disk = PlaceholderDiskID
		c.DiskFailed = true
		p.logger.WarnContext(ctx, "Failed to read disk identifier, using placeholder",
			slog.Any("error", err),
		)
	}

	cpu, err := p.source.CPUID(ctx)
	if err != nil || strings.TrimSpace(cpu) == "" {
		cpu = PlaceholderCPUID
		c.CPUFailed = true
		p.logger.WarnContext(ctx, "Failed to read processor identifier, using placeholder",
			slog.Any("error", err),
		)
	}

	c.DiskID = strings.TrimSpace(disk)
	c.CPUID = strings.TrimSpace(cpu)
	c.Fingerprint = Derive(c.DiskID, c.CPUID)
	p.cached = &c

	p.logger.DebugContext(ctx, "Machine fingerprint derived",
		slog.String("fingerprint", Mask(c.Fingerprint)),
		slog.Bool("disk_placeholder", c.DiskFailed),
		slog.Bool("cpu_placeholder", c.CPUFailed),
		slog.Duration("generation_time", time.Since(start)),
	)

	return c
}

// Mask hides the middle of a fingerprint for log output.
func Mask(fp string) string {
	if len(fp) <= 8 {
		return "****"
	}
	return fp[:4] + "****" + fp[len(fp)-4:]
}
