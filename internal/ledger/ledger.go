// Package ledger records issued licenses in an xlsx workbook kept by the
// vendor.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"regsys/internal/license"
)

// DefaultSheet is used when no sheet name is configured.
const DefaultSheet = "Licenses"

var header = []interface{}{"Issued At", "Machine Code", "Preset", "Issue Date", "Deadline", "Kind", "License Code"}

// Entry is one issued license.
type Entry struct {
	IssuedAt    time.Time `json:"issued_at"`
	Fingerprint string    `json:"machine_code"`
	Preset      string    `json:"preset"`
	IssueDate   string    `json:"issue_date"`
	Deadline    string    `json:"deadline"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"license_code"`
}

func (e Entry) row() []interface{} {
	return []interface{}{
		e.IssuedAt.Format(time.RFC3339),
		e.Fingerprint,
		e.Preset,
		e.IssueDate,
		e.Deadline,
		e.Kind,
		e.Payload,
	}
}

// Workbook appends entries to one sheet of an xlsx file. The file is opened
// and saved on every Append.
type Workbook struct {
	path  string
	sheet string
	mu    sync.Mutex
}

// Open returns a ledger writing to path. The file is created on first Append.
func Open(path, sheet string) *Workbook {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Workbook{path: path, sheet: sheet}
}

// Path returns the workbook location.
func (w *Workbook) Path() string {
	return w.path
}

// Append adds e below the last used row.
func (w *Workbook) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("read ledger sheet %q: %w", w.sheet, err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	row := e.row()
	if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save ledger %s: %w", w.path, err)
	}
	return nil
}

// Entries reads back every recorded entry, oldest first. Rows whose issued-at
// cell does not parse are left out and reported in the returned error
// alongside the entries that did.
func (w *Workbook) Entries() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", w.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read ledger sheet %q: %w", w.sheet, err)
	}

	var (
		entries []Entry
		errs    []error
	)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		issuedAt, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			errs = append(errs, fmt.Errorf("ledger row %d: issued at %q: %w", i+1, row[0], err))
			continue
		}
		entries = append(entries, Entry{
			IssuedAt:    issuedAt,
			Fingerprint: row[1],
			Preset:      row[2],
			IssueDate:   row[3],
			Deadline:    row[4],
			Kind:        row[5],
			Payload:     row[6],
		})
	}
	return entries, errors.Join(errs...)
}

// open loads the workbook or creates it with a header row.
func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(w.sheet); idx == -1 {
			if _, err := f.NewSheet(w.sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("create ledger sheet: %w", err)
			}
			if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open ledger %s: %w", w.path, err)
	}

	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// NewEntry describes one issuance.
func NewEntry(issuedAt time.Time, fp string, preset license.Preset, issueDate, deadline time.Time, payload license.Payload) Entry {
	kind := "trial"
	if license.IsPermanent(deadline) {
		kind = "permanent"
	}
	return Entry{
		IssuedAt:    issuedAt,
		Fingerprint: fp,
		Preset:      string(preset),
		IssueDate:   license.FormatDate(issueDate),
		Deadline:    license.FormatDate(deadline),
		Kind:        kind,
		Payload:     payload.ToCompactString(),
	}
}
