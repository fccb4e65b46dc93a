// Package importer loads assets from .xlsx workbooks into a store and writes
// the inventory back out as a workbook.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"it-asset-manager-api/pkg/models"
	"it-asset-manager-api/pkg/store"

	"github.com/tealeg/xlsx/v3"
)

const (
	DefaultMaxErrors = 50
	maxSamples       = 20
)

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	MappingPath string // empty uses the embedded default mapping
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

var (
	// ErrTooManyErrors stops an import once the row error budget is spent
	ErrTooManyErrors = errors.New("too many errors")
	// ErrInvalidWorkbook reports an upload that is not a readable .xlsx file
	ErrInvalidWorkbook = errors.New("invalid Excel file")
)

// Row sample messages for store outcomes. Driver text never reaches a sample.
const (
	msgDuplicateSerial = "an asset with this serial number already exists"
	msgAssetGone       = "asset no longer exists"
)

// ImportExcel reads a workbook from r and upserts every mapped row into st,
// keyed by serial number.
func ImportExcel(ctx context.Context, st store.Store, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}

	mapping, err := LoadMapping(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs random access, so the whole upload is buffered
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}

	existing, err := st.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load existing assets: %w", err)
	}
	known := make(map[string]int64, len(existing))
	for _, a := range existing {
		known[a.SerialNumber] = a.ID
	}

	imp := &sheetImporter{
		st:            st,
		opts:          opts,
		known:         known,
		date1904:      xlFile.Date1904,
		defaultStatus: mapping.DefaultStatus,
	}

	for _, sheet := range xlFile.Sheets {
		cfg, ok := mapping.Sheet(sheet.Name)
		if !ok {
			continue
		}

		sheetSummary, err := imp.processSheet(ctx, sheet, cfg, summary.Errors)
		summary.Sheets = append(summary.Sheets, sheetSummary)
		summary.Inserted += sheetSummary.Inserted
		summary.Updated += sheetSummary.Updated
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if errors.Is(err, ErrTooManyErrors) {
			return summary, fmt.Errorf("%w (%d), stopping import", ErrTooManyErrors, summary.Errors)
		}
		if err != nil {
			return summary, err
		}
	}

	return summary, nil
}

type sheetImporter struct {
	st            store.Store
	opts          ImportOptions
	known         map[string]int64 // serial -> id; 0 marks a row a dry run would insert
	date1904      bool
	defaultStatus models.Status
}

// rowValues holds the trimmed text of each mapped field in one row
type rowValues map[string]string

func (imp *sheetImporter) processSheet(ctx context.Context, sheet *xlsx.Sheet, cfg SheetConfig, priorErrors int) (SheetSummary, error) {
	summary := SheetSummary{Name: sheet.Name}
	if sheet.MaxRow == 0 {
		return summary, nil
	}

	fail := func(row int, msg string) error {
		summary.Errors++
		if len(summary.Samples) < maxSamples {
			summary.Samples = append(summary.Samples, RowError{Sheet: sheet.Name, Row: row, Message: msg})
		}
		if priorErrors+summary.Errors > imp.opts.MaxErrors {
			return ErrTooManyErrors
		}
		return nil
	}

	columns := make(map[int]string)
	for col := 0; col < sheet.MaxCol; col++ {
		cell, err := sheet.Cell(0, col)
		if err != nil {
			continue
		}
		if field, ok := cfg.resolve(cell.String()); ok {
			columns[col] = field
		}
	}
	if !hasField(columns, FieldSerialNumber) || !hasField(columns, FieldName) {
		return summary, fail(1, "header row must contain serial number and name columns")
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		values := make(rowValues)
		dates := make(map[string]*xlsx.Cell)
		for col, field := range columns {
			cell, err := sheet.Cell(rowIdx, col)
			if err != nil {
				continue
			}
			v := strings.TrimSpace(cell.String())
			if v == "" {
				continue
			}
			values[field] = v
			if field == FieldPurchaseDate {
				dates[field] = cell
			}
		}

		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		inserted, err := imp.importRow(ctx, values, dates[FieldPurchaseDate])
		if err != nil {
			msg, ok := rowMessage(err)
			if !ok {
				return summary, fmt.Errorf("row %d: %w", rowIdx+1, err)
			}
			if stop := fail(rowIdx+1, msg); stop != nil {
				return summary, stop
			}
			continue
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
	}

	return summary, nil
}

// importRow creates or updates the asset described by values and reports
// whether it was an insert.
func (imp *sheetImporter) importRow(ctx context.Context, values rowValues, dateCell *xlsx.Cell) (bool, error) {
	var purchaseDate *time.Time
	if dateCell != nil {
		t, err := parseDate(dateCell, imp.date1904)
		if err != nil {
			return false, err
		}
		purchaseDate = &t
	}

	serial := values[FieldSerialNumber]
	id, exists := imp.known[serial]

	if !exists {
		req := models.CreateAssetRequest{
			SerialNumber: serial,
			Name:         values[FieldName],
			PurchaseDate: purchaseDate,
			Status:       models.Status(values[FieldStatus]),
		}
		if req.Status == "" {
			req.Status = imp.defaultStatus
		}
		if imp.opts.DryRun {
			if err := req.Validate(); err != nil {
				return false, err
			}
			imp.known[req.SerialNumber] = 0
			return true, nil
		}
		created, err := imp.st.Create(ctx, req)
		if err != nil {
			return false, err
		}
		imp.known[created.SerialNumber] = created.ID
		return true, nil
	}

	// Blank cells leave the stored value untouched
	var req models.UpdateAssetRequest
	if v, ok := values[FieldName]; ok {
		req.Name = &v
	}
	if v, ok := values[FieldStatus]; ok {
		s := models.Status(v)
		req.Status = &s
	}
	if purchaseDate != nil {
		req.PurchaseDate = models.NewNullableTime(purchaseDate)
	}

	if imp.opts.DryRun || id == 0 {
		return false, req.Validate()
	}
	_, err := imp.st.Update(ctx, id, req)
	return false, err
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseDate accepts Excel serial dates and common textual layouts
func parseDate(cell *xlsx.Cell, date1904 bool) (time.Time, error) {
	raw := strings.TrimSpace(cell.Value)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return models.NormalizeTime(xlsx.TimeFromExcelTime(f, date1904)), nil
	}

	text := strings.TrimSpace(cell.String())
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return models.NormalizeTime(t), nil
		}
	}
	return time.Time{}, cellError(fmt.Sprintf("invalid purchase date %q", text))
}

// cellError is a row problem found while reading cells, before any store call
type cellError string

func (e cellError) Error() string { return string(e) }

// rowMessage turns a row failure into the text recorded in the summary. It
// reports false for internal store failures, which abort the import.
func rowMessage(err error) (string, bool) {
	var ce cellError
	if errors.As(err, &ce) {
		return ce.Error(), true
	}
	switch store.KindOf(err) {
	case store.KindValidation:
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return ve.Error(), true
		}
		return "invalid row", true
	case store.KindConflict:
		return msgDuplicateSerial, true
	case store.KindNotFound:
		return msgAssetGone, true
	default:
		return "", false
	}
}

func hasField(columns map[int]string, field string) bool {
	for _, f := range columns {
		if f == field {
			return true
		}
	}
	return false
}
