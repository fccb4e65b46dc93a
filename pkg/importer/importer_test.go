package importer_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"it-asset-manager-api/internal/testutil"
	"it-asset-manager-api/pkg/importer"
	"it-asset-manager-api/pkg/models"
	"it-asset-manager-api/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

// workbook builds an .xlsx with one sheet; the first row is the header
func workbook(t *testing.T, sheetName string, rows [][]string) *bytes.Buffer {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return &buf
}

func TestImportExcelInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLStore(t, nil)

	rows := [][]string{
		{"Serial Number", "Name", "Purchase Date", "Status"},
		{"SN-1", "Laptop", "2024-03-05", "Em Uso"},
		{"", "", "", ""},
		{"SN-2", "Monitor", "05/03/2024", ""},
	}

	sum, err := importer.ImportExcel(ctx, st, workbook(t, "Inventory", rows), importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.Errors)
	require.Len(t, sum.Sheets, 1)
	assert.Equal(t, "Inventory", sum.Sheets[0].Name)

	all, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	bySerial := map[string]models.Asset{}
	for _, a := range all {
		bySerial[a.SerialNumber] = a
	}
	assert.Equal(t, models.StatusInUse, bySerial["SN-1"].Status)
	assert.Equal(t, models.StatusInStock, bySerial["SN-2"].Status)
	require.NotNil(t, bySerial["SN-2"].PurchaseDate)
	assert.Equal(t, "2024-03-05", bySerial["SN-2"].PurchaseDate.Format("2006-01-02"))

	rows[1][1] = "Laptop Pro"
	sum, err = importer.ImportExcel(ctx, st, workbook(t, "Inventory", rows), importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 2, sum.Updated)

	got, err := st.Get(ctx, bySerial["SN-1"].ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop Pro", got.Name)

	all, err = st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportExcelAliasesAndSerialDates(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewGormStore(t, nil)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Planilha")
	require.NoError(t, err)
	header := sheet.AddRow()
	for _, h := range []string{"s/n", "Nome", "Data de Compra"} {
		header.AddCell().SetString(h)
	}
	row := sheet.AddRow()
	row.AddCell().SetString("SN-77")
	row.AddCell().SetString("Switch")
	row.AddCell().SetFloat(45356)
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	sum, err := importer.ImportExcel(ctx, st, &buf, importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)

	all, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].PurchaseDate)
	assert.Equal(t, "2024-03-05", all[0].PurchaseDate.Format("2006-01-02"))
}

func TestImportExcelDryRun(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLStore(t, nil)

	rows := [][]string{
		{"Serial", "Name"},
		{"SN-1", "Laptop"},
		{"SN-1", "Laptop again"},
	}
	sum, err := importer.ImportExcel(ctx, st, workbook(t, "Sheet1", rows), importer.ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Updated)

	all, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportExcelRowErrors(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLStore(t, nil)

	rows := [][]string{
		{"Serial Number", "Name", "Purchase Date", "Status"},
		{"SN-1", "", "", ""},
		{"SN-2", "Phone", "next tuesday", ""},
		{"SN-3", "Tablet", "", "Perdido"},
		{"SN-4", "Dock", "", ""},
	}
	sum, err := importer.ImportExcel(ctx, st, workbook(t, "Sheet1", rows), importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 3, sum.Errors)
	require.Len(t, sum.Sheets[0].Samples, 3)
	assert.Equal(t, 2, sum.Sheets[0].Samples[0].Row)
	assert.Contains(t, sum.Sheets[0].Samples[0].Message, "name")
	assert.Contains(t, sum.Sheets[0].Samples[1].Message, "next tuesday")
}

func TestImportExcelStopsAfterMaxErrors(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLStore(t, nil)

	rows := [][]string{{"Serial Number", "Name"}}
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{"", "nameless serial"})
	}
	rows = append(rows, []string{"SN-OK", "Never reached"})

	sum, err := importer.ImportExcel(ctx, st, workbook(t, "Sheet1", rows), importer.ImportOptions{MaxErrors: 2})
	require.ErrorIs(t, err, importer.ErrTooManyErrors)
	assert.Contains(t, err.Error(), "too many errors (3)")
	assert.Equal(t, 3, sum.Errors)
	assert.Equal(t, 0, sum.Inserted)
}

func TestImportExcelMissingHeader(t *testing.T) {
	st := testutil.NewSQLStore(t, nil)
	rows := [][]string{{"Model", "Vendor"}, {"X1", "Lenovo"}}

	sum, err := importer.ImportExcel(context.Background(), st, workbook(t, "Sheet1", rows), importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 0, sum.Inserted)
}

func TestImportExcelRejectsGarbage(t *testing.T) {
	st := testutil.NewSQLStore(t, nil)
	_, err := importer.ImportExcel(context.Background(), st, bytes.NewBufferString("not a workbook"), importer.ImportOptions{})
	assert.ErrorIs(t, err, importer.ErrInvalidWorkbook)
}

// failingCreate wraps a real store and fails every Create with err
type failingCreate struct {
	store.Store
	err func(serial string) error
}

func (f failingCreate) Create(ctx context.Context, req models.CreateAssetRequest) (models.Asset, error) {
	return models.Asset{}, f.err(req.SerialNumber)
}

func TestImportExcelConflictSampleHidesDriverText(t *testing.T) {
	st := failingCreate{
		Store: testutil.NewSQLStore(t, nil),
		err: func(serial string) error {
			return store.Conflict("create", serial, errors.New("UNIQUE constraint failed: assets.serial_number"))
		},
	}
	rows := [][]string{{"Serial Number", "Name"}, {"SN-1", "Laptop"}}

	sum, err := importer.ImportExcel(context.Background(), st, workbook(t, "Sheet1", rows), importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	require.Len(t, sum.Sheets[0].Samples, 1)
	msg := sum.Sheets[0].Samples[0].Message
	assert.Equal(t, "an asset with this serial number already exists", msg)
	assert.NotContains(t, msg, "UNIQUE")
}

func TestImportExcelAbortsOnInternalStoreError(t *testing.T) {
	st := failingCreate{
		Store: testutil.NewSQLStore(t, nil),
		err: func(string) error {
			return store.Internal("create", errors.New("disk I/O error"))
		},
	}
	rows := [][]string{{"Serial Number", "Name"}, {"SN-1", "Laptop"}, {"SN-2", "Monitor"}}

	sum, err := importer.ImportExcel(context.Background(), st, workbook(t, "Sheet1", rows), importer.ImportOptions{})
	require.Error(t, err)
	assert.Equal(t, store.KindInternal, store.KindOf(err))
	assert.NotErrorIs(t, err, importer.ErrTooManyErrors)
	assert.Equal(t, 0, sum.Errors, "internal failures are not row errors")
	assert.Equal(t, 0, sum.Inserted)
}

func TestImportExcelCustomMapping(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLStore(t, nil)

	path := filepath.Join(t.TempDir(), "mapping.yaml")
	mapping := `
version: 1
default_status: Manutenção
sheets:
  Lab:
    columns:
      serialNumber: ["Tag"]
      name: ["Device"]
`
	require.NoError(t, os.WriteFile(path, []byte(mapping), 0o600))

	rows := [][]string{{"Tag", "Device"}, {"LAB-1", "Oscilloscope"}}
	sum, err := importer.ImportExcel(ctx, st, workbook(t, "Lab", rows), importer.ImportOptions{MappingPath: path})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)

	// sheets without an entry are ignored when there is no wildcard
	sum, err = importer.ImportExcel(ctx, st, workbook(t, "Other", rows), importer.ImportOptions{MappingPath: path})
	require.NoError(t, err)
	assert.Empty(t, sum.Sheets)

	all, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusMaintenance, all[0].Status)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewSQLStore(t, nil)

	pd := mustDate(t, "2023-09-15")
	for _, req := range []models.CreateAssetRequest{
		{SerialNumber: "SN-A", Name: "Laptop", PurchaseDate: &pd, Status: models.StatusInUse},
		{SerialNumber: "SN-B", Name: "Printer", Status: models.StatusDecommissioned},
	} {
		_, err := src.Create(ctx, req)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, importer.ExportExcel(ctx, src, &buf))

	wb, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, importer.ExportSheet, wb.Sheets[0].Name)
	assert.Equal(t, 3, wb.Sheets[0].MaxRow)

	dst := testutil.NewGormStore(t, nil)
	sum, err := importer.ImportExcel(ctx, dst, bytes.NewReader(buf.Bytes()), importer.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 0, sum.Errors)

	want, err := src.List(ctx)
	require.NoError(t, err)
	got, err := dst.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	index := map[string]models.Asset{}
	for _, a := range got {
		index[a.SerialNumber] = a
	}
	for _, w := range want {
		g, ok := index[w.SerialNumber]
		require.True(t, ok, w.SerialNumber)
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.Status, g.Status)
		if w.PurchaseDate == nil {
			assert.Nil(t, g.PurchaseDate)
		} else {
			require.NotNil(t, g.PurchaseDate)
			assert.True(t, w.PurchaseDate.Equal(*g.PurchaseDate))
		}
	}
}

func TestParseMapping(t *testing.T) {
	m, err := importer.LoadMapping("")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInStock, m.DefaultStatus)

	sc, ok := m.Sheet("anything")
	require.True(t, ok)
	assert.Equal(t, []string{"Serial Number", "Name", "Purchase Date", "Status"}, sc.Headers())

	_, err = importer.ParseMapping([]byte("version: 1\n"))
	assert.Error(t, err)

	_, err = importer.ParseMapping([]byte("sheets:\n  X:\n    columns:\n      name: [Name]\n"))
	assert.Error(t, err, "serial number column is mandatory")

	_, err = importer.ParseMapping([]byte("sheets:\n  X:\n    columns:\n      serialNumber: [S]\n      name: [N]\n      color: [C]\n"))
	assert.Error(t, err)

	_, err = importer.ParseMapping([]byte("default_status: Lost\nsheets:\n  X:\n    columns:\n      serialNumber: [S]\n      name: [N]\n"))
	assert.Error(t, err)

	_, err = importer.LoadMapping(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
