package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"it-asset-manager-api/internal/testutil"
	"it-asset-manager-api/pkg/importer"
	"it-asset-manager-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func xlsxBytes(t *testing.T, rows [][]string) []byte {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/imports/excel", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type importResponse struct {
	Error   string                 `json:"error"`
	Details string                 `json:"details"`
	Data    importer.ImportSummary `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) importResponse {
	t.Helper()
	var resp importResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestImportsHandler_UploadExcel(t *testing.T) {
	sheet := [][]string{
		{"Serial Number", "Name", "Status"},
		{"SN-1", "Laptop", "Em Uso"},
		{"SN-2", "Monitor", ""},
	}

	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		handler := NewImportsHandler(testutil.NewSQLStore(t, nil))
		req := httptest.NewRequest("POST", "/imports/excel", nil)
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "content-type must be multipart/form-data")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		handler := NewImportsHandler(testutil.NewSQLStore(t, nil))
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "", nil, map[string]string{"dry_run": "true"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		handler := NewImportsHandler(testutil.NewSQLStore(t, nil))
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "assets.csv", []byte("a,b"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only .xlsx files are accepted")
	})

	t.Run("Rejects invalid max_errors", func(t *testing.T) {
		handler := NewImportsHandler(testutil.NewSQLStore(t, nil))
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "a.xlsx", xlsxBytes(t, sheet), map[string]string{"max_errors": "lots"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "max_errors")
	})

	t.Run("Dry run writes nothing", func(t *testing.T) {
		st := testutil.NewSQLStore(t, nil)
		handler := NewImportsHandler(st)
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "a.xlsx", xlsxBytes(t, sheet), map[string]string{"dry_run": "true"}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode(t, w)
		assert.True(t, resp.Data.DryRun)
		assert.Equal(t, 2, resp.Data.Inserted)

		all, err := st.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Imports and then updates", func(t *testing.T) {
		st := testutil.NewGormStore(t, nil)
		handler := NewImportsHandler(st)

		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "Assets.XLSX", xlsxBytes(t, sheet), nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 2, decode(t, w).Data.Inserted)

		w = httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "Assets.xlsx", xlsxBytes(t, sheet), nil))
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, 0, resp.Data.Inserted)
		assert.Equal(t, 2, resp.Data.Updated)
	})

	t.Run("Too many errors is 422 with partial summary", func(t *testing.T) {
		handler := NewImportsHandler(testutil.NewSQLStore(t, nil))
		bad := [][]string{
			{"Serial Number", "Name"},
			{"SN-1", "Fine"},
			{"", "no serial"},
			{"", "no serial"},
		}
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "a.xlsx", xlsxBytes(t, bad), map[string]string{"max_errors": "1"}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "IMPORT_FAILED", resp.Error)
		assert.Equal(t, 1, resp.Data.Inserted)
		assert.Equal(t, 2, resp.Data.Errors)
	})
}

func TestImportsHandler_StoreFailure(t *testing.T) {
	sheet := [][]string{
		{"Serial Number", "Name"},
		{"SN-1", "Laptop"},
	}
	closedStore := func(t *testing.T) *ImportsHandler {
		st := testutil.NewSQLStore(t, nil)
		require.NoError(t, st.Close())
		return NewImportsHandler(st)
	}

	t.Run("Internal failure is 500 without driver text", func(t *testing.T) {
		handler := closedStore(t)
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "a.xlsx", xlsxBytes(t, sheet), nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "internal server error", resp.Error)
		assert.Empty(t, resp.Details)
		assert.NotContains(t, w.Body.String(), "database is closed")
		assert.NotContains(t, w.Body.String(), "sql:")
	})

	t.Run("Details only when exposed", func(t *testing.T) {
		handler := closedStore(t)
		handler.ExposeDetails = true
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "a.xlsx", xlsxBytes(t, sheet), nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, decode(t, w).Details, "database is closed")
	})

	t.Run("Unreadable workbook is 422", func(t *testing.T) {
		handler := NewImportsHandler(testutil.NewSQLStore(t, nil))
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, "a.xlsx", []byte("not a zip"), nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "IMPORT_FAILED", decode(t, w).Error)
	})

	t.Run("Export failure is 500", func(t *testing.T) {
		handler := closedStore(t)
		w := httptest.NewRecorder()
		handler.ExportExcel(w, httptest.NewRequest("GET", "/exports/excel", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, w.Header().Get("Content-Disposition"))
		assert.NotContains(t, w.Body.String(), "database is closed")
	})
}

func TestImportsHandler_MappingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	mapping := "version: 1\nsheets:\n  \"*\":\n    columns:\n      serialNumber: [Tag]\n      name: [Device]\n"
	require.NoError(t, os.WriteFile(path, []byte(mapping), 0o600))

	st := testutil.NewSQLStore(t, nil)
	handler := NewImportsHandler(st)
	handler.MappingPath = path

	rows := [][]string{{"Tag", "Device"}, {"LAB-1", "Oscilloscope"}}
	w := httptest.NewRecorder()
	handler.UploadExcel(w, uploadRequest(t, "lab.xlsx", xlsxBytes(t, rows), nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode(t, w).Data.Inserted)
}

func TestImportsHandler_ExportExcel(t *testing.T) {
	st := testutil.NewSQLStore(t, nil)
	_, err := st.Create(context.Background(), models.CreateAssetRequest{SerialNumber: "SN-E", Name: "Exported"})
	require.NoError(t, err)

	handler := NewImportsHandler(st)
	w := httptest.NewRecorder()
	handler.ExportExcel(w, httptest.NewRequest("GET", "/exports/excel", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "assets.xlsx")

	wb, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	cell, err := wb.Sheets[0].Cell(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "SN-E", cell.String())
}
