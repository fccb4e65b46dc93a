package importer

import (
	"context"
	"fmt"
	"io"

	"it-asset-manager-api/pkg/store"

	"github.com/tealeg/xlsx/v3"
)

// ExportSheet is the sheet name written by ExportExcel
const ExportSheet = "Assets"

// ExportExcel writes every asset in st to w as a workbook that ImportExcel
// accepts with the default mapping.
func ExportExcel(ctx context.Context, st store.Store, w io.Writer) error {
	mapping, err := LoadMapping("")
	if err != nil {
		return err
	}
	cfg, _ := mapping.Sheet(ExportSheet)

	assets, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list assets: %w", err)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(ExportSheet)
	if err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range cfg.Headers() {
		header.AddCell().SetString(h)
	}

	for _, a := range assets {
		row := sheet.AddRow()
		row.AddCell().SetString(a.SerialNumber)
		row.AddCell().SetString(a.Name)
		date := ""
		if a.PurchaseDate != nil {
			date = a.PurchaseDate.UTC().Format("2006-01-02")
		}
		row.AddCell().SetString(date)
		row.AddCell().SetString(string(a.Status))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
