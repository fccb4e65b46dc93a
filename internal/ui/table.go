// Package ui renders assets for the terminal and models the create/edit form.
package ui

import (
	"fmt"
	"io"
	"text/tabwriter"

	"it-asset-manager-api/pkg/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04"
)

// RenderTable writes one row per asset, or a placeholder line when there are none
func RenderTable(w io.Writer, assets []models.Asset) error {
	if len(assets) == 0 {
		_, err := fmt.Fprintln(w, "No assets registered.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERIAL NUMBER\tNAME\tPURCHASE DATE\tSTATUS\tUPDATED")
	for _, a := range assets {
		purchased := "-"
		if a.PurchaseDate != nil {
			purchased = a.PurchaseDate.UTC().Format(dateLayout)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.SerialNumber, a.Name, purchased, a.Status, a.UpdatedAt.UTC().Format(timestampLayout))
	}
	return tw.Flush()
}
