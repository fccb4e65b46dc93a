// Command assetctl is a terminal client for the asset API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"it-asset-manager-api/internal/ui"
	"it-asset-manager-api/pkg/assetclient"
	"it-asset-manager-api/pkg/models"

	"github.com/spf13/pflag"
)

const usage = `usage: assetctl <command> [flags]

commands:
  list                 show every asset
  get ID               show one asset
  create               register an asset (--serial, --name, --purchase-date, --status)
  edit ID              change an asset; only the flags given are changed
  delete ID            remove an asset
  import FILE          upload an .xlsx workbook (--dry-run)
  export FILE          download the inventory as .xlsx

global flags:
  --server URL         API base URL (default $ASSET_API_URL or http://localhost:8080)
`

const msgLoadFailed = "could not load assets from the server"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type app struct {
	client *assetclient.Client
	out    io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, rest := args[0], args[1:]

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("ASSET_API_URL", "http://localhost:8080"), "API base URL")
	serial := fs.String("serial", "", "serial number")
	name := fs.String("name", "", "asset name")
	purchaseDate := fs.String("purchase-date", "", "purchase date YYYY-MM-DD (empty clears it on edit)")
	status := fs.String("status", "", "status")
	dryRun := fs.Bool("dry-run", false, "validate an import without writing")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")

	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a := &app{client: assetclient.New(*server), out: stdout}

	var err error
	switch cmd {
	case "list":
		err = a.refresh(ctx)
	case "get":
		err = a.get(ctx, fs.Args())
	case "create":
		f := ui.NewForm()
		f.SerialNumber, f.Name, f.PurchaseDate = *serial, *name, *purchaseDate
		if fs.Changed("status") {
			f.Status = *status
		}
		err = a.create(ctx, f)
	case "edit":
		err = a.edit(ctx, fs.Args(), func(f *ui.Form) {
			if fs.Changed("serial") {
				f.SerialNumber = *serial
			}
			if fs.Changed("name") {
				f.Name = *name
			}
			if fs.Changed("purchase-date") {
				f.PurchaseDate = *purchaseDate
			}
			if fs.Changed("status") {
				f.Status = *status
			}
		})
	case "delete":
		err = a.remove(ctx, fs.Args())
	case "import":
		err = a.importFile(ctx, fs.Args(), *dryRun)
	case "export":
		err = a.exportFile(ctx, fs.Args())
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(stderr, "error:", message(err))
		return 1
	}
	return 0
}

// message prefers the server's explanation; transport failures get a generic line
func message(err error) string {
	var apiErr *assetclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var argErr argError
	if errors.As(err, &argErr) {
		return argErr.Error()
	}
	return msgLoadFailed
}

type argError string

func (e argError) Error() string { return string(e) }

func parseIDArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, argError("exactly one asset ID is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, argError(fmt.Sprintf("invalid asset ID %q", args[0]))
	}
	return id, nil
}

// refresh reloads the full list and renders it
func (a *app) refresh(ctx context.Context) error {
	assets, err := a.client.List(ctx)
	if err != nil {
		return err
	}
	return ui.RenderTable(a.out, assets)
}

func (a *app) get(ctx context.Context, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}
	asset, err := a.client.Get(ctx, id)
	if err != nil {
		return err
	}
	return ui.RenderTable(a.out, []models.Asset{asset})
}

func (a *app) create(ctx context.Context, f ui.Form) error {
	req, err := f.CreateRequest()
	if err != nil {
		return argError(err.Error())
	}
	if _, err := a.client.Create(ctx, req); err != nil {
		return err
	}
	return a.refresh(ctx)
}

func (a *app) edit(ctx context.Context, args []string, overlay func(*ui.Form)) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}
	current, err := a.client.Get(ctx, id)
	if err != nil {
		return err
	}

	f := ui.FormFromAsset(current)
	overlay(&f)
	req, err := f.UpdateRequest()
	if err != nil {
		return argError(err.Error())
	}
	if _, err := a.client.Update(ctx, id, req); err != nil {
		return err
	}
	return a.refresh(ctx)
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}
	if err := a.client.Delete(ctx, id); err != nil {
		return err
	}
	return a.refresh(ctx)
}

func (a *app) importFile(ctx context.Context, args []string, dryRun bool) error {
	if len(args) != 1 {
		return argError("exactly one file is required")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return argError(err.Error())
	}
	defer file.Close()

	sum, err := a.client.ImportExcel(ctx, args[0], file, dryRun)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "inserted=%d updated=%d skipped=%d errors=%d dry_run=%v\n",
		sum.Inserted, sum.Updated, sum.Skipped, sum.Errors, sum.DryRun)
	for _, sheet := range sum.Sheets {
		for _, sample := range sheet.Samples {
			fmt.Fprintf(a.out, "  %s row %d: %s\n", sample.Sheet, sample.Row, sample.Message)
		}
	}
	if dryRun {
		return nil
	}
	return a.refresh(ctx)
}

func (a *app) exportFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return argError("exactly one file is required")
	}
	file, err := os.Create(args[0])
	if err != nil {
		return argError(err.Error())
	}
	if err := a.client.ExportExcel(ctx, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return argError(err.Error())
	}
	fmt.Fprintf(a.out, "exported to %s\n", args[0])
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
