// Command recon-import loads spreadsheet exports into the reconciliation
// database and optionally runs the reconciliation for the imported scope.
//
// Usage:
//
//	recon-import --kind tb --entity E1 --period 2024_12 tb.xlsx
//	recon-import --kind pprec --entity E1 --period 2024_12 --fiscal-year 2024 --run working.xlsx
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mmynk/prepaidrecon/internal/config"
	"github.com/mmynk/prepaidrecon/internal/ingest"
	"github.com/mmynk/prepaidrecon/internal/recon"
	"github.com/mmynk/prepaidrecon/internal/storage/sqlite"
	"github.com/mmynk/prepaidrecon/pkg/logging"
)

func main() {
	logging.Setup()

	app := &cli.App{
		Name:      "recon-import",
		Usage:     "import a schedule, trial balance or PPREC workbook",
		ArgsUsage: "WORKBOOK",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", EnvVars: []string{"DB_PATH"}, Value: config.DefaultDBPath, Usage: "SQLite database path"},
			&cli.StringFlag{Name: "kind", Required: true, Usage: "line kind: schedule, tb or pprec"},
			&cli.StringFlag{Name: "sheet", Usage: "sheet name (default first sheet)"},
			&cli.StringFlag{Name: "entity", Usage: "entity for rows that leave it blank"},
			&cli.StringFlag{Name: "period", Usage: "fiscal period for rows that leave it blank"},
			&cli.StringFlag{Name: "fiscal-year", Usage: "fiscal year used by --run"},
			&cli.StringFlag{Name: "upload-id", Usage: "upload batch ID (generated when empty)"},
			&cli.BoolFlag{Name: "run", Usage: "compute reconciliations for --entity and --period after importing"},
		},
		Action: importWorkbook,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Import failed", "error", err)
		os.Exit(1)
	}
}

func importWorkbook(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one workbook path, got %d", c.Args().Len())
	}
	kind, err := ingest.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}

	store, err := sqlite.New(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	res, err := ingest.NewImporter(store).ImportSheet(c.Context, kind, f, c.String("sheet"), ingest.Batch{
		UploadID: c.String("upload-id"),
		EntityID: c.String("entity"),
		PeriodID: c.String("period"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("imported %d %s lines (upload %s)\n", res.Lines, res.Kind, res.UploadID)

	if !c.Bool("run") {
		return nil
	}
	recs, err := recon.NewEngine(store).ComputeAll(c.Context, c.String("entity"), c.String("fiscal-year"), c.String("period"))
	for _, r := range recs {
		final := "n/a"
		if r.FinalDifference.Valid {
			final = r.FinalDifference.Decimal.String()
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", r.PrepaidAccount, r.Status, r.TotalSubsystem, final)
	}
	return err
}
