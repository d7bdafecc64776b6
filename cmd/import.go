package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/pipeline-import/internal/importer"
	"github.com/sells-group/pipeline-import/internal/ingest"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/ocr"
)

var importCmd = &cobra.Command{
	Use:   "import <report-file>",
	Short: "Import a sales report into the client registry",
	Long:  "Parses and matches a report, then previews (--dry-run) or executes the import. A .json file saved by `parse --out` is imported without re-parsing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		rpt, method, err := loadReport(ctx, env.Ingest, args[0])
		if err != nil {
			return err
		}

		opts := importOptionsFromFlags(cmd.Flags(), cfg.Import.Defaults)
		out, err := env.Importer.Import(ctx, rpt, opts, method)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "table" {
			formatOutcome(cmd.OutOrStdout(), out)
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), format, out)
	},
}

// loadReport reads a saved parse result or parses a report file.
func loadReport(ctx context.Context, svc *ingest.Service, path string) (*model.ExtractedSalesReport, model.ParsingMethod, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readSavedReport(path)
	}
	req, err := readReportFile(ctx, path, ocr.New(cfg.OCR))
	if err != nil {
		return nil, "", err
	}
	resp, err := svc.Parse(ctx, req)
	if err != nil {
		return nil, "", eris.Wrap(err, "parse")
	}
	return resp.Data, resp.ParsingMethod, nil
}

// readSavedReport accepts either a full parse response or a bare report.
func readSavedReport(path string) (*model.ExtractedSalesReport, model.ParsingMethod, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "read %s", path)
	}
	var resp ingest.Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, "", eris.Wrapf(err, "decode %s", path)
	}
	if resp.Data == nil {
		var rpt model.ExtractedSalesReport
		if err := json.Unmarshal(b, &rpt); err != nil {
			return nil, "", eris.Wrapf(err, "decode %s", path)
		}
		resp.Data = &rpt
	}
	resp.Data.Finalize()
	return resp.Data, resp.ParsingMethod, nil
}

// importOptionsFromFlags overrides the configured defaults with any flag
// the user set explicitly.
func importOptionsFromFlags(fs *pflag.FlagSet, def model.ImportOptions) model.ImportOptions {
	opts := def
	for name, dst := range map[string]*bool{
		"create-new":      &opts.CreateNewClients,
		"update-existing": &opts.UpdateExisting,
		"create-tasks":    &opts.CreateTasks,
		"dry-run":         &opts.DryRun,
	} {
		if fs.Changed(name) {
			*dst, _ = fs.GetBool(name)
		}
	}
	return opts
}

func formatOutcome(w io.Writer, out *importer.Outcome) {
	if p := out.Preview; p != nil {
		fmt.Fprintf(w, "Preview of %s: %d to create, %d to update, %d to skip, %d tasks\n",
			p.FileName, p.ToCreate, p.ToUpdate, p.ToSkip, p.TasksToCreate)
		for _, d := range p.Deals {
			line := fmt.Sprintf("  %-7s %s", d.Action, d.DealName)
			if d.Reason != "" {
				line += " (" + d.Reason + ")"
			}
			fmt.Fprintln(w, line)
			for _, c := range d.Changes {
				fmt.Fprintf(w, "          %s: %q -> %q\n", c.Field, c.From, c.To)
			}
		}
		printList(w, "Warnings", p.Warnings)
		return
	}

	r := out.Result
	fmt.Fprintf(w, "Import %s %s: %d imported (%d created, %d updated), %d skipped, %d tasks\n",
		r.ImportID, r.State, r.DealsImported, r.ClientsCreated, r.ClientsUpdated, r.DealsSkipped, r.TasksCreated)
	printList(w, "Errors", r.Errors)
	printList(w, "Warnings", r.Warnings)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "preview the import without writing")
	importCmd.Flags().Bool("create-new", true, "create clients for unmatched deals (default from config)")
	importCmd.Flags().Bool("update-existing", true, "update matched clients (default from config)")
	importCmd.Flags().Bool("create-tasks", true, "create follow-up tasks (default from config)")
	importCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	rootCmd.AddCommand(importCmd)
}
