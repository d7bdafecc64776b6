package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/ocr"
)

var parseCmd = &cobra.Command{
	Use:   "parse <report-file>",
	Short: "Parse a sales report and match its deals to clients",
	Long:  "Parses a .csv, .txt, .xlsx, .pdf, or image report, matches every deal against the client registry, and prints the enriched report. Use --out to save it for a later import.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "parse")
		if err != nil {
			return err
		}
		defer env.Close()

		req, err := readReportFile(ctx, args[0], ocr.New(cfg.OCR))
		if err != nil {
			return err
		}
		resp, err := env.Ingest.Parse(ctx, req)
		if err != nil {
			return eris.Wrap(err, "parse")
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			b, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return eris.Wrap(err, "encode parsed report")
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", out)
			}
			zap.L().Info("parsed report saved", zap.String("path", out))
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "table" {
			formatDealsTable(cmd.OutOrStdout(), resp.Data)
			fmt.Fprintf(cmd.OutOrStdout(), "\nParsing method: %s\n", resp.ParsingMethod)
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), format, resp)
	},
}

func init() {
	parseCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	parseCmd.Flags().String("out", "", "save the parsed report as JSON for import")
	rootCmd.AddCommand(parseCmd)
}
