package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pipeline-import/internal/store"
)

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "Inspect import history",
}

var importsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past imports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		imports, total, err := st.ListImports(ctx, store.ImportFilter{Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "imports list")
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "table" {
			formatImportsTable(cmd.OutOrStdout(), imports, total)
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), format, map[string]any{"imports": imports, "total": total})
	},
}

var importsShowCmd = &cobra.Command{
	Use:   "show <import-id>",
	Short: "Show one import audit row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		imp, err := st.GetImport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "imports show")
		}
		format, _ := cmd.Flags().GetString("format")
		return writeOutput(cmd.OutOrStdout(), format, imp)
	},
}

func init() {
	importsListCmd.Flags().Int("limit", 20, "maximum imports to list (max 100)")
	importsListCmd.Flags().Int("offset", 0, "imports to skip")
	importsListCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	importsShowCmd.Flags().String("format", "json", "output format: json or yaml")

	importsCmd.AddCommand(importsListCmd, importsShowCmd)
	rootCmd.AddCommand(importsCmd)
}
