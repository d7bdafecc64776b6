package main

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/model"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage the client registry",
}

var clientsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Seed the client registry from a CSV file",
	Long:  "Reads a CSV with a header row (name, vertical, website) and upserts each client by name. Columns named company, industry, url, or domain are accepted as aliases.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("csv")

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open csv %s", path)
		}
		defer f.Close() //nolint:errcheck

		clients, err := readClientsCSV(f, cfg.Import.DefaultVertical)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertClients(ctx, clients)
		if err != nil {
			return eris.Wrap(err, "clients load")
		}

		zap.L().Info("clients loaded",
			zap.Int("rows", len(clients)),
			zap.Int64("upserted", n),
			zap.String("csv", path),
		)
		return nil
	},
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients in the registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		clients, err := st.ListClients(ctx)
		if err != nil {
			return eris.Wrap(err, "clients list")
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "table" {
			formatClientsTable(cmd.OutOrStdout(), clients)
			return nil
		}
		return writeOutput(cmd.OutOrStdout(), format, clients)
	},
}

var clientsShowCmd = &cobra.Command{
	Use:   "show <client-id>",
	Short: "Show a client and its sales tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client, err := st.GetClient(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "clients show")
		}
		tasks, err := st.ListTasks(ctx, client.ID)
		if err != nil {
			return eris.Wrap(err, "clients show: tasks")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeOutput(cmd.OutOrStdout(), format, struct {
			Client *model.Client     `json:"client"`
			Tasks  []model.SalesTask `json:"tasks"`
		}{client, tasks})
	},
}

// clientColumnAliases maps accepted header names to registry fields.
var clientColumnAliases = map[string]string{
	"name":     "name",
	"company":  "name",
	"client":   "name",
	"vertical": "vertical",
	"industry": "vertical",
	"website":  "website",
	"url":      "website",
	"domain":   "website",
}

// readClientsCSV parses a seed CSV. Rows without a name are skipped and
// later rows win when a name repeats.
func readClientsCSV(r io.Reader, defaultVertical string) ([]model.Client, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "read clients csv")
	}
	if len(records) == 0 {
		return nil, eris.New("read clients csv: file is empty")
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := clientColumnAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("read clients csv: header has no name column")
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	index := make(map[string]int)
	var clients []model.Client
	for _, row := range records[1:] {
		name := cell(row, "name")
		if name == "" {
			continue
		}
		c := model.Client{
			Name:     name,
			Vertical: cell(row, "vertical"),
			Website:  normalizeWebsite(cell(row, "website")),
			Source:   model.SourceSeed,
		}
		if c.Vertical == "" {
			c.Vertical = defaultVertical
		}

		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			clients[i] = c
			continue
		}
		index[key] = len(clients)
		clients = append(clients, c)
	}
	return clients, nil
}

// normalizeWebsite ensures a bare domain has an https:// scheme prefix.
func normalizeWebsite(s string) string {
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "https://" + s
}

func init() {
	clientsLoadCmd.Flags().String("csv", "", "path to CSV file (required)")
	_ = clientsLoadCmd.MarkFlagRequired("csv")
	clientsListCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	clientsShowCmd.Flags().String("format", "json", "output format: json or yaml")

	clientsCmd.AddCommand(clientsLoadCmd, clientsListCmd, clientsShowCmd)
	rootCmd.AddCommand(clientsCmd)
}
