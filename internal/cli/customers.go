package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/store"
)

var (
	customersJSON bool
	customersDB   string
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List customers in the bakery database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		if cmd.Flags().Changed("db") {
			cfg.Database.URL = customersDB
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		db, err := store.Open(ctx, cfg.Database.URL, cfg.Database.QueryTimeout)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		customers, err := db.ListCustomers(ctx)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}

		if customersJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if customers == nil {
				customers = []store.Customer{}
			}
			return enc.Encode(customers)
		}

		if len(customers) == 0 {
			fmt.Println("No customers found.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NUMBER\tNAME\tGROUP")
		for _, c := range customers {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", c.PK, c.Name, c.Group)
		}
		return tw.Flush()
	},
}

func init() {
	customersCmd.Flags().BoolVar(&customersJSON, "json", false, "Print JSON")
	customersCmd.Flags().StringVar(&customersDB, "db", "", "Postgres connection URL")
}
