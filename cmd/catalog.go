package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var errNoCatalog = errors.New("catalog database is not configured (DATABASE_ENABLED=true)")

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the asset catalog",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fill the catalog from the asset bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		s := rt.syncer()
		if s == nil {
			return errNoCatalog
		}
		res, err := s.Sync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Listed %d objects, skipped %d, wrote %d entries\n", res.Listed, res.Skipped, res.Written)
		return nil
	},
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the catalog with the asset bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		s := rt.syncer()
		if s == nil {
			return errNoCatalog
		}
		report, err := s.Reconcile(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tCATALOG\tSTORAGE\tMISMATCH")
		for _, r := range report.Results {
			fmt.Fprintf(w, "%s\t%v\t%v\t%s\n", r.Key, r.InCatalog, r.InStorage, strings.Join(r.Mismatch, "; "))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d keys: %d missing, %d stale, %d mismatched\n", report.Total, report.Missing, report.Stale, report.Mismatched)
		if !report.Clean() {
			return errors.New("catalog is out of sync with storage")
		}
		return nil
	},
}

var catalogListLimit int

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		if rt.catalog == nil {
			return errNoCatalog
		}
		entries, err := rt.catalog.List(cmd.Context(), catalogListLimit, 0)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tPINNED\tINDEPENDENT\tPOST-SYNC")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%v\n", e.Key, units.BytesSize(float64(e.Size)), e.Pinned, e.Independent, e.PostSync)
		}
		return w.Flush()
	},
}

func init() {
	catalogListCmd.Flags().IntVar(&catalogListLimit, "limit", 100, "maximum entries to print (0 for all)")
	catalogCmd.AddCommand(catalogSyncCmd, catalogListCmd, catalogCheckCmd)
	RootCmd.AddCommand(catalogCmd)
}
