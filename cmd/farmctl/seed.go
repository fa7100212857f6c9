package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"farmbook/internal/services"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		email string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo farm for a user",
		Long: `Seed adds three fields with crops, harvests, expenses and sales to the
user's ledger. Without --reset the records are added next to existing ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.auth.IdentityForEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			res, err := a.seeder.Seed(cmd.Context(), id, services.SeedOptions{Reset: reset})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d fields, %d crops, %d harvests, %d expenses, %d sales\n",
				res.Fields, res.Crops, res.Harvests, res.Expenses, res.Sales)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user to seed (required)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the user's fields and expenses first")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
