package main

import (
	"encoding/json"
	"fmt"

	"impact-service/internal/models"
	"impact-service/internal/services"

	"github.com/spf13/cobra"
)

func newAggregateCmd(opts *rootOptions) *cobra.Command {
	var (
		level  string
		id     string
		period string
		public bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Compute an impact aggregate and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			geoLevel, ok := models.ParseGeoLevel(level)
			if !ok {
				return fmt.Errorf("unknown level %q", level)
			}
			p, ok := models.ParsePeriod(period)
			if !ok {
				return fmt.Errorf("%w: %q", models.ErrUnknownPeriod, period)
			}
			scope := models.GeoScope{Level: geoLevel, ID: id}

			env, err := openEnvironment(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.engine.ValidateScope(cmd.Context(), scope); err != nil {
				return err
			}
			agg, err := env.engine.Aggregate(cmd.Context(), scope, p)
			if err != nil {
				return err
			}

			var out any = agg
			if public {
				if out, err = services.NewPublicMapper(services.NewPrivacyGuard()).ToPublic(agg); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&level, "level", "country", "country, region, subregion, district or school")
	cmd.Flags().StringVar(&id, "id", "", "scope name or school code")
	cmd.Flags().StringVar(&period, "period", "FY", "FY, TERM or QTR")
	cmd.Flags().BoolVar(&public, "public", false, "print the public payload with snake_case aliases")
	return cmd
}
