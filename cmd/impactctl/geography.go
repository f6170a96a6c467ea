package main

import (
	"fmt"

	"impact-service/internal/config"

	"github.com/spf13/cobra"
)

func newGeographyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geography",
		Short: "Inspect the geography reference table",
	}

	var file string
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate that the table is a strict region tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *opts
			if file != "" {
				local.geography = file
			}
			geo, err := loadGeography(&local, config.New())
			if err != nil {
				return fmt.Errorf("geography table invalid: %w", err)
			}

			out := cmd.OutOrStdout()
			regions := geo.Regions()
			subRegions, districts := 0, 0
			for _, region := range regions {
				for _, sub := range geo.SubRegions(region) {
					subRegions++
					districts += len(geo.Districts(sub))
				}
			}
			fmt.Fprintf(out, "country: %s\n", geo.Country())
			fmt.Fprintf(out, "regions: %d, sub-regions: %d, districts: %d\n", len(regions), subRegions, districts)
			fmt.Fprintf(out, "default region: %s\n", geo.DefaultRegion())
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
	check.Flags().StringVar(&file, "file", "", "geography YAML to check (default: the configured table)")

	cmd.AddCommand(check)
	return cmd
}
