package main

import (
	"fmt"
	"os"
	"sort"

	"impact-service/internal/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSchoolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schools",
		Short: "Manage the school directory",
	}

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import schools from a YAML list",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readSchoolFile(file)
			if err != nil {
				return err
			}

			env, err := openEnvironment(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.schools.ImportBatch(cmd.Context(), reqs)
			out := cmd.OutOrStdout()
			if result != nil {
				for _, s := range result.Created {
					fmt.Fprintf(out, "created %s %s (%s)\n", s.ID, s.Name, s.District)
				}
				rows := make([]int, 0, len(result.Skipped))
				for i := range result.Skipped {
					rows = append(rows, i)
				}
				sort.Ints(rows)
				for _, i := range rows {
					fmt.Fprintf(out, "skipped row %d: %s\n", i+1, result.Skipped[i])
				}
				fmt.Fprintf(out, "%d created, %d skipped\n", len(result.Created), len(result.Skipped))
			}
			return err
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "YAML file with a list of schools")
	_ = importCmd.MarkFlagRequired("file")

	cmd.AddCommand(importCmd)
	return cmd
}

func readSchoolFile(path string) ([]models.CreateSchoolRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read schools file: %w", err)
	}
	var reqs []models.CreateSchoolRequest
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("could not parse schools file: %w", err)
	}
	return reqs, nil
}
