package main

import (
	"context"
	"fmt"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/database/postgres"
	"impact-service/internal/database/reference"
	"impact-service/internal/database/sqlite"
	"impact-service/internal/repository"
	"impact-service/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile   string
	sqlite    string
	geography string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "impactctl",
		Short:         "Operator tooling for the impact service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFile(opts.envFile)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load (default .env)")
	root.PersistentFlags().StringVar(&opts.sqlite, "sqlite", "", "use this SQLite database instead of the configured one")
	root.PersistentFlags().StringVar(&opts.geography, "geography", "", "geography YAML (default: GEOGRAPHY_FILE or the embedded table)")

	root.AddCommand(
		newAggregateCmd(opts),
		newGeographyCmd(opts),
		newSchoolsCmd(opts),
	)
	return root
}

// environment is the subset of the service wiring the CLI needs.
type environment struct {
	cfg     *config.ImpactServiceConfig
	db      *sqlx.DB
	geo     *services.GeographyResolver
	engine  *services.AggregationService
	schools *services.SchoolService
}

func (e *environment) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

func loadGeography(opts *rootOptions, cfg *config.ImpactServiceConfig) (*services.GeographyResolver, error) {
	path := opts.geography
	if path == "" {
		path = cfg.EngineCfg.GeographyFile
	}
	table, err := reference.LoadGeography(path)
	if err != nil {
		return nil, err
	}
	return services.NewGeographyResolver(table)
}

func openEnvironment(ctx context.Context, opts *rootOptions) (*environment, error) {
	cfg := config.New()
	geo, err := loadGeography(opts, cfg)
	if err != nil {
		return nil, err
	}

	var db *sqlx.DB
	switch {
	case opts.sqlite != "":
		db, err = sqlite.Open(ctx, opts.sqlite)
	case cfg.DBDriver == "postgres":
		db, err = postgres.ConnectAndCreateDB(ctx, cfg.PostgresCfg)
	case cfg.DBDriver == "sqlite":
		db, err = sqlite.Open(ctx, cfg.SQLitePath)
	default:
		err = fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}

	recordRepo := repository.NewRecordRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	periods := services.NewCalendarPeriodResolver(cfg.EngineCfg, time.Now)

	return &environment{
		cfg:     cfg,
		db:      db,
		geo:     geo,
		engine:  services.NewAggregationService(recordRepo, schoolRepo, geo, periods, services.NewEgraScorer(), cfg.EngineCfg),
		schools: services.NewSchoolService(schoolRepo, geo, nil, time.Now),
	}, nil
}
