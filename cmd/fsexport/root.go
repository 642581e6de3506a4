package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/askiada/go-fsexport/internal/command"
	"github.com/askiada/go-fsexport/internal/config"
	"github.com/askiada/go-fsexport/internal/export"
	"github.com/askiada/go-fsexport/internal/ledger"
	"github.com/askiada/go-fsexport/pkg/pipeline/drawer"
	"github.com/askiada/go-fsexport/pkg/pipeline/measure"
	"github.com/askiada/go-fsexport/pkg/pipeline/model"
)

const ledgerTimeout = 5 * time.Second

type rootFlags struct {
	configFile string
	workers    int
	dryRun     bool
	subjects   []string
	ledger     string
	noLedger   bool
	graph      string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "fsexport <root> <experiment>",
		Short: "Export FreeSurfer volumes of every session of an experiment to NIfTI",
		Long: "Converts brain.mgz, aparc+aseg.mgz and aparc.a2009s+aseg.mgz of every session to NIfTI with mri_convert\n" +
			"and reorients them with 3daxialize. Volumes that already exist are left untouched, an interrupted\n" +
			"export can be started again.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			return runExport(cmd, cfg, args[0], args[1])
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "write logs as JSON lines")
	cmd.PersistentFlags().StringVar(&flags.ledger, "ledger", "", "ledger file (default <root>/<experiment>/"+ledger.FileName+")")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 1, "number of sessions exported concurrently")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "log the commands without running them")
	cmd.Flags().StringSliceVarP(&flags.subjects, "subject", "s", nil, "export only this subject (repeatable)")
	cmd.Flags().BoolVar(&flags.noLedger, "no-ledger", false, "do not record the run in the ledger")
	cmd.Flags().StringVar(&flags.graph, "graph", "", "write the run pipeline with its timings to this DOT file")

	cmd.AddCommand(newStepsCmd(flags), newStatusCmd(flags))

	return cmd
}

// loadConfig applies the flags set on the command line over the configuration file and sets up logging.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Workers = flags.workers
	}
	if changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if changed("subject") {
		cfg.Subjects = flags.subjects
	}
	if changed("ledger") {
		cfg.Ledger.Path = flags.ledger
	}
	if changed("no-ledger") {
		cfg.Ledger.Enabled = !flags.noLedger
	}
	if changed("graph") {
		cfg.Graph = flags.graph
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-json") {
		cfg.Log.JSON = flags.logJSON
	}

	err = cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	setupLogger(os.Stderr, cfg.Log.JSON)
	zerolog.SetGlobalLevel(cfg.LogLevel())

	return cfg, nil
}

func ledgerPath(cfg *config.Config, root, experiment string) string {
	if cfg.Ledger.Path != "" {
		return cfg.Ledger.Path
	}

	return ledger.DefaultPath(root, experiment)
}

func runExport(cmd *cobra.Command, cfg *config.Config, root, experiment string) error {
	ctx := log.Logger.WithContext(cmd.Context())

	msr := measure.NewDefaultMeasure()
	pipelineOpts := []model.PipelineOption{measure.PipelineMeasure(msr)}
	if cfg.Graph != "" {
		pipelineOpts = append(pipelineOpts, drawer.PipelineDrawer(drawer.NewDOTDrawer(cfg.Graph), msr))
	}

	exp := export.New(
		cfg.LayoutFor(root),
		cfg.ToolSet(),
		command.ExecRunner{Env: cfg.Tools.Env},
		export.WithWorkers(cfg.Workers),
		export.WithDryRun(cfg.DryRun),
		export.WithSubjects(cfg.Subjects...),
		export.WithPipelineOptions(pipelineOpts...),
	)

	// open the ledger first, two runs on the same experiment must not overlap
	var ldg *ledger.Ledger
	if cfg.Ledger.Enabled {
		var err error
		ldg, err = ledger.Open(ledgerPath(cfg, root, experiment), ledgerTimeout)
		if err != nil {
			return err
		}
		defer ldg.Close()
	}

	summary, runErr := exp.Run(ctx, root, experiment)
	if summary == nil {
		return runErr
	}
	summary.Log(log.Logger)
	logStages(msr)

	if ldg != nil {
		err := ldg.Record(summary)
		if err != nil {
			log.Error().Err(err).Msg("unable to record the run in the ledger")
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.OK() {
		return errExportFailed
	}

	return nil
}

func logStages(msr measure.Measure) {
	for _, name := range []string{export.SessionsStep, export.ExportStep} {
		mt := msr.GetMetric(name)
		if mt == nil {
			continue
		}
		log.Debug().
			Str("stage", name).
			Int64("items", mt.Count()).
			Dur("avg", mt.AVGDuration()).
			Msg("stage timings")
	}
}
