//go:build !solution

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"gitlab.com/slon/rwgate/rwlock"
	"gitlab.com/slon/rwgate/scenario"
)

var errFailed = errors.New("scenarios failed")

// app holds what all commands share.
type app struct {
	log   *zap.Logger
	debug bool
	poll  time.Duration
}

func (a *app) addFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&a.debug, "debug", false, "log lock transitions")
	fs.DurationVar(&a.poll, "poll", 0, "re-check a held gate every interval instead of waiting for release")
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.log != nil {
		return nil
	}
	var err error
	if a.debug {
		a.log, err = zap.NewDevelopment()
	} else {
		a.log, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

func (a *app) lockOptions() []rwlock.Option {
	if a.poll > 0 {
		return []rwlock.Option{rwlock.WithPollInterval(a.poll)}
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "rwgate",
		Short:             "Run dual-gate lock scenarios",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	a.addFlags(root.PersistentFlags())
	root.AddCommand(newListCmd(), newRunCmd(a), newServeCmd(a))
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenario.Catalogue()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, sc := range scenarios {
				fmt.Fprintf(w, "%s\t%s\n", sc.Name, sc.Description)
			}
			return w.Flush()
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		files []string
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run built-in scenarios by name or scenario files",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := selectScenarios(args, files, all)
			if err != nil {
				return err
			}
			if len(scenarios) == 0 {
				return errors.New("nothing to run: pass scenario names, --file or --all")
			}

			runner := &scenario.Runner{Logger: a.log, LockOptions: a.lockOptions()}
			failed := 0
			for _, sc := range scenarios {
				report, err := runner.Run(cmd.Context(), sc)
				if err != nil {
					return err
				}
				if err := report.Print(cmd.OutOrStdout()); err != nil {
					return err
				}
				if !report.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errFailed, failed, len(scenarios))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "scenario YAML file, may be repeated")
	cmd.Flags().BoolVar(&all, "all", false, "run every built-in scenario")
	return cmd
}

func selectScenarios(names, files []string, all bool) ([]*scenario.Scenario, error) {
	var scenarios []*scenario.Scenario
	if all {
		catalogue, err := scenario.Catalogue()
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, catalogue...)
	} else {
		for _, name := range names {
			sc, err := scenario.Lookup(name)
			if err != nil {
				return nil, err
			}
			scenarios = append(scenarios, sc)
		}
	}
	for _, f := range files {
		sc, err := scenario.Load(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}
