package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LyricZhao/DLMO/internal/analysis"
	"github.com/LyricZhao/DLMO/internal/config"
	"github.com/LyricZhao/DLMO/internal/journal"
	"github.com/LyricZhao/DLMO/internal/report"
	"github.com/LyricZhao/DLMO/internal/search"
	"github.com/LyricZhao/DLMO/internal/trace"
)

var (
	configPath  string
	journalPath string
	verbose     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "optimizer <input> <output> <limit>",
		Short: "Rewrite a recorded schedule to fit a device memory budget",
		Args:  cobra.ExactArgs(3),
		Run:   runOptimize,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file overriding search parameters")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.Flags().StringVar(&journalPath, "journal", "", "sqlite database recording the run")

	infoCmd := &cobra.Command{
		Use:   "info <input>",
		Short: "Print peak memory and total time of a trace",
		Args:  cobra.ExactArgs(1),
		Run:   runInfo,
	}
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() config.Config {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			report.Errorf("%v", err)
		}
	}
	return cfg
}

func runOptimize(cmd *cobra.Command, args []string) {
	cfg := setup()
	input, output := args[0], args[1]
	limit, err := trace.ParseBytes(args[2])
	if err != nil {
		report.Errorf("%v", err)
	}

	sched, err := trace.Load(input)
	if err != nil {
		report.Errorf("%v", err)
	}
	if err := analysis.Analyze(sched); err != nil {
		report.Errorf("invalid trace %s: %v", input, err)
	}
	fmt.Printf("Running case %s (%d operators) with limit %s ...\n",
		input, len(sched.Tasks), trace.PrettyBytes(limit))

	opt := search.New(cfg.SearchOptions(limit))
	var jn *journal.Journal
	if journalPath != "" {
		if jn, err = journal.Open(journalPath); err != nil {
			report.Errorf("%v", err)
		}
		defer jn.Close()
		if err := jn.Begin(input, limit, sched.PeakMemory, sched.TotalTime); err != nil {
			report.Errorf("%v", err)
		}
		opt.OnProgress(func(iteration int, best *trace.Schedule, queueLen int) {
			jn.Progress(iteration, best.PeakMemory, best.TotalTime, queueLen)
		})
	}

	res, err := opt.Optimize(sched)
	if err != nil {
		report.Errorf("%v", err)
	}
	if jn != nil {
		if err := jn.Finish(res.Satisfied, res.Best.PeakMemory, res.Best.TotalTime, res.Iterations); err != nil {
			report.Warningf("%v", err)
		}
	}

	if err := trace.Dump(res.Best, output); err != nil {
		report.Errorf("%v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Schedules searched:\t%d\n", res.Iterations)
	fmt.Fprintf(w, "Time used:\t%s\n", res.Elapsed)
	fmt.Fprintf(w, "Best:\t{%s}\n", res.Best.Info())
	fmt.Fprintf(w, "Satisfy memory:\t%t\n", res.Best.PeakMemory <= limit)
	satisfyTime := float64(res.Best.TotalTime) <= cfg.TimeRequirementRatio*float64(res.Origin.TotalTime)
	fmt.Fprintf(w, "Satisfy time:\t%t\n", satisfyTime)
	w.Flush()
}

func runInfo(cmd *cobra.Command, args []string) {
	setup()
	sched, err := trace.Load(args[0])
	if err != nil {
		report.Errorf("%v", err)
	}
	if err := analysis.Analyze(sched); err != nil {
		report.Errorf("invalid trace %s: %v", args[0], err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Operators:\t%d\n", len(sched.Tasks))
	fmt.Fprintf(w, "Operands:\t%d\n", len(sched.Common.Operands))
	fmt.Fprintf(w, "Peak memory:\t%s\n", trace.PrettyBytes(sched.PeakMemory))
	fmt.Fprintf(w, "Total time:\t%s\n", trace.PrettyNanos(sched.TotalTime))
	w.Flush()
}
