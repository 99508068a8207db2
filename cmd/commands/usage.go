package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/netwatch/internal/storage"
)

// NewUsageCommand returns the usage subcommand.
func NewUsageCommand() *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Summarize recorded model calls",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "since",
				Usage: "Only count calls newer than this",
				Value: 24 * time.Hour,
			},
		},
		Action: runUsage,
	}
}

func runUsage(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ledger, err := storage.OpenUsageLedger(cfg.Storage.UsageDB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	rows, err := ledger.Summary(ctx, time.Now().Add(-cmd.Duration("since")))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No model calls recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tMODEL\tCALLS\tFAILURES\tOUTPUT CHARS\tAVG DURATION")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Kind, r.Model, r.Calls, r.Failures, r.OutputChars, r.AvgDuration.Truncate(time.Millisecond))
	}
	return w.Flush()
}
