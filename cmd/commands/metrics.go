package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/netwatch/clients/ws"
)

// NewMetricsCommand returns the metrics subcommand.
func NewMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Print the gateway's current network metrics",
		Flags: []cli.Flag{
			gatewayFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full snapshot, history included, as JSON",
			},
		},
		Action: runMetrics,
	}
}

func runMetrics(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := wsclient.Dial(ctx, gatewayURL(cmd))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	snap, err := client.Metrics(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE\tSTATUS")
	fmt.Fprintf(w, "upload\t%.2f Mbps\t\n", snap.Bandwidth.Upload)
	fmt.Fprintf(w, "download\t%.2f Mbps\t\n", snap.Bandwidth.Download)
	fmt.Fprintf(w, "latency\t%.0f ms (avg %.0f, min %.0f, max %.0f)\t%s\n",
		snap.Latency.Current, snap.Latency.Average, snap.Latency.Min, snap.Latency.Max, snap.LatencyStatus())
	fmt.Fprintf(w, "packet loss\t%.2f%%\t%s\n", snap.PacketLoss.Current, snap.PacketLossStatus())
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated\t%s\t\n", snap.UpdatedAt.Local().Format(time.TimeOnly))
	}
	return w.Flush()
}
