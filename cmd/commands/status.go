package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/netwatch/internal/config"
	"github.com/dohr-michael/netwatch/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether the gateway is running",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "max-age",
				Value: 2 * time.Minute,
				Usage: "Heartbeat age after which the gateway is reported stale",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the heartbeat as JSON",
			},
		},
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	report, err := heartbeat.Check(config.HeartbeatPath(), cmd.Duration("max-age"))
	if err != nil {
		return fmt.Errorf("check heartbeat: %w", err)
	}

	var probeErr error
	if report.Status == heartbeat.StatusAlive {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		probeErr = heartbeat.Probe(pctx, http.DefaultClient, report.Beat)
		cancel()
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Status    heartbeat.Status `json:"status"`
			Reachable bool             `json:"reachable"`
			Beat      *heartbeat.Beat  `json:"heartbeat,omitempty"`
		}{report.Status, report.Status == heartbeat.StatusAlive && probeErr == nil, report.Beat})
	}

	b := report.Beat
	switch report.Status {
	case heartbeat.StatusDead:
		fmt.Println("Gateway: NOT RUNNING")
		return nil
	case heartbeat.StatusStale:
		fmt.Printf("Gateway: STALE (PID %d, last heartbeat %s ago)\n", b.PID, report.Age.Truncate(time.Second))
		return nil
	}

	fmt.Printf("Gateway: ALIVE (PID %d, %s, uptime %s)\n", b.PID, b.Addr, b.Uptime())
	if probeErr != nil {
		fmt.Printf("Health:  unreachable (%v)\n", probeErr)
	}
	reply := ""
	if b.Pending {
		reply = ", reply in progress"
	}
	fmt.Printf("Transcript: %d turns%s\n", b.Turns, reply)
	fmt.Printf("Clients: %d\n", b.Clients)
	if b.Model != "" {
		fmt.Printf("Model: %s\n", b.Model)
	}
	return nil
}
