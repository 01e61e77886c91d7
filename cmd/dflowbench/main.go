// Command dflowbench measures per-tick latency across a grid of chain
// widths and lengths, modeled on the teacher pack's own
// cmd/benchmark (delaneyj/signalparty): a tachymeter per configuration,
// results rendered as a go-pretty table.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/mfkiwl/dspatch"
	"github.com/mfkiwl/dspatch/dflowtest"
)

const (
	flagWidths    = "widths"
	flagLengths   = "lengths"
	flagIters     = "iterations"
	flagMode      = "mode"
	flagBuffers   = "buffers"
	flagThreadPer = "threads-per-buffer"
)

func main() {
	cmd := &cli.Command{
		Name:  "dflowbench",
		Usage: "benchmark dspatch tick latency across chain widths/lengths",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagWidths, Usage: "comma-separated parallel chain counts to try", Value: "1,10,100"},
			&cli.StringFlag{Name: flagLengths, Usage: "comma-separated chain lengths to try", Value: "1,10,100"},
			&cli.UintFlag{Name: flagIters, Usage: "ticks measured per configuration", Value: 100},
			&cli.StringFlag{Name: flagMode, Usage: "series or parallel", Value: "parallel"},
			&cli.UintFlag{Name: flagBuffers, Usage: "buffer count", Value: 1},
			&cli.UintFlag{Name: flagThreadPer, Usage: "threads per buffer passed to SetBufferCount (used by auto-tick only; this benchmark ticks manually)", Value: 1},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	mode := dspatch.Parallel
	if cmd.String(flagMode) == "series" {
		mode = dspatch.Series
	}
	iters := int(cmd.Uint(flagIters))
	buffers := int(cmd.Uint(flagBuffers))
	threadsPerBuffer := int(cmd.Uint(flagThreadPer))

	widths, err := parseIntList(cmd.String(flagWidths))
	if err != nil {
		return err
	}
	lengths, err := parseIntList(cmd.String(flagLengths))
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetTitle("dspatch chain throughput")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"chains x length", "iterations", "avg", "p75", "p99", "max"})

	for _, chains := range widths {
		for _, length := range lengths {
			comps := dflowtest.ParallelChains(chains, length)

			circuit, err := dspatch.NewCircuit(comps...)
			if err != nil {
				return err
			}
			if buffers > 1 || threadsPerBuffer > 1 {
				if err := circuit.SetBufferCount(buffers, threadsPerBuffer); err != nil {
					return err
				}
			}

			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				start := time.Now()
				circuit.Tick(mode)
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRow(table.Row{
				fmt.Sprintf("%s x %s", humanize.Comma(int64(chains)), humanize.Comma(int64(length))),
				humanize.Comma(int64(iters)),
				calc.Time.Avg, calc.Time.P75, calc.Time.P99, calc.Time.Max,
			})
		}
	}

	tbl.Render()
	return nil
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}
