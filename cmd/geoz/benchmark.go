package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zoobzio/geoz"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[37m"
)

const (
	countFlag    = "count"
	durationFlag = "duration"
)

func newBenchmarkCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "benchmark",
		Aliases: []string{"bench"},
		Short:   "Measure pipeline throughput on a synthetic batch",
		Long: `Run the pipeline repeatedly over a synthetic batch of geographic
tuples spread over Europe and report throughput.

The batch covers longitudes 0 to 20 and latitudes 40 to 60 degrees, so
the definition should accept geographic input in the forward direction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := buildPipeline(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer p.Close()
			defer logger.Sync() //nolint:errcheck

			count := v.GetInt(countFlag)
			if count <= 0 {
				return fmt.Errorf("--%s must be positive", countFlag)
			}
			duration := v.GetDuration(durationFlag)
			dir := geoz.Fwd
			if v.GetBool(inverseFlag) {
				dir = geoz.Inv
			}

			coords := syntheticBatch(count)
			if dir == geoz.Inv {
				// Feed the inverse with the forward results so it
				// starts from valid projected tuples.
				p.Forward(coords)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, colorCyan+"\n═══ %s ═══"+colorReset+"\n", p.Definition())
			fmt.Fprintf(out, colorGray+"%d tuples per batch, %s, %s\n"+colorReset, count, dir, duration)

			var batches, tuples, failures int
			start := time.Now()
			for time.Since(start) < duration || batches == 0 {
				results, err := p.Transform(cmd.Context(), dir, coords)
				if err != nil {
					return err
				}
				for _, r := range results {
					if r.Err != nil {
						failures++
					}
				}
				batches++
				tuples += len(results)
			}
			elapsed := time.Since(start)

			fmt.Fprintf(out, "  batches      %d\n", batches)
			fmt.Fprintf(out, "  tuples       %d\n", tuples)
			fmt.Fprintf(out, "  failures     %d\n", failures)
			fmt.Fprintf(out, "  tuples/s     %.0f\n", float64(tuples)/elapsed.Seconds())
			fmt.Fprintf(out, "  ns/tuple     %.1f\n", float64(elapsed.Nanoseconds())/float64(tuples))
			fmt.Fprintf(out, "  last batch   %.0f ms\n", p.Metrics().Gauge(geoz.PipelineDurationMs).Value())
			fmt.Fprintln(out, colorGreen+"\nBenchmark completed"+colorReset)
			return nil
		},
	}

	flags := cmd.Flags()
	addPipelineFlags(flags)
	flags.BoolP(inverseFlag, "I", false, "benchmark the inverse direction")
	flags.Int(countFlag, 100000, "tuples per batch")
	flags.Duration(durationFlag, 5*time.Second, "how long to keep running batches")
	return cmd
}

// syntheticBatch spreads n tuples over a square grid between 0E 40N and
// 20E 60N.
func syntheticBatch(n int) []geoz.Coord {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	coords := make([]geoz.Coord, n)
	for i := range coords {
		col, row := i%side, i/side
		coords[i] = geoz.Gis(20*float64(col)/float64(side), 40+20*float64(row)/float64(side), 0, 0)
	}
	return coords
}
