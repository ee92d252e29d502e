package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zoobzio/geoz"
	"go.uber.org/zap"
)

const (
	inverseFlag       = "inverse"
	degreesFlag       = "degrees"
	outputDegreesFlag = "output-degrees"
	precisionFlag     = "precision"
)

func newTransformCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform coordinate tuples read from stdin",
		Long: `Read coordinate tuples from stdin, one per line, and write the
transformed tuples to stdout in the same order.

Each line holds up to four whitespace-separated numbers; missing trailing
elements are zero. Blank lines and lines starting with # are skipped.
Angular elements are radians unless --degrees (input) or
--output-degrees (output) is given, in which case the first two elements
are longitude and latitude in degrees.

A tuple that falls outside an operator's domain is written as NaN with
the error appended as a comment; the command then exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := buildPipeline(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer p.Close()
			defer logger.Sync() //nolint:errcheck

			dir := geoz.Fwd
			if v.GetBool(inverseFlag) {
				dir = geoz.Inv
			}
			coords, err := readTuples(cmd.InOrStdin(), v.GetBool(degreesFlag))
			if err != nil {
				return err
			}

			results, err := p.Transform(cmd.Context(), dir, coords)
			if err != nil {
				return err
			}

			failed := 0
			out := bufio.NewWriter(cmd.OutOrStdout())
			for i, r := range results {
				c := r.Coord
				if v.GetBool(outputDegreesFlag) {
					c = c.ToDegrees()
				}
				line := formatTuple(c, v.GetInt(precisionFlag))
				if r.Err != nil {
					failed++
					logger.Warn("tuple failed", zap.Int("index", i), zap.Error(r.Err))
					line += "  # " + r.Err.Error()
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			if err := out.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tuples failed", failed, len(results))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	addPipelineFlags(flags)
	flags.BoolP(inverseFlag, "I", false, "run the pipeline in the inverse direction")
	flags.Bool(degreesFlag, false, "input longitude and latitude are in degrees")
	flags.Bool(outputDegreesFlag, false, "write longitude and latitude in degrees")
	flags.Int(precisionFlag, -1, "decimals written per element (-1 for the shortest exact form)")
	return cmd
}

// readTuples parses whitespace separated tuples, one per line.
func readTuples(r io.Reader, degrees bool) ([]geoz.Coord, error) {
	var coords []geoz.Coord
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) > len(geoz.Coord{}) {
			return nil, fmt.Errorf("line %d: %d elements, at most %d allowed", line, len(fields), len(geoz.Coord{}))
		}
		var c geoz.Coord
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: element %d: %q is not a number", line, i+1, f)
			}
			c[i] = v
		}
		if degrees {
			c = c.ToRadians()
		}
		coords = append(coords, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return coords, nil
}

func formatTuple(c geoz.Coord, precision int) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'f', precision, 64)
	}
	return strings.Join(parts, " ")
}
