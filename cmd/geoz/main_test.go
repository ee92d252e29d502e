package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/geoz"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTransformCommand(t *testing.T) {
	t.Run("Round Trip In Degrees", func(t *testing.T) {
		out, err := execute(t, "12 55 100\n",
			"transform", "-d", "cart | cart inv", "--degrees", "--output-degrees", "--precision", "6")
		require.NoError(t, err)
		require.Equal(t, "12.000000 55.000000 100.000000 0.000000\n", out)
	})

	t.Run("Skips Blank And Comment Lines", func(t *testing.T) {
		out, err := execute(t, "# lon lat\n\n12 55\n  \n9 56\n",
			"transform", "-d", "utm zone=32", "--degrees", "--precision", "3")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		require.True(t, strings.HasPrefix(lines[0], "691875.632 "), lines[0])
		require.True(t, strings.HasPrefix(lines[1], "500000.000 "), lines[1])
	})

	t.Run("Inverse", func(t *testing.T) {
		out, err := execute(t, "500000 6207000\n",
			"transform", "-d", "utm zone=32", "--inverse", "--output-degrees", "--precision", "4")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(out, "9.0000 "), out)
	})

	t.Run("Globals", func(t *testing.T) {
		global, err := execute(t, "12 55\n", "transform", "-d", "cart", "--degrees", "--globals", "ellps=intl")
		require.NoError(t, err)
		local, err := execute(t, "12 55\n", "transform", "-d", "cart ellps=intl", "--degrees")
		require.NoError(t, err)
		require.Equal(t, local, global)
	})

	t.Run("Macros And Records", func(t *testing.T) {
		macros := writeFile(t, "macros.yaml", "local: cart ellps=mine | helmert datum=site | cart ellps=mine inv\n")
		records := writeFile(t, "records.yaml", `
ellipsoids:
  mine: {a: 6378000, rf: 300}
datums:
  site: {ellps: mine, x: 10, y: -5, z: 3}
`)
		out, err := execute(t, "12 55 10\n",
			"transform", "-d", "local | local inv", "--macros", macros, "--records", records,
			"--degrees", "--output-degrees", "--precision", "6")
		require.NoError(t, err)
		require.Equal(t, "12.000000 55.000000 10.000000 0.000000\n", out)
	})

	t.Run("Failed Tuples", func(t *testing.T) {
		out, err := execute(t, "12 55\n12 95\n", "transform", "-d", "cart", "--degrees")
		require.ErrorContains(t, err, "1 of 2 tuples failed")
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		require.False(t, strings.Contains(lines[0], "NaN"))
		require.True(t, strings.HasPrefix(lines[1], "NaN NaN NaN NaN  # "), lines[1])
	})

	t.Run("Bad Input", func(t *testing.T) {
		_, err := execute(t, "12 abc\n", "transform", "-d", "noop")
		require.ErrorContains(t, err, `line 1: element 2: "abc" is not a number`)

		_, err = execute(t, "1 2 3 4 5\n", "transform", "-d", "noop")
		require.ErrorContains(t, err, "at most 4")
	})

	t.Run("Missing Definition", func(t *testing.T) {
		_, err := execute(t, "", "transform")
		require.ErrorContains(t, err, "missing pipeline definition")
	})

	t.Run("Construction Errors", func(t *testing.T) {
		_, err := execute(t, "", "transform", "-d", "utm")
		require.ErrorIs(t, err, geoz.ErrMissingParameter)

		_, err = execute(t, "", "transform", "-d", "noop", "--log-level", "loud")
		require.ErrorContains(t, err, "unknown log level")
	})
}

func TestExplainCommand(t *testing.T) {
	macros := writeFile(t, "macros.yaml", "ed50: cart ellps=intl | helmert x=-87 y=-96 z=-120 | cart inv\n")

	t.Run("JSON", func(t *testing.T) {
		out, err := execute(t, "", "explain", "-d", "ed50 | utm zone=32", "--macros", macros, "--name", "ed50-utm")
		require.NoError(t, err)

		var schema geoz.Schema
		require.NoError(t, json.Unmarshal([]byte(out), &schema))
		require.Equal(t, "ed50-utm", schema.Root.Name)
		require.Len(t, schema.Root.Children, 4)
		require.Equal(t, "helmert", schema.Root.Children[1].Name)
		require.Equal(t, "-87", schema.Root.Children[1].Params["x"])
		require.True(t, schema.Root.Children[2].Inverted)
	})

	t.Run("YAML", func(t *testing.T) {
		out, err := execute(t, "", "explain", "-d", "utm zone=32", "-o", "yaml")
		require.NoError(t, err)
		require.Contains(t, out, "name: utm")
	})

	t.Run("Unknown Format", func(t *testing.T) {
		_, err := execute(t, "", "explain", "-d", "noop", "-o", "xml")
		require.ErrorContains(t, err, `unknown format "xml"`)
	})
}

func TestOperatorsCommand(t *testing.T) {
	out, err := execute(t, "", "operators")
	require.NoError(t, err)
	for _, name := range geoz.NewRegistry().Names() {
		require.Contains(t, out, "  "+name)
	}
	require.NotContains(t, out, "Macros:")

	macros := writeFile(t, "macros.yaml", "ed50: cart ellps=intl | helmert datum=ED50 | cart inv\n")
	out, err = execute(t, "", "list", "--macros", macros)
	require.NoError(t, err)
	require.Contains(t, out, "Macros:")
	require.Contains(t, out, "ed50         cart ellps=intl | helmert datum=ED50 | cart inv")

	macros = writeFile(t, "short.yaml", "y: noop\nn: noop inv\n")
	out, err = execute(t, "", "operators", "--macros", macros)
	require.NoError(t, err)
	require.Contains(t, out, "  n            noop inv")
	require.Contains(t, out, "  y            noop")
}

func TestBenchmarkCommand(t *testing.T) {
	out, err := execute(t, "", "benchmark", "-d", "utm zone=32", "--count", "50", "--duration", "1ms")
	require.NoError(t, err)
	require.Contains(t, out, "failures     0")
	require.Contains(t, out, "Benchmark completed")

	_, err = execute(t, "", "bench", "-d", "utm zone=32", "--inverse", "--count", "10", "--duration", "1ms")
	require.NoError(t, err)

	_, err = execute(t, "", "bench", "-d", "noop", "--count", "0")
	require.ErrorContains(t, err, "--count must be positive")
}

func TestSyntheticBatch(t *testing.T) {
	coords := syntheticBatch(10)
	require.Len(t, coords, 10)
	for _, c := range coords {
		g := c.ToGeo()
		require.GreaterOrEqual(t, g[0], 40.0)
		require.Less(t, g[0], 60.0)
		require.GreaterOrEqual(t, g[1], 0.0)
		require.Less(t, g[1], 20.0)
	}
}
