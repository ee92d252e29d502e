package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zoobzio/geoz"
)

// operatorDocs gives each builtin a one-line description for listings.
var operatorDocs = map[geoz.Name]string{
	"noop":        "identity",
	"cart":        "geographic to geocentric cartesian",
	"helmert":     "3 or 7 parameter similarity transform",
	"tmerc":       "transverse Mercator",
	"utm":         "universal transverse Mercator",
	"merc":        "Mercator",
	"laea":        "Lambert azimuthal equal area",
	"unitconvert": "unit scaling",
	"axisswap":    "axis reordering and sign flips",
	"push":        "save elements on the scratch stack",
	"pop":         "restore elements from the scratch stack",
	"gridshift":   "datum shift interpolated from a grid",
	"latitude":    "geographic to conformal or authalic latitude",
}

func newOperatorsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operators",
		Aliases: []string{"list"},
		Short:   "List the available operators and macros",
		Long: `Display every builtin operator with a description, followed by the
macros of --macros if one is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Operators:")
			fmt.Fprintln(out)
			for _, name := range geoz.NewRegistry().Names() {
				fmt.Fprintf(out, "  %-12s %s\n", name, operatorDocs[name])
			}

			path := v.GetString(macrosFlag)
			if path == "" {
				return nil
			}
			macros, err := readMacros(path)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(macros))
			for name := range macros {
				names = append(names, name)
			}
			slices.Sort(names)

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Macros:")
			fmt.Fprintln(out)
			for _, name := range names {
				fmt.Fprintf(out, "  %-12s %s\n", name, strings.TrimSpace(macros[name]))
			}
			return nil
		},
	}
	cmd.Flags().String(macrosFlag, "", "YAML file mapping macro names to definitions")
	return cmd
}
