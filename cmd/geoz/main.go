// Command geoz runs coordinate transformation pipelines from the command
// line.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

const (
	logFormatFlag = "log-format"
	logLevelFlag  = "log-level"
)

// newRootCommand wires every subcommand to a viper instance reading CLI
// flags, environment variables prefixed with GEOZ, and geoz.yaml (in
// that order).
func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetConfigName("geoz")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GEOZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, path := range []string{"/etc/geoz", "$HOME/.geoz", "."} {
		v.AddConfigPath(path)
	}
	v.SetDefault(logFormatFlag, "text")
	v.SetDefault(logLevelFlag, "none")
	v.SetDefault(workersFlag, 0)

	root := &cobra.Command{
		Use:   "geoz",
		Short: "Geodetic coordinate transformation pipelines",
		Long: `geoz builds coordinate transformation pipelines from a textual
definition and runs them over coordinate tuples.

A definition is a sequence of steps separated by "|", each an operator or
macro name followed by key=value parameters and the inv, omit_fwd and
omit_inv modifiers:

  geoz transform -d "cart ellps=intl | helmert datum=ED50 | cart inv | utm zone=32" --degrees

Settings may also come from GEOZ_* environment variables or a geoz.yaml
file in /etc/geoz, $HOME/.geoz or the working directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := v.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return fmt.Errorf("reading config: %w", err)
				}
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.String(logFormatFlag, "text", "log format: text or json")
	flags.String(logLevelFlag, "none", "log level: none, debug, info, warn or error")

	root.AddCommand(
		newTransformCommand(v),
		newExplainCommand(v),
		newOperatorsCommand(v),
		newBenchmarkCommand(v),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
