package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const formatFlag = "format"

func newExplainCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the expanded pipeline without running it",
		Long: `Build the pipeline, expanding every macro, and print its schema: one
node per step with its operator, parameters and direction flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := buildPipeline(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer p.Close()
			defer logger.Sync() //nolint:errcheck

			schema := p.Schema()
			var out []byte
			switch format := v.GetString(formatFlag); format {
			case "json":
				out, err = json.MarshalIndent(schema, "", "  ")
			case "yaml":
				out, err = schema.YAML()
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	flags := cmd.Flags()
	addPipelineFlags(flags)
	flags.StringP(formatFlag, "o", "json", "output format: json or yaml")
	return cmd
}
