package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zoobzio/geoz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	definitionFlag = "definition"
	macrosFlag     = "macros"
	recordsFlag    = "records"
	globalsFlag    = "globals"
	workersFlag    = "workers"
	nameFlag       = "name"
)

// addPipelineFlags registers the flags every pipeline-building command
// shares.
func addPipelineFlags(flags *pflag.FlagSet) {
	flags.StringP(definitionFlag, "d", "", "pipeline definition")
	flags.String(macrosFlag, "", "YAML file mapping macro names to definitions")
	flags.String(recordsFlag, "", "YAML file with extra ellipsoid and datum records")
	flags.StringToString(globalsFlag, nil, "parameters visible to every step, as key=value pairs")
	flags.Int(workersFlag, 0, "batch workers (0 uses GOMAXPROCS)")
	flags.String(nameFlag, "", "pipeline name reported in errors and events")
}

// newLogger builds the CLI logger. Logs go to stderr so they never mix
// with transformed output.
func newLogger(format, level string) (*zap.Logger, error) {
	if level == "none" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.CallerKey = ""
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case "json":
	case "text":
		cfg.Encoding = "console"
		cfg.DisableCaller = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	return cfg.Build()
}

// readMacros loads a macro file of the form
//
//	ed50: cart ellps=intl | helmert datum=ED50 | cart inv
func readMacros(path string) (geoz.Macros, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var macros geoz.Macros
	if err := yaml.Unmarshal(data, &macros); err != nil {
		return nil, fmt.Errorf("parsing macros %s: %w", path, err)
	}
	return macros, nil
}

func readRecords(path string) (geoz.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := geoz.ReadYAMLSource(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return geoz.Sources(src, geoz.Builtins()), nil
}

// buildPipeline turns the resolved settings into a pipeline. The
// returned logger is the one the pipeline logs to; callers sync it.
func buildPipeline(ctx context.Context, v *viper.Viper) (*geoz.Pipeline, *zap.Logger, error) {
	definition := v.GetString(definitionFlag)
	if definition == "" {
		return nil, nil, fmt.Errorf("missing pipeline definition (--%s)", definitionFlag)
	}

	logger, err := newLogger(v.GetString(logFormatFlag), v.GetString(logLevelFlag))
	if err != nil {
		return nil, nil, err
	}

	opts := []geoz.Option{geoz.WithLogger(logger)}
	if workers := v.GetInt(workersFlag); workers > 0 {
		opts = append(opts, geoz.WithWorkers(workers))
	}
	if name := v.GetString(nameFlag); name != "" {
		opts = append(opts, geoz.WithName(name))
	}
	if globals := v.GetStringMapString(globalsFlag); len(globals) > 0 {
		opts = append(opts, geoz.WithGlobals(globals))
	}
	if path := v.GetString(macrosFlag); path != "" {
		macros, err := readMacros(path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, geoz.WithMacros(macros))
	}
	if path := v.GetString(recordsFlag); path != "" {
		src, err := readRecords(path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, geoz.WithSource(src))
	}

	p, err := geoz.NewPipeline(ctx, definition, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}
