// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	otelapi "go.opentelemetry.io/otel"

	"github.com/datavapte/ecctransform/cmd/config"
	"github.com/datavapte/ecctransform/internal/log/zerolog"
	"github.com/datavapte/ecctransform/internal/profiling"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/otel"
)

// Version is the ecctransform version
var (
	Version = "development"
	Env     string
)

func Prepare() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ecctransform",
		Short:        "Extracts SAP ECC tables, maps them into migration templates and applies the client transformation rules",
		SilenceUsage: true,
		Version:      version(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			return nil
		},
	}

	// keys carry the ECCTRANSFORM_ prefix already
	viper.AutomaticEnv()

	// Flag definition

	// root cmd
	rootCmd.PersistentFlags().StringP("config", "c", "", ".env or .yaml config file to use with ecctransform if any")
	rootCmd.PersistentFlags().String("log-level", "info", "log level for the application. One of trace, debug, info, warn, error, fatal, panic")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write the logs as JSON lines instead of the console format")

	// run cmd
	runCmd.Flags().String("template-name", "", "Name of the migration template to fill")
	runCmd.Flags().String("template-version", "", "Version of the migration template")
	runCmd.Flags().String("client-id", "", "Client whose field mappings and transformation rules apply")
	runCmd.Flags().String("output-dir", "", "Parent directory of the run output directory")
	runCmd.Flags().Bool("profile", false, "Whether to produce CPU and memory profile files")
	runCmd.Flags().String("profile-dir", ".", "Directory where the profile files are written")

	// fields cmd
	fieldsCmd.Flags().String("template-name", "", "Name of the migration template")
	fieldsCmd.Flags().String("template-version", "", "Version of the migration template")
	fieldsCmd.Flags().String("client-id", "", "Client whose field mappings apply")
	fieldsCmd.Flags().Bool("json", false, "Output the extraction plan in JSON format")

	// validate cmd
	// validate rules cmd
	validateRulesCmd.Flags().String("client-id", "", "Client whose transformation rules are validated")
	validateRulesCmd.Flags().Bool("json", false, "Output the validation status in JSON format")
	validateCmd.AddCommand(validateRulesCmd)

	// Flag binding for root cmd
	rootFlagBinding(rootCmd)

	// register subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(validateCmd)
	return rootCmd
}

// Execute executes the root command.
func Execute() error {
	cmd := Prepare()
	return cmd.Execute()
}

func withSignalWatcher(fn func(ctx context.Context) error) func(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-sigc
		cancel()
	}()

	return func(cmd *cobra.Command, args []string) error {
		defer cancel()
		return fn(ctx)
	}
}

func withProfiling(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if cmd.Flags().Lookup("profile").Value.String() == "false" {
			return fn(cmd, args)
		}

		stop, err := profiling.Start(cmd.Flags().Lookup("profile-dir").Value.String())
		if err != nil {
			return err
		}
		defer func() {
			if stopErr := stop(); stopErr != nil && err == nil {
				err = stopErr
			}
		}()

		return fn(cmd, args)
	}
}

func rootFlagBinding(cmd *cobra.Command) {
	viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("ECCTRANSFORM_LOG_LEVEL", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("ECCTRANSFORM_LOG_JSON", cmd.PersistentFlags().Lookup("log-json"))
}

// requestFlagBinding lets the request flags overwrite both the yaml and the
// env configuration.
func requestFlagBinding(cmd *cobra.Command) {
	bindings := []struct {
		flag    string
		yamlKey string
		envKey  string
	}{
		{flag: "template-name", yamlKey: "run.template_name", envKey: "ECCTRANSFORM_TEMPLATE_NAME"},
		{flag: "template-version", yamlKey: "run.template_version", envKey: "ECCTRANSFORM_TEMPLATE_VERSION"},
		{flag: "client-id", yamlKey: "run.client_id", envKey: "ECCTRANSFORM_CLIENT_ID"},
		{flag: "output-dir", yamlKey: "run.output_dir", envKey: "ECCTRANSFORM_OUTPUT_DIR"},
	}
	for _, b := range bindings {
		bindChangedFlag(cmd.Flags().Lookup(b.flag), b.yamlKey, b.envKey)
	}
}

// bindChangedFlag binds the flag to the keys only when set, so the
// configuration file values are kept otherwise.
func bindChangedFlag(flag *pflag.Flag, keys ...string) {
	if flag == nil || !flag.Changed {
		return
	}
	for _, key := range keys {
		viper.BindPFlag(key, flag)
	}
}

func version() string {
	if Env != "" {
		return Env + " (" + Version + ")"
	}
	return Version
}

func newLogger() loglib.Logger {
	logger := zerolog.NewLogger(&zerolog.Config{
		LogLevel: viper.GetString("ECCTRANSFORM_LOG_LEVEL"),
		JSON:     viper.GetBool("ECCTRANSFORM_LOG_JSON"),
	})
	zerolog.SetGlobalLogger(logger)
	// exporter errors from the otel sdk end up in the run logs
	otelapi.SetLogger(zerolog.NewLogrLogger(logger))
	return zerolog.NewStdLogger(logger)
}

func newInstrumentationProvider() (otel.InstrumentationProvider, error) {
	cfg, err := config.ParseInstrumentationConfig()
	if err != nil {
		return nil, fmt.Errorf("parsing instrumentation config: %w", err)
	}

	p, err := otel.NewInstrumentationProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialisating instrumentation provider: %w", err)
	}
	return p, nil
}
