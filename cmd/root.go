package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/Yates-Labs/llmkit/internal/config"
	"github.com/Yates-Labs/llmkit/internal/llm"
	"github.com/Yates-Labs/llmkit/internal/metrics"
	"github.com/Yates-Labs/llmkit/internal/orchestrator"
)

var (
	configFile   string
	providerName string
	paramsFile   string
	cacheBackend string
	paramValues  []string
	metricsOut   string
)

var rootCmd = &cobra.Command{
	Use:   "llmkit",
	Short: "llmkit - Text completion from the command line",
	Long: `llmkit sends prompts to a text-completion service under one parameter
configuration and reports the generations and token usage.

Configuration is read from a YAML file (--config), then environment variables
(OPENAI_API_KEY, ANTHROPIC_API_KEY, LLMKIT_PROVIDER, ...), then flags.`,
	SilenceUsage: true,
}

func init() {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "", "Completion provider: openai, anthropic or mock")
	rootCmd.PersistentFlags().StringVar(&paramsFile, "params-file", "", "Parameter document (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&cacheBackend, "cache", "", "Response cache: none, memory or redis")
	rootCmd.PersistentFlags().StringArrayVarP(&paramValues, "param", "p", nil, "Parameter override as key=value (repeatable)")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics to this file on exit")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the application config from file, environment and flags.
func loadConfig() (*config.AppConfig, error) {
	cfg := config.NewConfig()
	if configFile != "" {
		if err := cfg.LoadFromYAML(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if providerName != "" {
		cfg.Provider = providerName
	}
	if paramsFile != "" {
		cfg.ParamsFile = paramsFile
	}
	if cacheBackend != "" {
		cfg.Cache.Backend = cacheBackend
	}

	overrides, err := parseParamValues(paramValues)
	if err != nil {
		return nil, err
	}
	if cfg.Params == nil {
		cfg.Params = map[string]any{}
	}
	for k, v := range overrides {
		cfg.Params[k] = v
	}
	return cfg, nil
}

// parseParamValues turns key=value pairs into typed values. Values are read as
// YAML scalars or flow mappings, so "0.2" is a float and "{50256: -100}" a map.
func parseParamValues(values []string) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for _, kv := range values {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", kv)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid --param %q: %w", kv, err)
		}
		if value == nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

// newPipeline builds the pipeline for a command, with a metrics recorder when
// --metrics-out is set. The returned finish func closes the pipeline and
// writes the metrics file.
func newPipeline(ctx context.Context) (*orchestrator.Pipeline, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var (
		opts []llm.Option
		reg  *prometheus.Registry
	)
	if metricsOut != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, llm.WithRecorder(metrics.NewRecorder(reg)))
	}

	pipeline, err := orchestrator.NewPipeline(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}

	finish := func() error {
		closeErr := pipeline.Close()
		if reg != nil {
			if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
		return closeErr
	}
	return pipeline, finish, nil
}
