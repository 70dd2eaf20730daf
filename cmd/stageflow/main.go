package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/zen-systems/stageflow/pkg/adapter"
	"github.com/zen-systems/stageflow/pkg/backend"
	"github.com/zen-systems/stageflow/pkg/config"
	"github.com/zen-systems/stageflow/pkg/pipeline"
	"github.com/zen-systems/stageflow/pkg/pipelines"
	"github.com/zen-systems/stageflow/pkg/trace"
)

var (
	adapterFlag string
	modelFlag   string
	mockFlag    bool
	verboseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stageflow",
		Short: "Dependency-aware LLM pipeline runner with structured outputs",
		Long: `Stageflow composes LLM calls into multi-stage pipelines. Stages with no
data dependency between them run concurrently; failed stages fall back
to declared defaults instead of aborting the run; and every pipeline
produces a validated structured record.`,
	}

	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "default adapter for stages without an override")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "default model for stages without an override")
	rootCmd.PersistentFlags().BoolVar(&mockFlag, "mock", false, "use the mock adapter only (no API keys needed)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log stage dispatch and outcomes")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(pipelinesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var inputFlag string
	var traceFlag string

	cmd := &cobra.Command{
		Use:   "run [pipeline]",
		Short: "Run a pipeline against input text",
		Long: `Runs a built-in pipeline (see "stageflow pipelines") or a YAML manifest
path against the input text. Input comes from --input or stdin. The
assembled record is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := resolvePipeline(args[0])
			if err != nil {
				return err
			}

			graph, err := pipeline.Build(def)
			if err != nil {
				return err
			}

			input := inputFlag
			if input == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				input = string(data)
			}
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("no input provided; use --input or pipe text to stdin")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			b, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			opts := []pipeline.Option{pipeline.WithLogger(newLogger())}
			traceDir := traceFlag
			if traceDir == "" {
				traceDir = cfg.TraceDir
			}
			if traceDir != "" {
				recorder, err := trace.NewRecorder(traceDir)
				if err != nil {
					return fmt.Errorf("trace recorder: %w", err)
				}
				opts = append(opts, pipeline.WithRecorder(recorder))
			}

			inputs := map[string]string{}
			if len(def.Inputs) == 1 {
				inputs[def.Inputs[0]] = input
			} else {
				if err := json.Unmarshal([]byte(input), &inputs); err != nil {
					return fmt.Errorf("pipeline %s expects inputs %v as a JSON object: %w", def.Name, def.Inputs, err)
				}
			}

			record, err := pipeline.NewExecutor(b, opts...).RunContext(cmd.Context(), graph, inputs)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&inputFlag, "input", "", "input text (defaults to stdin)")
	cmd.Flags().StringVar(&traceFlag, "trace", "", "directory for per-run trace bundles")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Check a pipeline manifest builds into a valid graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := pipeline.LoadManifest(args[0])
			if err != nil {
				return err
			}
			graph, err := pipeline.Build(def)
			if err != nil {
				return err
			}

			fmt.Printf("pipeline %s: %d stages in %d layers\n", def.Name, len(def.Stages), len(graph.Layers()))
			for i, layer := range graph.Layers() {
				names := make([]string, 0, len(layer))
				for _, stage := range layer {
					names = append(names, stage.Name)
				}
				fmt.Printf("  layer %d: %s\n", i, strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available adapters and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			adapters, err := buildAdapters(cfg)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(adapters))
			for name := range adapters {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADAPTER\tMODELS")
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(adapters[name].Models(), ", "))
			}
			return w.Flush()
		},
	}
}

func pipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List built-in pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTAGES\tDESCRIPTION")
			for _, def := range pipelines.All() {
				fmt.Fprintf(w, "%s\t%d\t%s\n", def.Name, len(def.Stages), def.Description)
			}
			return w.Flush()
		},
	}
}

func resolvePipeline(nameOrPath string) (*pipeline.Definition, error) {
	if def := pipelines.ByName(nameOrPath); def != nil {
		return def, nil
	}
	if _, err := os.Stat(nameOrPath); err == nil {
		return pipeline.LoadManifest(nameOrPath)
	}
	return nil, fmt.Errorf("unknown pipeline %q; expected a built-in name or a manifest path", nameOrPath)
}

func buildAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)
	adapters["mock"] = adapter.NewMockAdapter()
	if mockFlag {
		return adapters, nil
	}

	if cfg.HasAdapter("anthropic") {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["anthropic"] = a
	}
	if cfg.HasAdapter("openai") {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["openai"] = a
	}
	if cfg.HasAdapter("google") {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["google"] = a
	}
	if cfg.HasAdapter("deepseek") {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["deepseek"] = a
	}
	return adapters, nil
}

func buildBackend(cfg *config.Config) (*backend.LLMBackend, error) {
	adapters, err := buildAdapters(cfg)
	if err != nil {
		return nil, err
	}

	defaultAdapter := adapterFlag
	if defaultAdapter == "" {
		defaultAdapter = cfg.DefaultAdapter
	}
	if mockFlag {
		defaultAdapter = "mock"
	}
	if defaultAdapter == "" {
		defaultAdapter = pickConfigured(adapters)
	}
	defaultModel := modelFlag
	if defaultModel == "" {
		defaultModel = cfg.DefaultModel
	}

	opts := []backend.Option{
		backend.WithDefaults(defaultAdapter, defaultModel),
		backend.WithLogger(newLogger()),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, backend.WithCache(cfg.CacheTTL))
	}
	return backend.New(adapters, opts...), nil
}

// pickConfigured prefers a real provider over the always-present mock.
func pickConfigured(adapters map[string]adapter.Adapter) string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		if name != "mock" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "mock"
	}
	sort.Strings(names)
	return names[0]
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
