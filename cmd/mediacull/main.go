package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mediacull/internal/auth"
	"mediacull/internal/config"
	"mediacull/internal/logging"
	"mediacull/internal/scorer"
)

// CLI flags shared by every subcommand.
var (
	configFlag  string
	verboseFlag bool

	inputFlag    string
	outputFlag   string
	providerFlag string
	modelFlag    string
	baseURLFlag  string
	workersFlag  int
	resumeFlag   bool
	forceFlag    bool
	dryRunFlag   bool
)

// rootCmd is the main Cobra command for the mediacull CLI.
var rootCmd = &cobra.Command{
	Use:   "mediacull",
	Short: "AI-assisted photo and video curation",
	Long: `Mediacull scores photos and video clips with a vision model, removes
near-duplicates by perceptual hash, and keeps only the best of a shoot:
the top photos copied into a selected folder, or the best clips stitched
into a short digest video.

Scores are cached by content fingerprint, so interrupted runs resume
where they left off with --resume instead of paying for the same
inference twice.

Examples:
  mediacull photos -i ./shoot -o ./culled --target-count 20
  mediacull videos -i ./gopro -o ./digest --preset shorts9x16
  mediacull photos -i ./shoot -o ./culled --resume --dry-run`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		if verboseFlag {
			logging.SetVerbose()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a YAML config file (default: mediacull.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Ctrl-C cancels the run between steps; progress already flushed to the
	// manifest and score cache is picked up by the next --resume.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// registerCommonFlags adds the input/output, scorer, and run-mode flags both
// subcommands share.
func registerCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Input directory (prompts when omitted)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory")
	cmd.Flags().StringVar(&providerFlag, "provider", config.ProviderOllama, "Scorer backend: ollama, openai, or gemini")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Vision model name (default: provider env var or built-in default)")
	cmd.Flags().StringVar(&baseURLFlag, "base-url", "http://localhost:11434", "Base URL for ollama or an OpenAI-compatible server")
	cmd.Flags().IntVar(&workersFlag, "workers", 4, "Parallel scoring workers")
	cmd.Flags().BoolVar(&resumeFlag, "resume", false, "Skip files whose scores are already cached")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Rescore everything, overwriting cached scores")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the execution plan as JSON without writing anything")
}

// loadConfig reads the config file and merges the flags every subcommand
// shares over it. Flags the user did not pass leave file values alone.
// Subcommand-specific flags are merged by the caller before Finalize.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	fl := cmd.Flags()
	if fl.Changed("provider") {
		cfg.Provider = providerFlag
	}
	if fl.Changed("model") {
		cfg.Model = modelFlag
	}
	if fl.Changed("base-url") {
		cfg.BaseURL = baseURLFlag
	}
	if fl.Changed("workers") {
		cfg.Workers = workersFlag
	}
	return cfg, nil
}

// resolveModel fills in the model name when neither flag nor file set one:
// the provider's env var first, then the provider's built-in default.
// Ollama has no built-in default, so there it must be configured.
func resolveModel(cfg *config.Config) error {
	if cfg.Model != "" {
		return nil
	}
	if env := os.Getenv(modelEnvVar(cfg.Provider)); env != "" {
		cfg.Model = env
		return nil
	}
	if def := scorer.DefaultModel(cfg.Provider); def != "" {
		cfg.Model = def
		return nil
	}
	return fmt.Errorf("no model configured: set --model or %s", modelEnvVar(cfg.Provider))
}

func modelEnvVar(provider string) string {
	switch provider {
	case config.ProviderGemini:
		return "GEMINI_MODEL"
	case config.ProviderOpenAI:
		return "OPENAI_MODEL"
	default:
		return "OLLAMA_MODEL"
	}
}

// initScorer builds the scoring backend for cfg, resolving API keys for the
// hosted providers and checking that a local Ollama server is reachable.
func initScorer(cmd *cobra.Command, cfg *config.Config) (scorer.Scorer, error) {
	opts := scorer.Options{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		key, err := auth.APIKey("GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		if err := auth.ValidateKey(cfg.Provider, key); err != nil {
			return nil, err
		}
		opts.APIKey = key
	case config.ProviderOpenAI:
		key, err := auth.APIKey("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		if err := auth.ValidateKey(cfg.Provider, key); err != nil {
			return nil, err
		}
		opts.APIKey = key
	}

	ctx := cmd.Context()
	s, err := scorer.New(ctx, opts)
	if err != nil {
		return nil, err
	}

	if o, ok := s.(*scorer.Ollama); ok {
		if err := o.Ping(ctx); err != nil {
			return nil, err
		}
	}

	log.Info().Str("provider", s.Name()).Str("model", cfg.Model).Msg("Scorer ready")
	return s, nil
}

// resolveInputDir checks that the path exists and is a directory, then
// returns the absolute path.
func resolveInputDir(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("input directory not found: %s", path)
		}
		return "", fmt.Errorf("failed to access input directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("input path is not a directory: %s", path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// resolveInputPath is resolveInputDir for inputs that may also be a single
// file, such as one source video.
func resolveInputPath(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("input path not found: %s", path)
		}
		return "", fmt.Errorf("failed to access input path: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// resolveOutputDir returns the absolute output path. When create is set the
// directory is made on the spot so an unwritable destination fails before
// any scoring work starts. Dry runs pass create=false and touch nothing.
func resolveOutputDir(path string, create bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("output directory is required (--output)")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if create {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return path, nil
}

// promptForDirectory prompts interactively for a directory path, defaulting
// to the current directory on empty input.
func promptForDirectory() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	fmt.Printf("Directory [%s]: ", cwd)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input, using current directory")
		return cwd
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return cwd
	}
	return input
}

// printJSON writes v to stdout as indented JSON, the machine-readable half
// of the run output. Logs stay on stderr.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// formatDurationShort formats a duration as M:SS or H:MM:SS.
func formatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
