package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	defaultIncludes = []string{"*.py", "*.html", "*.js", "*.css", "*.json", "*.yaml", "*.txt", "*.md"}
	defaultExcludes = []string{"*.pyc", "*egg-info*", "*tmp*"}
	defaultMarkers  = []string{"pyvenv.cfg"}
)

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

// runOptions is the fully resolved configuration of one aggregation run.
type runOptions struct {
	Walk        walkOptions
	Deliver     deliverOptions
	Tokenizer   tokenizerConfig
	NoTokens    bool
	PDFFile     string
	Interactive bool
}

var rootCmd = newRootCmd()

// newRootCmd builds the root command and binds its flags into the global
// viper instance.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promptify [DIR]",
		Short: "Promptify bundles project files into one prompt-ready text blob.",
		Long: `Promptify walks a project directory, selects files matching glob patterns,
concatenates them with file headers and copies the result to the clipboard
(falling back to a file), together with token and character counts and a
manifest of included and skipped files.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFromConfig(viper.GetViper())
			if len(args) == 1 {
				opts.Walk.Root = args[0]
			}

			if name := viper.GetString("profile"); name != "" {
				p, err := profileStore().Load(name)
				if err != nil {
					return err
				}
				applyProfile(&opts, p, cmd.Flags().Changed)
				logger.Debug("Applied profile", zap.String("profile", name))
			}

			if name := viper.GetString("save_profile"); name != "" {
				store := profileStore()
				if err := store.Save(name, profileFromOptions(opts)); err != nil {
					return fmt.Errorf("error saving profile %s: %w", name, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Profile '%s' saved to %s\n", name, store.Path())
			}

			return run(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
		},
	}
	bindFlags(cmd)
	cmd.AddCommand(versionCmd, profileCmd)
	return cmd
}

// run executes the pipeline: walk, filter, read, format, summarize, deliver.
func run(opts runOptions, out, errOut io.Writer, logger *zap.Logger) error {
	records, err := collectFiles(opts.Walk, logger)
	if err != nil {
		return err
	}

	if opts.Interactive {
		records, err = narrowInteractively(records)
		if errors.Is(err, errSelectionAborted) {
			fmt.Fprintln(errOut, "Interactive selection aborted.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	text := aggregate(records)

	var tk Tokenizer
	if !opts.NoTokens {
		tk, err = getTokenizer(opts.Tokenizer, logger)
		if err != nil {
			logger.Warn("Token counting disabled", zap.Error(err))
			tk = nil
		}
	}
	md := computeMetadata(text, records, tk)

	// The report goes to stderr when stdout carries the blob itself.
	status := out
	if opts.Deliver.Stdout {
		status = errOut
	}

	manifest := printTree(buildTree(records, rootLabel(opts.Walk.Root)))
	fmt.Fprint(status, manifest)
	fmt.Fprintln(status, renderMetadata(md))

	if md.IncludedFiles == 0 {
		logger.Warn("No files were included, nothing to deliver")
		return nil
	}

	if opts.PDFFile != "" {
		if err := generatePDF(records, manifest, md, opts.PDFFile, logger); err != nil {
			logger.Error("Error generating PDF", zap.Error(err))
		} else {
			fmt.Fprintf(status, "PDF saved to %s\n", opts.PDFFile)
		}
	}

	return deliver(text, opts.Deliver, out, status, logger)
}

func rootLabel(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return filepath.Base(abs)
}

// optionsFromConfig reads the merged default/config/env/flag values. Pattern
// lists are taken as given: flags split on commas, env values on whitespace.
func optionsFromConfig(v *viper.Viper) runOptions {
	return runOptions{
		Walk: walkOptions{
			Root:         ".",
			Include:      v.GetStringSlice("include"),
			Exclude:      v.GetStringSlice("exclude"),
			StopMarkers:  v.GetStringSlice("stop_markers"),
			IgnoreEmpty:  v.GetBool("ignore_empty"),
			ForceInclude: v.GetBool("force_include"),
			UseGitignore: v.GetBool("gitignore"),
			TrackedOnly:  v.GetBool("tracked"),
			MaxSize:      v.GetInt64("max_size"),
		},
		Deliver: deliverOptions{
			OutputFile:  v.GetString("output_file"),
			AlwaysWrite: v.GetBool("write"),
			Stdout:      v.GetBool("stdout"),
		},
		Tokenizer: tokenizerConfig{
			Type:  v.GetString("tokenizer"),
			Model: v.GetString("model"),
			File:  v.GetString("tokenizer_file"),
		},
		NoTokens:    v.GetBool("no_tokens"),
		PDFFile:     v.GetString("pdf"),
		Interactive: v.GetBool("interactive"),
	}
}

// applyProfile overlays p onto opts for every setting whose flag was not
// given explicitly on the command line.
func applyProfile(opts *runOptions, p Profile, changed func(string) bool) {
	if !changed("include") && len(p.Include) > 0 {
		opts.Walk.Include = p.Include
	}
	if !changed("exclude") {
		opts.Walk.Exclude = p.Exclude
	}
	if !changed("ignore-empty") {
		opts.Walk.IgnoreEmpty = p.IgnoreEmpty
	}
	if !changed("force") {
		opts.Walk.ForceInclude = p.ForceInclude
	}
}

func profileFromOptions(opts runOptions) Profile {
	return Profile{
		Include:      opts.Walk.Include,
		Exclude:      opts.Walk.Exclude,
		IgnoreEmpty:  opts.Walk.IgnoreEmpty,
		ForceInclude: opts.Walk.ForceInclude,
	}
}

func profileStore() *ProfileStore {
	return NewProfileStore(viper.GetString("profiles_file"))
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "promptify")
}

func init() {
	cobra.OnInitialize(initLogger, initConfig)
}

func bindFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/promptify/config.toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.Bool("no-color", false, "Disable colored output")
	viper.BindPFlag("no_color", pf.Lookup("no-color"))
	pf.String("profiles-file", "", "Profile store (default is $HOME/.config/promptify/profiles.yaml)")
	viper.BindPFlag("profiles_file", pf.Lookup("profiles-file"))

	f := cmd.Flags()

	// Filtering
	f.StringSliceP("include", "i", defaultIncludes, "File patterns to include")
	viper.BindPFlag("include", f.Lookup("include"))
	f.StringSliceP("exclude", "e", defaultExcludes, "File patterns to exclude (win over includes)")
	viper.BindPFlag("exclude", f.Lookup("exclude"))
	f.Bool("ignore-empty", false, "Ignore empty files")
	viper.BindPFlag("ignore_empty", f.Lookup("ignore-empty"))
	f.BoolP("force", "F", false, "Include files flagged as possibly containing secrets")
	viper.BindPFlag("force_include", f.Lookup("force"))
	f.StringSlice("stop-marker", defaultMarkers, "File names that stop descent into the directory holding them")
	viper.BindPFlag("stop_markers", f.Lookup("stop-marker"))
	f.Bool("gitignore", false, "Respect .gitignore files")
	viper.BindPFlag("gitignore", f.Lookup("gitignore"))
	f.Bool("tracked", false, "Only include files tracked in the git index")
	viper.BindPFlag("tracked", f.Lookup("tracked"))
	f.Int64P("max-size", "s", 0, "Maximum file size in bytes (0 for no limit)")
	viper.BindPFlag("max_size", f.Lookup("max-size"))

	// Output
	f.StringP("output", "o", defaultOutputFile, "File written when the clipboard is unavailable")
	viper.BindPFlag("output_file", f.Lookup("output"))
	f.BoolP("write", "w", false, "Always write the output file, even if the clipboard works")
	viper.BindPFlag("write", f.Lookup("write"))
	f.BoolP("stdout", "p", false, "Print the output to stdout instead of the clipboard")
	viper.BindPFlag("stdout", f.Lookup("stdout"))
	f.String("pdf", "", "Also save the included files as PDF")
	viper.BindPFlag("pdf", f.Lookup("pdf"))

	// Token Counting
	f.Bool("no-tokens", false, "Disable token counting")
	viper.BindPFlag("no_tokens", f.Lookup("no-tokens"))
	f.String("tokenizer", "tiktoken", "Tokenizer to use: tiktoken or huggingface")
	viper.BindPFlag("tokenizer", f.Lookup("tokenizer"))
	f.String("model", defaultTiktokenModel, "Model name for tiktoken (e.g., gpt-4, gpt-3.5-turbo)")
	viper.BindPFlag("model", f.Lookup("model"))
	f.String("tokenizer-file", "", "Path to a local tokenizer.json for huggingface")
	viper.BindPFlag("tokenizer_file", f.Lookup("tokenizer-file"))

	// Selection and profiles
	f.Bool("interactive", false, "Pick included files in a fuzzy finder before delivery")
	viper.BindPFlag("interactive", f.Lookup("interactive"))
	f.String("profile", "", "Load filter settings from a saved profile")
	viper.BindPFlag("profile", f.Lookup("profile"))
	f.String("save-profile", "", "Save the effective filter settings as a named profile")
	viper.BindPFlag("save_profile", f.Lookup("save-profile"))
}

func initLogger() {
	l, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize logger: %v\n", err)
		return
	}
	logger = l
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("PROMPTIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("profiles_file", filepath.Join(configDir(), "profiles.yaml"))

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
	} else {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("No config file found, using defaults and flags")
		} else {
			logger.Warn("Error reading config file", zap.Error(err))
		}
	}

	if viper.GetBool("no_color") {
		color.NoColor = true
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		syncLogger(logger)
		os.Exit(1)
	}
	syncLogger(logger)
}
