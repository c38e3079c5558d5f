package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version   = ""
	CommitSHA = ""
)

var (
	config Config

	rootCmd = &cobra.Command{
		Use:           "relay",
		Short:         "Chat with a model that can call functions, from your terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(config)

			switch {
			case config.Version:
				fmt.Println(versionString())
				return nil
			case config.ShowHelp:
				return usageFunc(cmd)
			case config.Settings:
				return editSettings()
			case config.Dirs:
				fmt.Printf("Configuration: %s\n", filepath.Dir(config.SettingsPath))
				fmt.Printf("Cache:         %s\n", config.CachePath)
				return nil
			case config.ListRoles:
				listRoles(config)
				return nil
			case config.ListFunctions:
				return listFunctions(ctx, config, logger)
			case config.List:
				return withStore(config, listConversations)
			case config.Show != "" || config.ShowLast:
				return withStore(config, func(store *convoStore) error {
					return showConversation(store, config.Show)
				})
			case len(config.Delete) > 0:
				return withStore(config, func(store *convoStore) error {
					return deleteConversations(store, config.Delete)
				})
			}

			prompt, err := readPrompt(args)
			if err != nil {
				return err
			}
			if prompt == "" && !config.ContinueLast && config.Continue == "" {
				return relayError{
					reason: "You haven't provided any prompt input.",
					err: newUserErrorf(
						"You can give your prompt as arguments and/or pipe it from STDIN.\nExample: %s",
						stdoutStyles().InlineCode.Render("relay [prompt]"),
					),
				}
			}
			return generate(ctx, logger, prompt)
		},
	}
)

func versionString() string {
	if Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			Version = info.Main.Version
		} else {
			Version = "unknown (built from source)"
		}
	}
	version := fmt.Sprintf("relay version %s", Version)
	if len(CommitSHA) >= convIDShort {
		version += " (" + CommitSHA[:convIDShort] + ")"
	}
	return version
}

func newLogger(cfg Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "relay",
		ReportTimestamp: cfg.LogLevel == "debug",
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("invalid log level, using warn", "level", cfg.LogLevel)
		level = log.WarnLevel
	}
	logger.SetLevel(level)
	return logger
}

func initFlags() {
	flags := rootCmd.Flags()
	flags.StringVarP(&config.Model, "model", "m", config.Model, help["model"])
	flags.StringVarP(&config.API, "api", "a", config.API, help["api"])
	flags.StringVarP(&config.Role, "role", "R", config.Role, help["role"])
	flags.BoolVar(&config.ListRoles, "list-roles", config.ListRoles, help["list-roles"])
	flags.BoolVarP(&config.Quiet, "quiet", "q", config.Quiet, help["quiet"])
	flags.BoolVarP(&config.ShowHelp, "help", "h", false, help["help"])
	flags.BoolVarP(&config.Version, "version", "v", false, help["version"])
	flags.IntVar(&config.MaxRetries, "max-retries", config.MaxRetries, help["max-retries"])
	flags.Int64Var(&config.MaxTokens, "max-tokens", config.MaxTokens, help["max-tokens"])
	flags.Float64Var(&config.Temperature, "temp", config.Temperature, help["temp"])
	flags.Float64Var(&config.TopP, "topp", config.TopP, help["topp"])
	flags.StringArrayVar(&config.Stop, "stop", config.Stop, help["stop"])
	flags.Int64VarP(&config.Choices, "choices", "n", config.Choices, help["choices"])
	flags.IntVar(&config.MaxRounds, "max-rounds", config.MaxRounds, help["max-rounds"])
	flags.BoolVar(&config.InjectContext, "inject-context", config.InjectContext, help["inject-context"])
	flags.Var(newDurationFlag(config.RequestTimeout, &config.RequestTimeout), "request-timeout", help["request-timeout"])
	flags.StringVar(&config.User, "user", config.User, help["user"])
	flags.StringVar(&config.LogLevel, "log-level", config.LogLevel, help["log-level"])
	flags.BoolVar(&config.Settings, "settings", false, help["settings"])
	flags.BoolVar(&config.Dirs, "dirs", false, help["dirs"])
	flags.StringVarP(&config.Continue, "continue", "c", "", help["continue"])
	flags.BoolVarP(&config.ContinueLast, "continue-last", "C", false, help["continue-last"])
	flags.BoolVar(&config.NoCache, "no-cache", config.NoCache, help["no-cache"])
	flags.StringVarP(&config.Title, "title", "t", config.Title, help["title"])
	flags.BoolVarP(&config.List, "list", "l", config.List, help["list"])
	flags.StringArrayVarP(&config.Delete, "delete", "d", config.Delete, help["delete"])
	flags.StringVarP(&config.Show, "show", "s", config.Show, help["show"])
	flags.BoolVarP(&config.ShowLast, "show-last", "S", false, help["show-last"])
	flags.BoolVar(&config.Copy, "copy", config.Copy, help["copy"])
	flags.BoolVar(&config.ListFunctions, "list-functions", false, help["list-functions"])
	flags.StringArrayVar(&config.MCPDisable, "mcp-disable", config.MCPDisable, help["mcp-disable"])
	flags.Var(newDurationFlag(config.MCPTimeout, &config.MCPTimeout), "mcp-timeout", help["mcp-timeout"])
	flags.SortFlags = false

	for _, name := range []string{"show", "delete", "title", "continue", "role", "model"} {
		_ = rootCmd.RegisterFlagCompletionFunc(name, completeConversationsOr(name))
	}

	rootCmd.MarkFlagsMutuallyExclusive(
		"settings",
		"show",
		"show-last",
		"delete",
		"list",
		"continue",
		"continue-last",
		"list-functions",
	)
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})
}

// completeConversationsOr completes saved conversations for the
// conversation flags, and the configured values for the others.
func completeConversationsOr(name string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var results []string
		switch name {
		case "role":
			for role := range config.Roles {
				results = append(results, role)
			}
		case "model":
			for model := range config.Models {
				results = append(results, model)
			}
		default:
			store, err := openStore(config)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			defer store.Close() //nolint:errcheck
			convos, err := store.db.List()
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			for _, c := range convos {
				results = append(results, shortID(c.ID)+"\t"+c.Title)
			}
		}
		return results, cobra.ShellCompDirectiveNoFileComp
	}
}

func useLine() string {
	appName := filepath.Base(os.Args[0])
	if stdoutRenderer().ColorProfile() != termenv.Ascii {
		appName = stdoutStyles().AppName.Render(appName)
	}
	return fmt.Sprintf(
		"%s %s",
		appName,
		stdoutStyles().CliArgs.Render("[OPTIONS] [PREFIX TERM]"),
	)
}

func usageFunc(cmd *cobra.Command) error {
	fmt.Printf("Chat with models that call functions. Built for pipelines.\n\n")
	fmt.Printf(
		"Usage:\n  %s\n\n",
		useLine(),
	)
	fmt.Println("Options:")
	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Printf(
				"  %-44s %s\n",
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Printf(
				"  %s%s %-40s %s\n",
				stdoutStyles().Flag.Render("-"+f.Shorthand),
				stdoutStyles().FlagComma,
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		}
	})
	desc, example := randomExample()
	fmt.Printf(
		"\nExample:\n  %s\n  %s\n",
		stdoutStyles().Comment.Render("# "+desc),
		cheapHighlighting(stdoutStyles(), example),
	)
	return nil
}

func editSettings() error {
	c, err := editor.Cmd("relay", config.SettingsPath)
	if err != nil {
		return relayError{
			err:    err,
			reason: "Could not edit your settings file.",
		}
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return relayError{err, fmt.Sprintf(
			"Missing %s.",
			stderrStyles().InlineCode.Render("$EDITOR"),
		)}
	}
	if !config.Quiet {
		fmt.Fprintln(os.Stderr, "Wrote config file to:", config.SettingsPath)
	}
	return nil
}

// readPrompt joins the arguments and whatever was piped into stdin.
func readPrompt(args []string) (string, error) {
	prefix := strings.Join(args, " ")
	var content string
	if !isInputTTY() {
		bts, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", relayError{err, "Unable to read stdin."}
		}
		content = string(bts)
	}
	if prefix != "" {
		content = strings.TrimSpace(prefix + "\n\n" + content)
	}
	return strings.TrimSpace(content), nil
}

func isCompletionCmd(args []string) bool {
	if len(args) <= 1 {
		return false
	}
	if args[1] == "__complete" {
		return true
	}
	if args[1] != "completion" {
		return false
	}
	shells := []string{"bash", "fish", "zsh", "powershell"}
	helps := []string{"-h", "--help"}
	switch len(args) {
	case 3: //nolint:mnd
		return slices.Contains(shells, args[2]) || slices.Contains(helps, args[2]) || args[2] == "help"
	case 4: //nolint:mnd
		return slices.Contains(shells, args[2]) && slices.Contains(helps, args[3])
	default:
		return false
	}
}

func isManCmd(args []string) bool {
	switch len(args) {
	case 2: //nolint:mnd
		return args[1] == "man"
	case 3: //nolint:mnd
		return args[1] == "man" && (args[2] == "-h" || args[2] == "--help")
	default:
		return false
	}
}

func main() {
	var err error
	config, err = ensureConfig()
	if err != nil {
		handleError(relayError{err, "Could not load your configuration file."})
		// if user is editing the settings, only print out the error, but do
		// not exit.
		if !slices.Contains(os.Args, "--settings") {
			os.Exit(1)
		}
	}

	initFlags()

	if isCompletionCmd(os.Args) {
		// relay has no sub-commands, so cobra won't create the default
		// `completion` command. Forcefully create it by adding a fake
		// command when completions are being used.
		rootCmd.AddCommand(&cobra.Command{
			Use:    "____fake_command_to_enable_completions",
			Hidden: true,
		})
		rootCmd.InitDefaultCompletionCmd()
	}

	if isManCmd(os.Args) {
		rootCmd.AddCommand(&cobra.Command{
			Use:                   "man",
			Short:                 "Generates manpages",
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
			Hidden:                true,
			Args:                  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				manPage, err := mcobra.NewManPage(1, rootCmd)
				if err != nil {
					//nolint:wrapcheck
					return err
				}
				_, err = fmt.Fprint(os.Stdout, manPage.Build(roff.NewDocument()))
				//nolint:wrapcheck
				return err
			},
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		handleError(err)
		stop()
		os.Exit(1)
	}
}

func handleError(err error) {
	// exhaust stdin
	if !isInputTTY() {
		_, _ = io.ReadAll(os.Stdin)
	}

	format := "\n%s\n\n"

	var args []any
	var ferr flagParseError
	var rerr relayError
	if errors.As(err, &ferr) {
		format += "%s\n\n"
		args = []any{
			fmt.Sprintf(
				"Check out %s %s",
				stderrStyles().InlineCode.Render("relay -h"),
				stderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				stderrStyles().InlineCode.Render(ferr.Flag()),
			),
		}
	} else if errors.As(err, &rerr) {
		format += "%s\n\n"
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorHeader.String(), rerr.reason),
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(err.Error())),
		}
	} else {
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(err.Error())),
		}
	}

	fmt.Fprintf(os.Stderr, format, args...)
}
