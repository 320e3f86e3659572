// Package cobra exposes the commands of a compiled modkit application as a
// Cobra command tree.
//
// Example usage:
//
//	app, _ := modkit.Compile(ctx, meta, AppModule)
//
//	root, err := modkitcobra.Mount(app, modkitcobra.WithUse("tool"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := root.ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cobra

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/junioryono/modkit"
)

// Config holds the configuration of the command tree.
type Config struct {
	// Use is the root command name.
	Use string

	// Short is the root command description. The main command description
	// is used when empty.
	Short string

	// Printer writes a command result. If nil, strings are printed as-is,
	// nil results print nothing and anything else is printed as indented
	// JSON.
	Printer func(io.Writer, any) error

	Logger modkit.Logger
}

// Option configures the command tree.
type Option func(*Config)

// WithUse sets the root command name.
func WithUse(use string) Option {
	return func(c *Config) {
		c.Use = use
	}
}

// WithShort sets the root command description.
func WithShort(short string) Option {
	return func(c *Config) {
		c.Short = short
	}
}

// WithPrinter sets the result printer.
func WithPrinter(p func(io.Writer, any) error) Option {
	return func(c *Config) {
		c.Printer = p
	}
}

// WithLogger sets the logger.
func WithLogger(l modkit.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() *Config {
	return &Config{
		Use:     "app",
		Printer: PrintResult,
		Logger:  modkit.NopLogger(),
	}
}

// NewCommand builds the Cobra tree of table: the main command becomes the
// root's action, subcommands become child commands.
func NewCommand(table *modkit.CommandTable, opts ...Option) *cobra.Command {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	root := &cobra.Command{
		Use:           cfg.Use,
		Short:         cfg.Short,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if table.Main != nil {
		if root.Short == "" {
			root.Short = table.Main.Description()
		}
		bind(root, table.Main, cfg)
		return root
	}

	root.Run = func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	}

	for _, name := range table.Names {
		cmd := &cobra.Command{
			Use:   name,
			Short: table.Commands[name].Description(),
		}
		bind(cmd, table.Commands[name], cfg)
		root.AddCommand(cmd)
	}

	return root
}

func bind(cmd *cobra.Command, command *modkit.CommandEntry, cfg *Config) {
	for _, f := range command.Flags() {
		cmd.Flags().StringP(f.Name, f.Shorthand, f.Default, f.Usage)
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		result, err := command.Run(cmd.Context(), modkit.Args{
			Positional: args,
			Flags:      collectFlags(cmd.Flags()),
		})
		if err != nil {
			cfg.Logger.Warn("command failed", "command", cmd.Name(), "error", err)
			return err
		}
		return cfg.Printer(cmd.OutOrStdout(), result)
	}
}

// collectFlags returns the flags set on the command line.
func collectFlags(fs *pflag.FlagSet) map[string]string {
	flags := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		flags[f.Name] = f.Value.String()
	})
	return flags
}

// PrintResult is the default result printer.
func PrintResult(w io.Writer, result any) error {
	switch v := result.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(w, v.String())
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// Mount links the commands of app into a Cobra command tree.
func Mount(app *modkit.CompiledModule, opts ...Option) (*cobra.Command, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	table, err := modkit.LinkCommands(app, modkit.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	return NewCommand(table, opts...), nil
}
