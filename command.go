package modkit

import (
	"context"
	"fmt"
	"maps"
)

// mainCommandName is the name DuplicateCommandError reports for a second
// main command.
const mainCommandName = "<main>"

// CommandEntry is a controller method exposed on the command line.
type CommandEntry struct {
	// Name is empty for the main command.
	Name   string
	Method *CompiledMethod
}

// Flags returns the declared flags.
func (c *CommandEntry) Flags() []FlagSpec {
	return c.Method.Meta.Flags
}

// Description returns the method description.
func (c *CommandEntry) Description() string {
	return c.Method.Meta.Description
}

// Run dispatches the command with args. Declared flag defaults fill unset
// flags.
func (c *CommandEntry) Run(ctx context.Context, args Args) (any, error) {
	flags := make(map[string]string, len(args.Flags))
	for _, f := range c.Method.Meta.Flags {
		if f.Default != "" {
			flags[f.Name] = f.Default
		}
	}
	maps.Copy(flags, args.Flags)
	args.Flags = flags

	return c.Method.Dispatch(NewContext(ctx, WithArgs(args)))
}

// CommandTable holds the commands of an application: either a single main
// command or a set of named subcommands.
type CommandTable struct {
	Main     *CommandEntry
	Commands map[string]*CommandEntry

	// Names lists subcommand names in declaration order.
	Names []string
}

// Dispatch runs the main command with args, or the subcommand named by the
// first positional argument with the remaining arguments.
func (t *CommandTable) Dispatch(ctx context.Context, args Args) (any, error) {
	if t.Main != nil {
		return t.Main.Run(ctx, args)
	}

	if len(args.Positional) > 0 {
		if cmd, ok := t.Commands[args.Positional[0]]; ok {
			rest := args
			rest.Positional = args.Positional[1:]
			return cmd.Run(ctx, rest)
		}
	}

	return nil, NoCommandFoundError{Args: args}
}

// Run runs the subcommand name, or the main command when name is empty.
func (t *CommandTable) Run(ctx context.Context, name string, args Args) (any, error) {
	if name == "" && t.Main != nil {
		return t.Main.Run(ctx, args)
	}

	cmd, ok := t.Commands[name]
	if !ok {
		return nil, NoCommandFoundError{Args: Args{Positional: []string{name}}}
	}
	return cmd.Run(ctx, args)
}

// LinkCommands collects the command methods of root and its imports.
//
// An application has either one main command or any number of named
// subcommands. Declaring both fails with ConfigurationError and reusing a
// name fails with DuplicateCommandError. Methods with neither tag are
// ignored.
func LinkCommands(root *CompiledModule, opts ...Option) (*CommandTable, error) {
	logger := buildOptions(opts).logger
	table := &CommandTable{Commands: make(map[string]*CommandEntry)}

	var (
		isMain         bool
		hasSubcommands bool
		err            error
	)

	root.Walk(func(m *CompiledModule) bool {
		for _, cc := range m.Controllers {
			for _, cm := range cc.Methods {
				if !cm.Meta.IsCommand() {
					continue
				}

				where := fmt.Sprintf("%s.%s", cc.Node.Class, cm.Meta.Name)

				if cm.Meta.Main {
					switch {
					case hasSubcommands:
						err = ConfigurationError{Reason: "main command declared alongside subcommands", Method: where}
					case isMain:
						err = DuplicateCommandError{Name: mainCommandName}
					}
					if err != nil {
						return false
					}

					isMain = true
					table.Main = &CommandEntry{Method: cm}
					logger.Debug("main command linked", "method", where)
					continue
				}

				if isMain {
					err = ConfigurationError{Reason: fmt.Sprintf("command %q declared alongside a main command", cm.Meta.Command), Method: where}
					return false
				}

				if _, dup := table.Commands[cm.Meta.Command]; dup {
					err = DuplicateCommandError{Name: cm.Meta.Command}
					return false
				}

				hasSubcommands = true
				table.Commands[cm.Meta.Command] = &CommandEntry{Name: cm.Meta.Command, Method: cm}
				table.Names = append(table.Names, cm.Meta.Command)
				logger.Debug("command linked", "command", cm.Meta.Command, "method", where)
			}
		}
		return true
	})

	if err != nil {
		return nil, err
	}
	return table, nil
}
