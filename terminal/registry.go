package terminal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buildkite/shellwords"
)

var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrUnknownSubcommand = errors.New("unknown subcommand")
)

// Action runs a leaf command. A non-nil BlockHandler suspends line editing
// until it reports true.
type Action func(c *Call) BlockHandler

// BlockHandler sees every event while its command is blocking.
type BlockHandler func(ev Event) (unblock bool)

// Command is either an action or a parent of named subcommands.
type Command struct {
	Name        string
	Usage       string
	Description string
	Action      Action
	Subcommands []*Command
}

func (c *Command) parent() bool {
	return c.Action == nil
}

func (c *Command) child(name string) *Command {
	return find(c.Subcommands, name)
}

func find(cmds []*Command, name string) *Command {
	for _, cmd := range cmds {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

// Registry is the static command tree shared by every terminal view.
type Registry struct {
	commands []*Command
}

func NewRegistry(cmds ...*Command) *Registry {
	return &Registry{commands: cmds}
}

func (r *Registry) Add(cmd *Command) {
	r.commands = append(r.commands, cmd)
}

func (r *Registry) Commands() []*Command {
	return r.commands
}

// Resolve walks tokens down the tree. It returns the command reached and the
// index of the first unconsumed token. A parent is returned when the tokens
// run out before reaching an action.
func (r *Registry) Resolve(tokens []string) (*Command, int, error) {
	if len(tokens) == 0 {
		return nil, 0, nil
	}
	cmd := find(r.commands, tokens[0])
	if cmd == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownCommand, tokens[0])
	}
	i := 1
	for cmd.parent() && i < len(tokens) {
		next := cmd.child(tokens[i])
		if next == nil {
			return nil, i, fmt.Errorf("%w: %s", ErrUnknownSubcommand, tokens[i])
		}
		cmd = next
		i++
	}
	return cmd, i, nil
}

// Dispatch tokenizes line and runs the matching action.
func (r *Registry) Dispatch(c *Call, line string) BlockHandler {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	tokens, err := shellwords.SplitPosix(line)
	if err != nil {
		c.Error(fmt.Sprintf("couldn't parse command: %v", err))
		return nil
	}

	cmd, next, err := r.Resolve(tokens)
	if err != nil {
		c.Error(err.Error())
		return nil
	}
	if cmd == nil {
		return nil
	}
	if cmd.parent() {
		c.Message(SubcommandList(cmd)...)
		return nil
	}

	c.Path = tokens[:next]
	c.Args = tokens[next:]
	return cmd.Action(c)
}

// Help lists the top-level commands.
func (r *Registry) Help() []Row {
	rows := []Row{Plain("Available commands:")}
	return append(rows, listing(r.commands)...)
}

func SubcommandList(cmd *Command) []Row {
	rows := []Row{Plain(fmt.Sprintf("Available subcommands for '%s':", cmd.Name))}
	return append(rows, listing(cmd.Subcommands)...)
}

func listing(cmds []*Command) []Row {
	width := 0
	names := make([]string, len(cmds))
	for i, cmd := range cmds {
		names[i] = strings.TrimSpace(cmd.Name + " " + cmd.Usage)
		width = max(width, len(names[i]))
	}
	rows := make([]Row, len(cmds))
	for i, cmd := range cmds {
		rows[i] = Plain(fmt.Sprintf("  %-*s  %s", width, names[i], cmd.Description))
	}
	return rows
}
