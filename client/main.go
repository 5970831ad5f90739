package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wfunc/boomberg/api"
	"github.com/wfunc/boomberg/commands"
	"github.com/wfunc/boomberg/logger"
)

func main() {
	cobra.CheckErr(newCmd().Execute())
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".boomterm-session"
	}
	return filepath.Join(dir, "boomberg", "session")
}

func newCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BOOMTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "boomterm",
		Short:         "Terminal client for a Boomberg server",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v.GetString("server"), v.GetString("session-file"), v.GetBool("verbose"))
		},
	}

	fs := cmd.Flags()
	fs.String("server", "http://localhost:8080", "server base URL (env: BOOMTERM_SERVER)")
	fs.String("session-file", defaultSessionFile(), "where the session token is kept (env: BOOMTERM_SESSION_FILE)")
	fs.BoolP("verbose", "v", false, "log debug output to boomterm.log (env: BOOMTERM_VERBOSE)")
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

func run(parent context.Context, server, sessionFile string, verbose bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// the terminal owns stdout, so logs only go to a file when asked for
	if verbose {
		if err := logger.InitFile("boomterm.log", true); err != nil {
			return err
		}
		defer logger.Sync()
	}

	if dir := filepath.Dir(sessionFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	client, err := api.New(server, api.WithSessionFile(sessionFile))
	if err != nil {
		return err
	}

	meCtx, meCancel := context.WithTimeout(ctx, 10*time.Second)
	me, err := client.Me(meCtx)
	meCancel()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", server, err)
	}

	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }
	m := newModel(ctx, client, client, &commands.Identity{ID: me.ID, Name: me.Name}, send)

	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
