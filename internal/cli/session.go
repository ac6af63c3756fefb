package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/config"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

var errNoServer = errors.New("no server configured; pass --server or set " + config.EnvServerURL)

func sessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and inspect shared sessions",
	}
	cmd.AddCommand(sessionCreateCmd(a), sessionShowCmd(a), sessionDemoCmd(a))
	return cmd
}

func sessionCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create [code]",
		Short: "Create a session; the server picks a code when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.ServerURL == "" {
				return errNoServer
			}
			var code string
			if len(args) == 1 {
				code = args[0]
			}
			if isDemo(code) {
				return errors.New(`"demo" is reserved for the local demo; run: planner session demo`)
			}
			sess, err := a.remoteClient().CreateSession(cmd.Context(), code)
			if errors.Is(err, remote.ErrSessionExists) {
				return fmt.Errorf("session %q already exists; join it with --session %s", remote.NormalizeCode(code), remote.NormalizeCode(code))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Created session %s\n", color.New(color.FgGreen).Sprint("✓"), color.New(color.Bold).Sprint(sess.Code))
			fmt.Fprintf(a.out, "  Share it with your team and run: export %s=%s\n", config.EnvSession, sess.Code)
			return nil
		},
	}
}

func sessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := remote.NormalizeCode(a.cfg.Session)
			if isDemo(code) {
				fmt.Fprintln(a.out, "Session:  demo (local only, reset with: planner session demo)")
				return nil
			}
			if a.cfg.ServerURL == "" {
				return errNoServer
			}
			if code == "" {
				return errors.New("no session; pass --session or set " + config.EnvSession)
			}
			ctx := cmd.Context()
			cl := a.remoteClient()
			sess, err := cl.GetSession(ctx, code)
			if errors.Is(err, remote.ErrSessionNotFound) {
				return fmt.Errorf("session %q not found; check the code", code)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Session:  %s\n", sess.Code)
			fmt.Fprintf(a.out, "Version:  %d\n", sess.Version)
			fmt.Fprintf(a.out, "Created:  %s\n", sess.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(a.out, "Updated:  %s\n", sess.UpdatedAt.Local().Format(time.DateTime))
			for _, c := range remote.DataCollections {
				docs, err := cl.ListDocs(ctx, code, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "  %-13s %d\n", c, len(docs))
			}
			return nil
		},
	}
}
