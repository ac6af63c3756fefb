// Package cli is the planner command line: a local store that syncs with a
// planner server when one is configured.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/frc-plan-sync/internal/client"
	"github.com/DoyleJ11/frc-plan-sync/internal/config"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/store"
	"github.com/DoyleJ11/frc-plan-sync/internal/store/badgerpersist"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
	"github.com/DoyleJ11/frc-plan-sync/internal/view"
)

const (
	connectTimeout = 10 * time.Second
	flushTimeout   = 15 * time.Second
)

type rootFlags struct {
	envFile string
	server  string
	session string
	dataDir string
	offline bool
}

type app struct {
	cfg      config.Config
	log      *zap.Logger
	out      io.Writer
	errOut   io.Writer
	validate *validator.Validate
	now      func() time.Time
}

// NewRootCmd builds the planner command tree.
func NewRootCmd() *cobra.Command {
	a := &app{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	var flags rootFlags

	root := &cobra.Command{
		Use:   "planner",
		Short: "Plan robot capabilities and match strategies with your team",
		Long: `planner keeps a ranked list of robot capabilities and per-game-plan match
strategies. With a server and a session code every change is shared live
with everyone else in the session; without one everything stays on this
machine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&flags.server, "server", "", "planner server URL (env "+config.EnvServerURL+")")
	pf.StringVarP(&flags.session, "session", "s", "", "session code (env "+config.EnvSession+")")
	pf.StringVar(&flags.dataDir, "data-dir", "", "local data directory (env "+config.EnvDataDir+")")
	pf.BoolVar(&flags.offline, "offline", false, "do not contact the server")

	root.AddCommand(
		serveCmd(a),
		sessionCmd(a),
		capCmd(a),
		planCmd(a),
		stratCmd(a),
		projectionCmd(a),
		exportCmd(a),
		importCmd(a),
		watchCmd(a),
	)
	return root
}

func (a *app) configure(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return err
	}
	if flags.server != "" {
		cfg.ServerURL = strings.TrimRight(flags.server, "/")
	}
	if flags.session != "" {
		cfg.Session = flags.session
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.offline {
		cfg.ServerURL = ""
	}
	// keep one-shot commands quiet unless asked otherwise
	if cmd.Name() != "serve" && cfg.LogLevel == zapcore.InfoLevel {
		cfg.LogLevel = zapcore.WarnLevel
	}
	a.cfg = cfg
	a.out, a.errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()
	a.log, err = cfg.Logger()
	return err
}

func (a *app) warn(err error) {
	fmt.Fprintf(a.errOut, "%s %v\n", color.New(color.FgYellow).Sprint("warning:"), err)
}

func (a *app) remoteClient() *client.Client {
	return client.New(a.cfg.ServerURL, client.WithLogger(a.log))
}

// withSession opens the local store for the configured session, connects it
// when a server is configured, runs fn and then waits for fn's writes to
// reach the server.
func (a *app) withSession(ctx context.Context, fn func(s *syncer.Coordinator) error) error {
	db, err := badgerpersist.Open(badgerpersist.Config{
		Path:   filepath.Join(a.cfg.DataDir, "db"),
		Logger: a.log,
	})
	if err != nil {
		return err
	}
	defer closeDB(db, a.log)

	code := remote.NormalizeCode(a.cfg.Session)
	local, err := store.Open(
		store.WithPersister(badgerpersist.New(db, code)),
		store.WithLogger(a.log),
		store.WithSorter(view.NewSorter(a.cfg.Locale)),
		store.WithTiming(a.cfg.Timing),
	)
	if err != nil {
		return err
	}

	var rem remote.Store
	if a.cfg.ServerURL != "" && !isDemo(code) {
		rem = a.remoteClient()
	}
	s := syncer.New(local, rem,
		syncer.WithLogger(a.log),
		syncer.WithNotifier(syncer.NotifierFunc(a.warn)),
		syncer.WithClock(a.now),
	)
	defer s.Close()

	if rem != nil && code != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := s.Connect(cctx, code)
		if err == nil {
			err = s.WaitSynced(cctx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("connect to session %s: %w", code, err)
		}
	}

	if err := fn(s); err != nil {
		return err
	}

	fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.Flush(fctx); err != nil {
		return fmt.Errorf("waiting for changes to reach the server: %w", err)
	}
	return nil
}

func closeDB(db *badger.DB, log *zap.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("close local database", zap.Error(err))
	}
}

// resolve finds the id ref names, accepting any unique prefix.
func resolve(kind, ref string, ids []string) (string, error) {
	var matches []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s matches %q", kind, ref)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%q matches %d %ss; give more of the id", ref, len(matches), kind)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
