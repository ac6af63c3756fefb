package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
	"github.com/DoyleJ11/frc-plan-sync/internal/transfer"
)

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every capability, game plan and strategy to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				now := a.now()
				code := remote.NormalizeCode(a.cfg.Session)
				doc := transfer.Build(code, s.Local().State(), now)
				if out == "-" {
					return transfer.Write(a.out, doc)
				}
				if out == "" {
					out = transfer.FileName(code, now)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := transfer.Write(f, doc); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "✓ Exported %d capabilities, %d plans and %d strategies to %s\n",
					len(doc.Capabilities), len(doc.GamePlans), len(doc.Strategies), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default frc-plan-<session>-<time>.json)`)
	return cmd
}

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace everything in the session with the contents of an export file",
		Long: `Replace every capability, game plan and strategy with the file's contents.
The file is checked in full first; nothing changes if any part of it is
invalid. Older exports without game plans get a default plan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			doc, err := transfer.Parse(r)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				s.Import(doc.Capabilities, doc.GamePlans, doc.Strategies)
				fmt.Fprintf(a.out, "✓ Imported %d capabilities, %d plans and %d strategies\n",
					len(doc.Capabilities), len(doc.GamePlans), len(doc.Strategies))
				return nil
			})
		},
	}
}
