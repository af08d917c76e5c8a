package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/batch"
	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

type actionDef struct {
	action  domain.Action
	short   string
	aliases []string
}

func newActionCmd(s *session, a actionDef) *cobra.Command {
	return &cobra.Command{
		Use:     string(a.action) + " VMID...",
		Aliases: a.aliases,
		Short:   a.short,
		Long: fmt.Sprintf(`%s.

Ids may be listed separately or as one expression with ranges, for example
"100,105-107". Each id is handled in turn; a failure does not stop the rest.`, a.short),
		Example: fmt.Sprintf("  vmanager %s 100\n  vmanager %s 100-103,110", a.action, a.action),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, s, domain.RunRequest{
				Action: a.action,
				Expr:   batch.JoinArgs(args),
			})
		},
	}
}

func newDestroyCmd(s *session) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "destroy VMID...",
		Short: "Stop and delete VMs",
		Long: `Stop and delete VMs. This cannot be undone.

The expanded id list is shown and nothing is sent until "yes" is typed.
--force skips the question.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.RunRequest{
				Action:              domain.ActionDestroy,
				Expr:                batch.JoinArgs(args),
				RequireConfirmation: true,
				Confirm:             promptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr()),
			}
			if force {
				req.Confirm = func(domain.Action, []int) (string, error) { return batch.ConfirmToken, nil }
			}
			return runBatch(cmd, s, req)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask for confirmation")
	return cmd
}

func runBatch(cmd *cobra.Command, s *session, req domain.RunRequest) error {
	_, runner, err := s.backend()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	req.Node = s.cfg.Server.Node
	req.OnOutcome = func(o domain.CommandOutcome) { printOutcome(out, req.Action, o) }

	sum, err := runner.Run(cmd.Context(), req)
	if errors.Is(err, batch.ErrDeclined) {
		fmt.Fprintln(out, "cancelled, nothing was changed")
		return nil
	}
	if err != nil {
		return err
	}
	if len(sum.Outcomes) > 1 {
		fmt.Fprintf(out, "%s: %d ok, %d failed\n", req.Action, sum.Succeeded, sum.Failed)
	}
	if sum.HasFailures() {
		return fmt.Errorf("%s: %w", req.Action, errFailures)
	}
	return nil
}

// promptConfirm shows the ids and reads one line. Only the newline is
// stripped, so "yes " does not match.
func promptConfirm(in io.Reader, out io.Writer) domain.ConfirmFunc {
	return func(action domain.Action, ids []int) (string, error) {
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = strconv.Itoa(id)
		}
		fmt.Fprintf(out, "%s will %s %d VM(s): %s\n", red("WARNING"), action, len(ids), strings.Join(strs, ", "))
		fmt.Fprintf(out, "Type %q to continue: ", batch.ConfirmToken)

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
