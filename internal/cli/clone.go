package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/infrastructure/pve"
)

func newCloneCmd(s *session) *cobra.Command {
	var opts pve.CloneOptions
	cmd := &cobra.Command{
		Use:   "clone VMID NEWID",
		Short: "Clone a VM or template",
		Long: `Clone a VM or template to NEWID. Without --full a linked clone is made,
which needs the source to be a template.`,
		Example: "  vmanager clone 9000 120 --name web-03 --full",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := positiveID("vmid", args[0])
			if err != nil {
				return err
			}
			if opts.NewID, err = positiveID("newid", args[1]); err != nil {
				return err
			}
			if src == opts.NewID {
				return &domain.ValidationError{Field: "newid", Value: args[1], Reason: "must differ from the source"}
			}
			if s.mock {
				return errors.New("clone is not available with --mock")
			}

			if _, _, err := s.backend(); err != nil {
				return err
			}
			upid, err := s.client.Clone(cmd.Context(), s.cfg.Server.Node, src, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d cloned to %d %s\n", green("✓"), src, opts.NewID, faint(upid))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "name of the new VM")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "full copy instead of a linked clone")
	return cmd
}

func positiveID(field, v string) (int, error) {
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: field, Value: v, Reason: "must be a positive integer"}
	}
	return id, nil
}
