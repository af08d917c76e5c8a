package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/ui/widgets"
)

func newStatusCmd(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status VMID",
		Short: "Show the current status of one VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			id, err := positiveID("vmid", args[0])
			if err != nil {
				return err
			}

			repo, _, err := s.backend()
			if err != nil {
				return err
			}
			rec, err := repo.StatusOf(cmd.Context(), s.cfg.Server.Node, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != formatTable {
				return encode(out, output, rec)
			}
			for _, kv := range statusLines(rec) {
				fmt.Fprintf(out, "%-8s %s\n", kv[0]+":", kv[1])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func statusLines(r domain.VMRecord) [][2]string {
	raw := r.Status
	if r.QMPStatus != "" {
		raw += "/" + r.QMPStatus
	}
	return [][2]string{
		{"VMID", strconv.Itoa(r.ID)},
		{"Name", r.Name},
		{"State", colorState(r.State) + " (" + raw + ")"},
		{"CPU", fmt.Sprintf("%s of %d", widgets.Percent(r.CPU), r.CPUs)},
		{"Memory", widgets.Usage(r.Mem, r.MaxMem)},
		{"Disk", widgets.Usage(r.Disk, r.MaxDisk)},
		{"Uptime", uptimeCell(r)},
		{"Bridge", r.Bridge.String()},
		{"IP", r.IPv4.String()},
		{"Storage", r.Storage.String()},
		{"Config", r.ConfigPath.String()},
	}
}
