package cli

import (
	"strconv"
	"strings"

	glob "github.com/ryanuber/go-glob"
	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/ui/widgets"
)

type listFlags struct {
	verbose bool
	output  string
	name    string
	state   string
}

func newListCmd(s *session) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the VMs of the node",
		Long: `List the VMs of the node, sorted by id.

With --verbose each VM's configuration and guest agent are queried as well,
which adds bridge, IP, storage and config path columns.`,
		Example: `  vmanager list
  vmanager list -v --name 'web-*'
  vmanager list --state stopped -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, s, f)
		},
	}
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "fetch per-VM details")
	cmd.Flags().StringVarP(&f.output, "output", "o", formatTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&f.name, "name", "", "only VMs whose name matches this glob")
	cmd.Flags().StringVar(&f.state, "state", "", "only VMs in this state (running, stopped, paused, unknown)")
	return cmd
}

func runList(cmd *cobra.Command, s *session, f *listFlags) error {
	if err := checkFormat(f.output); err != nil {
		return err
	}
	var want domain.VMState
	if f.state != "" {
		want = domain.VMState(strings.ToLower(f.state))
		if want != domain.StateUnknown && domain.ParseState(f.state) == domain.StateUnknown {
			return &domain.ValidationError{Field: "state", Value: f.state, Reason: "must be running, stopped, paused or unknown"}
		}
	}

	repo, _, err := s.backend()
	if err != nil {
		return err
	}
	recs, err := repo.ListFleet(cmd.Context(), s.cfg.Server.Node, f.verbose)
	if err != nil {
		return err
	}
	recs = filterRecords(recs, f.name, want)

	out := cmd.OutOrStdout()
	if f.output != formatTable {
		if recs == nil {
			recs = []domain.VMRecord{}
		}
		return encode(out, f.output, recs)
	}

	headers := []string{"VMID", "Name", "State", "CPUs", "CPU", "Memory", "Uptime"}
	if f.verbose {
		headers = append(headers, "Disk", "Bridge", "IP", "Storage", "Config")
	}
	data := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := []string{
			strconv.Itoa(r.ID),
			r.Name,
			colorState(r.State),
			strconv.Itoa(r.CPUs),
			widgets.Percent(r.CPU),
			widgets.Usage(r.Mem, r.MaxMem),
			uptimeCell(r),
		}
		if f.verbose {
			row = append(row,
				widgets.Bytes(r.MaxDisk),
				r.Bridge.String(),
				r.IPv4.String(),
				r.Storage.String(),
				r.ConfigPath.String(),
			)
		}
		data = append(data, row)
	}
	renderTable(out, 1, headers, data)
	return nil
}

func filterRecords(recs []domain.VMRecord, pattern string, state domain.VMState) []domain.VMRecord {
	if pattern == "" && state == "" {
		return recs
	}
	var kept []domain.VMRecord
	for _, r := range recs {
		if pattern != "" && !glob.Glob(pattern, r.Name) {
			continue
		}
		if state != "" && r.State != state {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func uptimeCell(r domain.VMRecord) string {
	if !r.Running() {
		return "-"
	}
	return widgets.Uptime(r.Uptime)
}
