package cli

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/app"
)

func newMonitorCmd(s *session) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:     "monitor",
		Aliases: []string{"top", "ui"},
		Short:   "Full screen fleet monitor",
		Long: `Full screen fleet monitor with a VM list, a detail pane and key bindings
for the lifecycle actions. The footer lists the keys; q quits.

Logs go to log.file from the config, or nowhere.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			closeLog, err := s.useLogFile()
			if err != nil {
				return err
			}
			defer closeLog()

			repo, runner, err := s.backend()
			if err != nil {
				return err
			}
			if refresh <= 0 {
				refresh = s.cfg.Monitor.RefreshInterval.Duration()
			}

			m := app.New(repo, runner, app.Options{
				Node:    s.cfg.Server.Node,
				Refresh: refresh,
				Logger:  s.logger,
			})
			final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(app.Model); ok {
				return fm.Err()
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "refresh interval (default from monitor.refresh_interval)")
	return cmd
}
