// Package cli is the vmanager command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/batch"
	"github.com/HaPhanBaoMinh/vmanager/internal/config"
	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/infrastructure/mock"
	"github.com/HaPhanBaoMinh/vmanager/internal/infrastructure/pve"
)

// session is shared by all subcommands of one invocation. The pve client
// is created on first use and closed when Execute returns.
type session struct {
	configPath string
	envFile    string
	node       string
	debug      bool
	mock       bool

	cfg    config.Config
	logger *slog.Logger

	client *pve.Client
	repo   domain.FleetRepo
	runner domain.CommandRunner
}

// Execute runs the command line and returns the error that should turn into
// a non-zero exit status.
func Execute() error {
	s := &session{}
	defer s.close()
	return newRootCmd(s).Execute()
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "vmanager",
		Short: "Proxmox VE virtual machine manager",
		Long: `vmanager lists and controls the QEMU virtual machines of a Proxmox VE
node through its HTTP API, either one command at a time or from an
interactive monitor.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// init creates the file --config points at
			required := s.configPath != "" && cmd.Name() != "init"
			return s.load(cmd.ErrOrStderr(), required)
		},
	}

	root.PersistentFlags().StringVarP(&s.configPath, "config", "c", "", "config file (default is $HOME/"+config.DefaultFileName+")")
	root.PersistentFlags().StringVarP(&s.node, "node", "n", "", "node name, overrides the config file")
	root.PersistentFlags().BoolVar(&s.debug, "debug", false, "debug logging (each API request)")
	root.PersistentFlags().StringVar(&s.envFile, "env-file", "", "load VMANAGER_* variables from a dotenv file")
	root.PersistentFlags().BoolVar(&s.mock, "mock", false, "use a built-in demo fleet instead of a real node")

	root.AddCommand(
		newListCmd(s),
		newStatusCmd(s),
		newCloneCmd(s),
		newMonitorCmd(s),
		newMetricsCmd(s),
		newConfigCmd(s),
		newDestroyCmd(s),
	)
	for _, a := range []actionDef{
		{action: domain.ActionStart, short: "Start VMs"},
		{action: domain.ActionStop, short: "Stop VMs immediately"},
		{action: domain.ActionShutdown, short: "Ask guests to shut down cleanly"},
		{action: domain.ActionReboot, short: "Reboot VMs", aliases: []string{"restart"}},
		{action: domain.ActionSuspend, short: "Suspend (pause) VMs"},
		{action: domain.ActionResume, short: "Resume suspended VMs"},
	} {
		root.AddCommand(newActionCmd(s, a))
	}
	return root
}

func (s *session) load(logTo io.Writer, required bool) error {
	if err := config.LoadEnvFile(s.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(s.configPath, required)
	if err != nil {
		return err
	}
	if s.node != "" {
		cfg.Server.Node = s.node
	}
	s.cfg = cfg
	s.logger = config.NewLogger(cfg.Log, logTo, s.debug)
	return nil
}

// useLogFile redirects logging, for the full screen monitor.
func (s *session) useLogFile() (func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if s.cfg.Log.File != "" {
		f, err := os.OpenFile(s.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	s.logger = config.NewLogger(s.cfg.Log, w, s.debug)
	return closeFn, nil
}

// backend builds the repo and runner once per invocation.
func (s *session) backend() (domain.FleetRepo, domain.CommandRunner, error) {
	if s.repo != nil {
		return s.repo, s.runner, nil
	}
	if s.mock {
		m := mock.New(s.cfg.Server.Node)
		s.repo, s.runner = m, batch.NewExecutor(m, s.logger)
		return s.repo, s.runner, nil
	}

	if err := s.cfg.Validate(); err != nil {
		if s.cfg.File == "" {
			return nil, nil, fmt.Errorf("%w (no config file found, see 'vmanager config init')", err)
		}
		return nil, nil, err
	}
	policy, err := s.cfg.Policy()
	if err != nil {
		return nil, nil, err
	}

	client, err := pve.NewClient(pve.ClientConfig{
		Host:        s.cfg.Server.Host,
		Port:        s.cfg.Server.Port,
		Scheme:      s.cfg.Auth.Scheme,
		TokenID:     s.cfg.Auth.TokenID,
		TokenSecret: s.cfg.Auth.TokenSecret,
		VerifyTLS:   s.cfg.Server.VerifyTLS,
		Timeout:     s.cfg.Server.Timeout.Duration(),
	}, nil, s.logger)
	if err != nil {
		return nil, nil, err
	}
	s.client = client
	s.repo = pve.NewRepo(client, pve.RepoOptions{
		Policy:            policy,
		DetailConcurrency: s.cfg.Inventory.DetailConcurrency,
		Logger:            s.logger,
	})
	s.runner = batch.NewExecutor(client, s.logger)
	return s.repo, s.runner, nil
}

func (s *session) close() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// errFailures marks a batch where at least one id failed; the outcomes were
// already printed.
var errFailures = errors.New("some operations failed")
