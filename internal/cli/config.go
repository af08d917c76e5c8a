package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HaPhanBaoMinh/vmanager/internal/config"
)

func newConfigCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the connection profile",
	}
	cmd.AddCommand(newConfigInitCmd(s), newConfigShowCmd(s))
	return cmd
}

func newConfigInitCmd(s *session) *cobra.Command {
	var (
		path  string
		force bool
		cfg   = config.Default()
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new profile",
		Long: `Write a new profile, readable by the owner only since it holds the API
token secret. An existing file is kept unless --force is given.`,
		Example: `  vmanager config init --host 10.0.0.5 --token-id 'root@pam!vmanager' --token-secret xxxx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = s.configPath
			}
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if s.node != "" {
				cfg.Server.Node = s.node
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", green("✓"), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&path, "path", "", "where to write (default is --config or $HOME/"+config.DefaultFileName+")")
	f.BoolVar(&force, "force", false, "overwrite an existing file")
	f.StringVar(&cfg.Server.Host, "host", "", "node address")
	f.IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "API port")
	f.BoolVar(&cfg.Server.VerifyTLS, "verify-tls", false, "verify the server certificate")
	f.StringVar(&cfg.Auth.TokenID, "token-id", "", "API token id, user@realm!name")
	f.StringVar(&cfg.Auth.TokenSecret, "token-secret", "", "API token secret")
	f.StringVar(&cfg.Inventory.StatePolicy, "state-policy", cfg.Inventory.StatePolicy, "reference or fine-first")
	return cmd
}

func newConfigShowCmd(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile, secret masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.cfg
			if cfg.Auth.TokenSecret != "" {
				cfg.Auth.TokenSecret = "********"
			}
			out := cmd.OutOrStdout()
			if output == formatYAML {
				if cfg.File != "" {
					fmt.Fprintf(out, "# from %s\n", cfg.File)
				} else {
					fmt.Fprintln(out, "# no config file, defaults and environment only")
				}
			}
			return encode(out, output, cfg)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "output format: json or yaml")
	return cmd
}
