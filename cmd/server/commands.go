package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/server"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type serveOptions struct {
	port       string
	healthPort string
	dataDir    string
	dev        bool
	inMemory   bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "StudyDesk workspace backend",
		Long: `StudyDesk serves study workspaces: floating panels, focus lock,
a pomodoro timer, notes and progress, over HTTP and WebSocket.

Configuration comes from environment variables; flags override them.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newPresetsCmd(), newImportCmd(), newHealthcheckCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Example: `
server serve
server serve --port 9000 --dev
server serve --in-memory --health-port 9090
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			return srv.Run(ctx)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func (o *serveOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.port, "port", "", "HTTP port (overrides PORT)")
	flags.StringVar(&o.healthPort, "health-port", "", "gRPC health port (overrides HEALTH_PORT)")
	flags.StringVar(&o.dataDir, "data-dir", "", "data directory (overrides DATA_DIR)")
	flags.BoolVar(&o.dev, "dev", false, "development logging")
	flags.BoolVar(&o.inMemory, "in-memory", false, "keep the local tier in memory")
}

// apply copies explicitly set flags over the environment configuration
func (o *serveOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("health-port") {
		cfg.Server.HealthPort = o.healthPort
	}
	if flags.Changed("data-dir") {
		cfg.Local.DataDir = o.dataDir
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = o.dev
		if o.dev {
			cfg.Logging.Level = "debug"
		}
	}
	if flags.Changed("in-memory") {
		cfg.Local.InMemory = o.inMemory
	}
}

func newPresetsCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "List the layout presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				p, ok := panels.Lookup(args[0])
				if !ok {
					return fmt.Errorf("unknown preset %q", args[0])
				}
				return printPreset(cmd, p, asYAML)
			}
			for _, name := range panels.Names() {
				marker := " "
				if name == panels.DefaultName() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the full preset as YAML")
	return cmd
}

func printPreset(cmd *cobra.Command, p types.LayoutPreset, asYAML bool) error {
	out := cmd.OutOrStdout()
	if asYAML {
		data, err := yaml.Marshal(p)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "%s\n", p.Name)
	for _, t := range types.AllPanels() {
		e, ok := p.Panels[t]
		if !ok || !e.IsOpen {
			continue
		}
		fmt.Fprintf(out, "  %-14s %4d,%-4d %4dx%d\n", t, e.X, e.Y, e.Width, e.Height)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "studydesk", server.Version)
		},
	}
}
