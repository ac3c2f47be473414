package main

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/server"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthcheckCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Query a server's gRPC health endpoint",
		Long: `Exits non-zero unless the service is SERVING. Use --service studydesk.remote
to check the remote tier instead of the process.`,
		Example: `
server healthcheck --addr localhost:9090
server healthcheck --addr localhost:9090 --service studydesk.remote
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			status, err := server.CheckHealth(ctx, addr, service)
			if err != nil {
				return err
			}
			name := service
			if name == "" {
				name = "server"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, status)
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", name, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "health server address")
	cmd.Flags().StringVar(&service, "service", "", "service name; empty checks the process")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
