package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"mnemo/internal/webapi"
)

func newServeCommand() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the context API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer(viper.GetString("strategy"))
			if err != nil {
				return err
			}

			serverConfig := webapi.DefaultServerConfig()
			serverConfig.Host = host
			serverConfig.Port = port
			server := webapi.NewServer(container.Manager, serverConfig)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(server.Start)
			g.Go(func() error {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sig)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-sig:
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Stop(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "Listen port")
	return cmd
}
