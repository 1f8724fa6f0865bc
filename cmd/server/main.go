package main

import (
	"context"
	"log"

	"fieldsync/internal/config"
	"fieldsync/internal/container"
	"fieldsync/internal/server"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		container.Module,
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			srv *server.Server,
		) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Printf("Starting fieldsync on port %s", cfg.Server.Port)

					// Start server in background
					go func() {
						if err := srv.Start(context.Background()); err != nil {
							log.Printf("Server error: %v", err)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Println("Shutting down fieldsync")
					return srv.Stop()
				},
			})
		}),
	)

	app.Run()
}
