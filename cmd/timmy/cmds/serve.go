package cmds

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/timmy/pkg/bridge"
	"github.com/go-go-golems/timmy/pkg/server"
	"github.com/go-go-golems/timmy/pkg/server/web"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tutor panel in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			s, err := loadSettings()
			if err != nil {
				return err
			}
			log.Debug().Interface("settings", s.Redacted()).Msg("Starting server")

			registry, err := s.NewRegistry()
			if err != nil {
				return err
			}
			svc, err := s.NewTutor(registry)
			if err != nil {
				return err
			}

			panel := web.PanelConfig{
				LoadingIndicator: viper.GetBool("loading-indicator"),
				MaxPDFBytes:      s.MaxPDFBytes,
			}
			srv := server.NewServer(svc, newExtractor(s),
				server.WithPanelConfig(panel),
				server.WithDispatcherOptions(bridge.WithProviderName(s.ProviderName())),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := srv.Run(ctx, s.Address)

			if s.SessionsFile != "" {
				if err := saveSessions(registry, s.SessionsFile); err != nil {
					log.Error().Err(err).Str("file", s.SessionsFile).Msg("Could not save sessions")
				}
			}
			return runErr
		},
	}
	cmd.Flags().String("address", "localhost:8765", "Address to listen on")
	cmd.Flags().Bool("loading-indicator", true, "Show a loading indicator while the tutor is thinking")
	return cmd
}

func saveSessions(registry *session.Registry, path string) error {
	snapshot := registry.Snapshot()
	if err := session.NewFileStore(path).Save(snapshot); err != nil {
		return err
	}
	log.Info().Int("sessions", len(snapshot.Sessions)).Str("file", path).Msg("Saved sessions")
	return nil
}
