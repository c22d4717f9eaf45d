package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/skynow/internal/api/http"
	"github.com/i474232898/skynow/internal/config"
)

var app *application

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func run(args []string) error {
	app = nil
	rootCmd := &cobra.Command{
		Use:           "skynow",
		Short:         "Weather lookups with a conversational assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app, err = newApplication(cfg, newLogger(cfg))
			return err
		},
	}

	rootCmd.AddCommand(
		serveCommand(),
		currentCommand(),
		forecastCommand(),
		historyCommand(),
		askCommand(),
	)
	rootCmd.SetArgs(args)

	// Post-run hooks are skipped when a command fails; close here instead.
	defer func() {
		if app != nil {
			app.Close()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		if app != nil {
			logger = app.logger
		}
		logger.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the refresh job",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if app.cfg.RefreshInterval > 0 {
				if err := app.scheduler.Start(); err != nil {
					return err
				}
				defer app.scheduler.Stop()
			}

			server := httpapi.NewApp(httpapi.Deps{
				Weather:   app.resolver,
				Assistant: app.assistant,
				Alerts:    app.store,
				Gatherer:  app.registry,
				Logger:    app.logger,
				AccessLog: true,
			})

			errCh := make(chan error, 1)
			go func() {
				addr := ":" + app.cfg.Port
				app.logger.Info().Str("addr", addr).Msg("starting server")
				errCh <- server.Listen(addr)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
			}

			app.logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.ShutdownWithContext(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			app.logger.Info().Msg("server stopped")
			return nil
		},
	}
}

func currentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current <city>",
		Short: "Print the current observation for a city",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.resolver.Current(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}

func forecastCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast <city>",
		Short: "Print the upcoming forecast points for a city",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.resolver.Forecast(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
}

func historyCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "history <city>",
		Short: "Print stored or archived observations for a city on a date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
			if err != nil {
				return errors.New("invalid --date; use YYYY-MM-DD")
			}
			records, err := app.resolver.Historical(cmd.Context(), strings.Join(args, " "), day)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02"), "day to look up (YYYY-MM-DD, UTC)")
	return cmd
}

func askCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the weather assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply := app.assistant.Reply(cmd.Context(), strings.Join(args, " "), username)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), reply)
			return err
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "name to address in the reply")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
