package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/phasetrack/internal/apiclient"
	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/autosave"
	"github.com/rpggio/phasetrack/internal/config"
	"github.com/rpggio/phasetrack/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger, closeLog := newLogger(cfg.Log, os.Stderr)
		defer closeLog()

		applied, err := storage.Migrate(cmd.Context(), cfg.Store, logger)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
			return nil
		}
		for _, v := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
		}
		return nil
	},
}

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the framework modules and phases",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		cat, err := loadCatalog(cfg.Catalog)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if catalogJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cat.Modules())
		}
		meta := cat.Meta()
		fmt.Fprintf(out, "%s %s (%d phases)\n", meta.Name, meta.Version, cat.TotalPhases())
		for _, m := range cat.Modules() {
			fmt.Fprintf(out, "\nModule %d: %s\n", m.Number, m.Title)
			for _, p := range m.Phases {
				fmt.Fprintf(out, "  %d.%d %s\n", m.Number, p.PhaseNumber, p.Name)
			}
		}
		return nil
	},
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with auth.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set")
		}
		token, err := auth.Sign(cfg.Auth.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var (
	editProject string
	editModule  int
	editPhase   int
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit one phase from stdin with autosave",
	Long: `Reads lines from stdin and appends them to the phase content. Changes are
saved after the configured quiet period. ":save" saves immediately, ":clear"
empties the content and ":switch M P" moves to another phase of the same
project. End of input saves and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger, closeLog := newLogger(cfg.Log, os.Stderr)
		defer closeLog()

		client := apiclient.New(cfg.Autosave.ServerURL, cfg.Autosave.Token)
		key := autosave.Key{ProjectID: editProject, ModuleNumber: editModule, PhaseNumber: editPhase}
		return runEditor(cmd.Context(), client, key, cfg.Autosave.Delay, cmd.InOrStdin(), cmd.ErrOrStderr(), logger)
	},
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Print modules as JSON")

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")

	editCmd.Flags().StringVar(&editProject, "project", "", "Project ID")
	editCmd.Flags().IntVar(&editModule, "module", 1, "Module number")
	editCmd.Flags().IntVar(&editPhase, "phase", 1, "Phase number")
	_ = editCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(migrateCmd, catalogCmd, tokenCmd, editCmd)
}

func runEditor(ctx context.Context, client *apiclient.Client, key autosave.Key, delay time.Duration, in io.Reader, status io.Writer, logger *slog.Logger) error {
	loaded, err := client.PhaseContent(ctx, key.ProjectID, key.ModuleNumber, key.PhaseNumber)
	if err != nil {
		return fmt.Errorf("load phase: %w", err)
	}

	ctrl := autosave.New(apiclient.Saver{Client: client}, key, loaded, autosave.Options{
		Delay: delay,
		OnSaved: func(k autosave.Key, _ string) {
			fmt.Fprintf(status, "saved %d.%d\n", k.ModuleNumber, k.PhaseNumber)
		},
		OnError: func(k autosave.Key, err error) {
			fmt.Fprintf(status, "save failed for %d.%d: %v\n", k.ModuleNumber, k.PhaseNumber, err)
		},
	})

	content := loaded
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == ":save":
			if err := ctrl.SaveNow(ctx); err != nil {
				logger.Warn("save failed", "error", err)
			}
			continue
		case line == ":clear":
			content = ""
		case strings.HasPrefix(line, ":switch "):
			var m, p int
			if _, err := fmt.Sscanf(line, ":switch %d %d", &m, &p); err != nil {
				fmt.Fprintln(status, "usage: :switch MODULE PHASE")
				continue
			}
			// Unsaved edits are flushed before leaving the phase.
			if err := ctrl.SaveNow(ctx); err != nil {
				logger.Warn("save failed", "error", err)
				continue
			}
			next := autosave.Key{ProjectID: key.ProjectID, ModuleNumber: m, PhaseNumber: p}
			text, err := client.PhaseContent(ctx, next.ProjectID, m, p)
			if err != nil {
				logger.Warn("load phase failed", "error", err)
				continue
			}
			if err := ctrl.SwitchPhase(next, text); err != nil {
				return err
			}
			content = text
			continue
		case content == "":
			content = line
		default:
			content += "\n" + line
		}
		if err := ctrl.Edit(content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		ctrl.Close()
		return fmt.Errorf("read input: %w", err)
	}
	return ctrl.SaveAndClose(ctx)
}
