package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"salonbook/internal/api"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/export"
	"salonbook/internal/models"
	"salonbook/internal/service"

	"github.com/spf13/cobra"
)

func parseDate(raw, flag string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return d, nil
}

func newSlotsCmd(opts *options) *cobra.Command {
	var salonID, date string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show a salon's slot grid for one date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDate(date, "date")
			if err != nil {
				return err
			}
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			svc := service.NewAvailabilityService(e.provider(), e.store, e.logger)
			result, err := svc.ListSlotsForDate(cmd.Context(), salonID, day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Closed {
				fmt.Fprintf(out, "%s %s: closed (%s)\n", salonID, result.Date, result.ClosedReason)
				return nil
			}
			if result.OccupancyUnavailable {
				fmt.Fprintln(out, "warning: occupancy unavailable, all slots shown free")
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSTATE")
			for _, slot := range result.Slots {
				state := "free"
				if slot.Busy {
					state = "busy"
				}
				fmt.Fprintf(w, "%s\t%s\n", slot.Time, state)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&salonID, "salon", "", "salon id")
	cmd.Flags().StringVar(&date, "date", time.Now().Format(models.DateLayout), "date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("salon")
	return cmd
}

func newSeedCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert salons from a YAML seed file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			salons, err := config.LoadSalons(file)
			if err != nil {
				return err
			}
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := service.NewSalonService(e.store, e.logger).Seed(cmd.Context(), salons); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d salons\n", len(salons))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "configs/salons.yaml", "salon seed file")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var salonID, from, to, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a salon's appointments to an XLSX file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDate(from, "from")
			if err != nil {
				return err
			}
			end, err := parseDate(to, "to")
			if err != nil {
				return err
			}
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if dir == "" {
				dir = e.cfg.Exports.Path
			}
			path, err := export.NewExporter(e.store, e.provider(), dir, e.logger).Export(cmd.Context(), salonID, start, end)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&salonID, "salon", "", "salon id")
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to exports.path)")
	_ = cmd.MarkFlagRequired("salon")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newBackupCmd(opts *options) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if e.sqlite == nil {
				return fmt.Errorf("backup supports the sqlite driver only, got %q", e.cfg.Database.Driver)
			}
			backupCfg := e.cfg.Backup
			if dir != "" {
				backupCfg.StoragePath = dir
			}
			if backupCfg.StoragePath == "" {
				backupCfg.StoragePath = "backups"
			}

			svc := database.NewBackupService(e.sqlite.Path(), backupCfg, e.logger)
			path, err := svc.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			if backupCfg.RetentionDays > 0 {
				svc.CleanupOldBackups()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (defaults to backup.storage_path)")
	return cmd
}

func newFailedSyncsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "failed-syncs",
		Short: "List journal and calendar sync tasks that exhausted their retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if e.sqlite == nil {
				return fmt.Errorf("failed-syncs supports the sqlite driver only, got %q", e.cfg.Database.Driver)
			}
			tasks, err := e.sqlite.GetFailedSyncTasks(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tAPPOINTMENT\tRETRIES\tERROR")
			for _, task := range tasks {
				lastErr := ""
				if task.LastError != nil {
					lastErr = *task.LastError
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", task.ID, task.TaskType, task.AppointmentID, task.RetryCount, lastErr)
			}
			return w.Flush()
		},
	}
}

func newTokenCmd(opts *options) *cobra.Command {
	var id, role, salons string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a client or manager",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.API.Auth.JWTSecret == "" {
				return fmt.Errorf("api.auth.jwt_secret is not set")
			}

			actor := models.Actor{ID: id, Role: models.Role(role)}
			if actor.Role != models.RoleClient && actor.Role != models.RoleManager {
				return fmt.Errorf("--role must be client or manager")
			}
			for _, s := range strings.Split(salons, ",") {
				if s = strings.TrimSpace(s); s != "" {
					actor.Salons = append(actor.Salons, s)
				}
			}

			token, err := api.IssueToken(cfg.API.Auth.JWTSecret, actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "actor id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleClient), "client or manager")
	cmd.Flags().StringVar(&salons, "salons", "", "comma separated salons a manager may act on")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
