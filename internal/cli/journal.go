package cli

import (
	"errors"
	"fmt"

	"salonbook/internal/google"
	"salonbook/internal/models"

	"github.com/spf13/cobra"
)

var errJournalNotConfigured = errors.New("google.credentials_file and google.journal_spreadsheet_id must be set")

func newJournalCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect or rebuild the Google Sheets appointment journal",
	}
	cmd.AddCommand(newJournalCheckCmd(opts), newJournalRebuildCmd(opts))
	return cmd
}

func newJournalCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the journal spreadsheet is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			g := e.cfg.Google
			if g.GoogleCredentialsFile == "" || g.JournalSpreadSheetID == "" {
				return errJournalNotConfigured
			}
			email, err := google.ServiceAccountEmail(g.GoogleCredentialsFile)
			if err != nil {
				return fmt.Errorf("read credentials: %w", err)
			}
			journal, err := google.NewJournalService(cmd.Context(), g.GoogleCredentialsFile, g.JournalSpreadSheetID)
			if err != nil {
				return err
			}
			if err := journal.TestConnection(cmd.Context()); err != nil {
				return fmt.Errorf("%w (share the spreadsheet with %s)", err, email)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "journal %s reachable as %s\n", g.JournalSpreadSheetID, email)
			return nil
		},
	}
}

func newJournalRebuildCmd(opts *options) *cobra.Command {
	var salonID, from, to string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Overwrite the journal with a salon's appointments between two UTC dates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDate(from, "from")
			if err != nil {
				return err
			}
			end, err := parseDate(to, "to")
			if err != nil {
				return err
			}
			if end.Before(start) {
				return errors.New("--to is before --from")
			}
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			g := e.cfg.Google
			if g.GoogleCredentialsFile == "" || g.JournalSpreadSheetID == "" {
				return errJournalNotConfigured
			}
			appts, err := e.store.ListAppointments(cmd.Context(), salonID, start, end.AddDate(0, 0, 1), models.AllStatuses)
			if err != nil {
				return err
			}
			journal, err := google.NewJournalService(cmd.Context(), g.GoogleCredentialsFile, g.JournalSpreadSheetID)
			if err != nil {
				return err
			}
			if err := journal.ReplaceJournal(cmd.Context(), appts); err != nil {
				return err
			}
			e.logger.Info().Str("salon_id", salonID).Int("rows", len(appts)).Msg("journal rebuilt")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d appointments\n", len(appts))
			return nil
		},
	}
	cmd.Flags().StringVar(&salonID, "salon", "", "salon id")
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("salon")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
