package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/store"
)

func newSessionsCmd() *cobra.Command {
	var (
		userID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent composition sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = filepath.Join(paths.Data, "billable.db")
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			sessions, err := store.NewSQLiteSessionStore(db).ListByUser(userID, limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			for _, s := range sessions {
				fmt.Printf("%s  %-9s  %-12s  %s\n",
					s.ID[:8],
					s.Status,
					formatDuration(s.ActiveDuration),
					humanize.Time(s.StartTime))
				if r := s.Email.PrimaryRecipient(); r != "" {
					fmt.Printf("          to: %s", r)
					if s.Email.Subject != "" {
						fmt.Printf("  re: %s", s.Email.Subject)
					}
					fmt.Println()
				}
				fmt.Printf("          %s\n", billingLine(s))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to list sessions for")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions to show")

	return cmd
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	return d.Truncate(time.Second).String()
}

func billingLine(s *domain.Session) string {
	switch {
	case s.Billing == nil || !s.Billing.Billable:
		return "not billed"
	case s.Billing.TimeEntryPosted:
		return fmt.Sprintf("billed $%.2f (entry %s)", s.Billing.Amount, s.Billing.TimeEntryID)
	default:
		return fmt.Sprintf("billed $%.2f (pending sync)", s.Billing.Amount)
	}
}
