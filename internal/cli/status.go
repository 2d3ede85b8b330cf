package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show billable status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("billable %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			// Load swallows a missing file and returns defaults, so check
			// for it explicitly.
			if _, statErr := os.Stat(paths.Config); os.IsNotExist(statErr) {
				fmt.Println("Config:  not found (using defaults)")
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			auth := "open"
			if cfg.Gateway.AuthToken != "" {
				auth = "token"
			}
			fmt.Printf("Gateway:  port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, auth)

			fmt.Printf("Tracker:  idle=%ds abandon=%dh sweep=%dm\n",
				cfg.Tracker.IdleSeconds, cfg.Tracker.AbandonAfterHours, cfg.Tracker.SweepMinutes)

			fmt.Printf("Store:    driver=%s\n", cfg.Store.Driver)
			fmt.Printf("Summary:  provider=%s\n", cfg.Summary.Provider)

			if cfg.Practice.AccessToken != "" {
				fmt.Println("Practice: clio (configured)")
			} else {
				fmt.Println("Practice: (not configured; entries stay local)")
			}

			fmt.Printf("Billing:  rate=$%.2f/hr\n", cfg.Billing.HourlyRate)

			if cfg.Notify.IRC != nil {
				irc := cfg.Notify.IRC
				fmt.Printf("IRC:      server=%s nick=%s channel=%s tls=%v\n",
					irc.Server, irc.Nick, irc.Channel, irc.UseTLS)
			} else {
				fmt.Println("IRC:      (not configured)")
			}

			switch {
			case cfg.Mail.IMAP != nil:
				fmt.Printf("Mail:     imap host=%s mailbox=%s poll=%ds\n",
					cfg.Mail.IMAP.Host, cfg.Mail.IMAP.Mailbox, cfg.Mail.PollSeconds)
			case cfg.Mail.Gmail != nil:
				fmt.Printf("Mail:     gmail poll=%ds\n", cfg.Mail.PollSeconds)
			default:
				fmt.Println("Mail:     (draft watching disabled)")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
