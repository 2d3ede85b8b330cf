package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/lrstanley/girc"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
)

// IRCSink posts lifecycle events to an IRC channel. Outbound only; it
// ignores everything the server says back.
type IRCSink struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	running bool
}

// NewIRCSink creates an IRC sink from configuration.
func NewIRCSink(cfg config.IRCConfig, log *logging.Logger) *IRCSink {
	return &IRCSink{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (s *IRCSink) Name() string { return "irc" }

// Start connects to the IRC server and joins the notification channel.
// Connect blocks until disconnect, so Start returns only on error or
// context cancellation.
func (s *IRCSink) Start(ctx context.Context) error {
	port := s.cfg.Port
	if port == 0 {
		if s.cfg.UseTLS {
			port = 6697
		} else {
			port = 6667
		}
	}

	gircCfg := girc.Config{
		Server:  s.cfg.Server,
		Port:    port,
		Nick:    s.cfg.Nick,
		User:    s.cfg.Nick,
		Name:    "Billable Notifier",
		SSL:     s.cfg.UseTLS,
		Version: "Billable/1.0",
	}
	if s.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{ServerName: s.cfg.Server}
	}
	if s.cfg.Password != "" {
		gircCfg.ServerPass = s.cfg.Password
	}

	s.client = girc.New(gircCfg)
	s.client.Handlers.Add(girc.CONNECTED, func(_ *girc.Client, _ girc.Event) {
		s.log.Info().Str("channel", s.cfg.Channel).Msg("connected, joining channel")
		s.client.Cmd.Join(s.cfg.Channel)
	})

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.log.Info().Str("server", s.cfg.Server).Int("port", port).
		Str("nick", s.cfg.Nick).Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.client.Connect()
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.client.Close()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Stop disconnects from the server.
func (s *IRCSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.IsConnected() {
		s.client.Quit("billable shutting down")
	}
	s.running = false
}

func (s *IRCSink) Notify(_ context.Context, evt domain.Event) error {
	if s.client == nil || !s.client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	s.client.Cmd.Message(s.cfg.Channel, formatEvent(evt))
	return nil
}

// formatEvent renders an event as one IRC line.
func formatEvent(evt domain.Event) string {
	switch evt.Type {
	case domain.EventSessionStarted:
		return fmt.Sprintf("[%s] started composing %v", evt.UserID, evt.Payload["subject"])
	case domain.EventSessionStopped:
		return fmt.Sprintf("[%s] finished a session (%vs tracked)", evt.UserID, evt.Payload["totalDuration"])
	case domain.EventSessionAbandoned:
		return fmt.Sprintf("[%s] session abandoned", evt.UserID)
	case domain.EventBillingCreated:
		return fmt.Sprintf("[%s] time entry created ($%v)", evt.UserID, evt.Payload["amount"])
	case domain.EventBillingFailed:
		return fmt.Sprintf("[%s] billing failed: %v", evt.UserID, evt.Payload["error"])
	default:
		return fmt.Sprintf("[%s] %s", evt.UserID, evt.Type)
	}
}
