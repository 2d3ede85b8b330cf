package gateway

import (
	"context"

	"github.com/soyeahso/billable/internal/domain"
)

// FeedSink adapts the gateway's WebSocket feed to the notification
// dispatcher, so lifecycle events reach connected clients alongside the
// other sinks.
type FeedSink struct {
	server *Server
}

// Feed returns a notification sink that broadcasts to connected clients.
func (s *Server) Feed() *FeedSink {
	return &FeedSink{server: s}
}

// Notify broadcasts the event to every connected WebSocket client.
func (f *FeedSink) Notify(ctx context.Context, evt domain.Event) error {
	seq := f.server.eventSeq.Add(1)
	f.server.clients.Broadcast(evt, seq)
	return nil
}

// Name identifies the sink in dispatcher logs.
func (f *FeedSink) Name() string { return "feed" }
