package workers

import (
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"context"
	"log/slog"
)

// JournalWorker records session lifecycle events. Message bodies never
// reach it.
type JournalWorker struct {
	log        *slog.Logger
	events     <-chan event.SessionEvent
	repository repositories.ISessionRepository
}

func NewJournalWorker(log *slog.Logger, events <-chan event.SessionEvent, repository repositories.ISessionRepository) *JournalWorker {
	return &JournalWorker{log: log, events: events, repository: repository}
}

// Run stores events until ctx is done, then flushes what is already buffered.
func (w *JournalWorker) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.record(evt)
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Context done, stopping session journal")
			return nil
		}
	}
}

func (w *JournalWorker) drain() {
	for {
		select {
		case evt := <-w.events:
			w.record(evt)
		default:
			return
		}
	}
}

func (w *JournalWorker) record(evt event.SessionEvent) {
	var record repositories.SessionRecord
	switch e := evt.(type) {
	case event.SessionOpened:
		record = repositories.SessionRecord{
			ID:       e.ID,
			Endpoint: e.Endpoint,
			OpenedAt: e.At,
		}
	case event.SessionClosed:
		closedAt := e.At
		record = repositories.SessionRecord{
			ID:       e.ID,
			Endpoint: e.Endpoint,
			OpenedAt: e.OpenedAt,
			ClosedAt: &closedAt,
			LinesIn:  e.LinesIn,
			LinesOut: e.LinesOut,
			Reason:   string(e.Reason),
		}
	default:
		w.log.Debug("Unknown session event", "event", evt)
		return
	}
	if err := w.repository.Store(record); err != nil {
		w.log.Warn("Failed to journal session", "session_id", record.ID.String(), "error", err)
	}
}
