package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/metrics"
)

// usageStore is the part of store.Store the recorder writes to.
type usageStore interface {
	RecordAPIKeyUse(ctx context.Context, id string, at time.Time) error
	RecordAccessTokenUse(ctx context.Context, id string, at time.Time) error
}

type usageEntry struct {
	kind PrincipalKind
	id   string
	at   time.Time
}

// UsageRecorder writes credential usage asynchronously. Record never blocks;
// entries are dropped when the buffer is full or the recorder is closed.
type UsageRecorder struct {
	store  usageStore
	logger zerolog.Logger
	ch     chan usageEntry
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewUsageRecorder(st usageStore, logger zerolog.Logger, buffer int) *UsageRecorder {
	if buffer <= 0 {
		buffer = 1024
	}
	u := &UsageRecorder{
		store:  st,
		logger: logger,
		ch:     make(chan usageEntry, buffer),
		done:   make(chan struct{}),
	}
	go u.drain()
	return u
}

func (u *UsageRecorder) drain() {
	defer close(u.done)
	for e := range u.ch {
		// use context.Background since this is async
		var err error
		switch e.kind {
		case PrincipalAPIKey:
			err = u.store.RecordAPIKeyUse(context.Background(), e.id, e.at)
		case PrincipalAccessToken:
			err = u.store.RecordAccessTokenUse(context.Background(), e.id, e.at)
		default:
			continue
		}
		if err != nil {
			u.logger.Error().Err(err).Str("kind", string(e.kind)).Str("id", e.id).Msg("failed to record credential usage")
		}
	}
}

// Record queues a usage update for the credential id of the given kind.
func (u *UsageRecorder) Record(kind PrincipalKind, id string, at time.Time) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.closed {
		metrics.UsageDropped.WithLabelValues(string(kind)).Inc()
		return
	}
	select {
	case u.ch <- usageEntry{kind: kind, id: id, at: at}:
	default:
		metrics.UsageDropped.WithLabelValues(string(kind)).Inc()
		u.logger.Warn().Str("kind", string(kind)).Str("id", id).Msg("usage buffer full, dropping entry")
	}
}

// Close stops accepting entries and waits for queued ones to be written.
// It is safe to call more than once and concurrently with Record.
func (u *UsageRecorder) Close() {
	u.mu.Lock()
	if !u.closed {
		u.closed = true
		close(u.ch)
	}
	u.mu.Unlock()
	<-u.done
}
