package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"taskhub/internal/events"
	"taskhub/internal/model"

	"github.com/gorilla/websocket"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

var errHandshake = errors.New("live channel did not confirm the subscription")

type Options struct {
	// Watch lists the task queries refetched after every event.
	Watch []model.TaskFilter

	// OnRefresh receives every refetched list.
	OnRefresh func(model.TaskFilter, []model.Task)

	// OnAssigned fires for task:assigned, which only the assignee receives.
	OnAssigned func(model.Task)

	MinBackoff time.Duration
	MaxBackoff time.Duration
	Dialer     *websocket.Dialer
}

// Session owns exactly one live subscription and keeps the watched queries
// in the cache current.
type Session struct {
	api   *APIClient
	cache *QueryCache
	opts  Options

	connected atomic.Bool
	connects  atomic.Int64
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewSession(api *APIClient, cache *QueryCache, opts Options) *Session {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Session{api: api, cache: cache, opts: opts}
}

// Connected reports whether the server has confirmed the current subscription.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Connects counts confirmed subscriptions, reconnects included.
func (s *Session) Connects() int64 {
	return s.connects.Load()
}

// Run keeps a subscription alive until ctx is cancelled. A rejected
// credential ends the session with ErrUnauthorized.
func (s *Session) Run(ctx context.Context) error {
	backoff := s.opts.MinBackoff
	for {
		confirmed, err := s.connectOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if confirmed {
			backoff = s.opts.MinBackoff
		}
		log.Printf("[sync] ⚠️  Live channel lost (%v), reconnecting in %s", err, backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.opts.MaxBackoff {
			backoff = s.opts.MaxBackoff
		}
	}
}

func (s *Session) connectOnce(ctx context.Context) (bool, error) {
	endpoint, err := s.api.WebSocketURL()
	if err != nil {
		return false, err
	}

	conn, resp, err := s.opts.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrUnauthorized
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// nothing is trusted until the server confirms identity and groups
	var hello frame
	if err := conn.ReadJSON(&hello); err != nil {
		return false, fmt.Errorf("handshake: %w", err)
	}
	if hello.Event != "connected" {
		return false, errHandshake
	}

	s.connected.Store(true)
	defer s.connected.Store(false)
	s.connects.Add(1)

	// events may have been missed while disconnected
	s.cache.InvalidateAll()
	s.Refresh(ctx)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return true, err
		}
		s.handle(ctx, f)
	}
}

func (s *Session) handle(ctx context.Context, f frame) {
	kind := events.Kind(f.Event)
	if !kind.IsTaskKind() {
		if f.Event == "error" {
			log.Printf("[sync] ⚠️  Server error: %s", f.Data)
		}
		return
	}

	if kind == events.TaskAssigned && s.opts.OnAssigned != nil {
		var task model.Task
		if err := json.Unmarshal(f.Data, &task); err == nil {
			s.opts.OnAssigned(task)
		}
	}

	s.cache.InvalidateAll()
	s.Refresh(ctx)
}

// Refresh refetches every watched query that is stale.
func (s *Session) Refresh(ctx context.Context) {
	for _, f := range s.opts.Watch {
		if !s.cache.Stale(f) {
			continue
		}
		tasks, err := s.api.ListTasks(ctx, f)
		if err != nil {
			log.Printf("[sync] ❌ Refetch %s failed: %v", Key(f), err)
			continue
		}
		s.cache.Put(f, tasks)
		if s.opts.OnRefresh != nil {
			s.opts.OnRefresh(f, tasks)
		}
	}
}
