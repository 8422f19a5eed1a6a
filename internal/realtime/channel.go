// internal/realtime/channel.go
package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/unclebandit/formreach-client/internal/store"
)

// Event is the push envelope the backend sends over the websocket.
type Event struct {
	Type         string         `json:"type"`
	CampaignID   string         `json:"campaign_id"`
	SubmissionID string         `json:"submission_id,omitempty"`
	Seq          int64          `json:"seq,omitempty"`
	Updates      map[string]any `json:"updates"`
}

const (
	EventCampaignUpdate   = "campaign_update"
	EventSubmissionUpdate = "submission_update"
)

// Channel maintains the single long-lived push subscription for a session.
// Inbound events funnel into the store through the marker rule, the same rule
// poll results go through, so push and poll cannot race each other into an
// inconsistent state.
type Channel struct {
	URL    string
	Token  string
	Store  *store.Store
	Logger *zap.Logger

	// Resync, when set, runs after every successful reconnect (not the first
	// connect) so missed events are recovered over REST. Resync writes go
	// through store markers too, so replayed push events cannot double-count.
	Resync func(ctx context.Context) error

	dialer *websocket.Dialer
}

func NewChannel(url, token string, st *store.Store, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		URL:    url,
		Token:  token,
		Store:  st,
		Logger: logger,
		dialer: websocket.DefaultDialer,
	}
}

// Run connects and consumes events until ctx is cancelled. Reconnection uses
// exponential backoff capped at 30s and never gives up on its own.
func (c *Channel) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	connects := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.connect(ctx)
		if err != nil {
			wait := bo.NextBackOff()
			c.Logger.Warn("push channel connect failed",
				zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		connects++

		if connects > 1 && c.Resync != nil {
			if err := c.Resync(ctx); err != nil {
				c.Logger.Warn("post-reconnect resync failed", zap.Error(err))
			}
		}

		// a successful dial alone doesn't prove the connection is healthy; a
		// server that accepts and instantly drops would otherwise reconnect in
		// a zero-delay loop
		healthy := false
		err = c.readLoop(ctx, conn, func() {
			if !healthy {
				healthy = true
				bo.Reset()
			}
		})
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := bo.NextBackOff()
		c.Logger.Warn("push channel disconnected",
			zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Channel) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, onFrame func()) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		onFrame()
		c.Apply(ev)
	}
}

// Apply routes one event into the store, assigning a receive-side marker when
// the server didn't send a sequence number. Stale events lose the marker
// comparison and are dropped.
func (c *Channel) Apply(ev Event) {
	marker := ev.Seq
	if marker <= 0 {
		marker = c.Store.NextMarker()
	}
	switch ev.Type {
	case EventCampaignUpdate:
		if !c.Store.ApplyCampaignUpdate(ev.CampaignID, ev.Updates, marker) {
			c.Logger.Debug("discarded stale campaign update",
				zap.String("campaign_id", ev.CampaignID), zap.Int64("seq", ev.Seq))
		}
	case EventSubmissionUpdate:
		if !c.Store.ApplySubmissionUpdate(ev.CampaignID, ev.SubmissionID, ev.Updates, marker) {
			c.Logger.Debug("discarded stale submission update",
				zap.String("submission_id", ev.SubmissionID), zap.Int64("seq", ev.Seq))
		}
	default:
		c.Logger.Warn("unknown push event type", zap.String("type", ev.Type))
	}
}
