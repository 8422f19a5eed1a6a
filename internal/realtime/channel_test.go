package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/formreach-client/internal/model"
	"github.com/unclebandit/formreach-client/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	ok := s.PutCampaign(model.Campaign{
		ID:            "c1",
		Name:          "campaign c1",
		Status:        model.StatusRunning,
		TotalWebsites: 100,
	}, s.NextMarker())
	require.True(t, ok)
	return s
}

func TestApplyRoutesCampaignUpdate(t *testing.T) {
	s := seedStore(t)
	ch := NewChannel("", "", s, nil)

	ch.Apply(Event{
		Type:       EventCampaignUpdate,
		CampaignID: "c1",
		Seq:        10,
		Updates:    map[string]any{"processed": 42, "successful": 40},
	})

	c, _ := s.Campaign("c1")
	assert.Equal(t, 42, c.Processed)
	assert.Equal(t, 40, c.Successful)
}

func TestApplyDropsStaleEvent(t *testing.T) {
	s := seedStore(t)
	ch := NewChannel("", "", s, nil)

	ch.Apply(Event{Type: EventCampaignUpdate, CampaignID: "c1", Seq: 20,
		Updates: map[string]any{"processed": 50}})
	ch.Apply(Event{Type: EventCampaignUpdate, CampaignID: "c1", Seq: 19,
		Updates: map[string]any{"processed": 10}})

	c, _ := s.Campaign("c1")
	assert.Equal(t, 50, c.Processed, "out-of-order frame must not regress progress")
}

func TestApplyAssignsMarkerWhenSeqMissing(t *testing.T) {
	s := seedStore(t)
	ch := NewChannel("", "", s, nil)

	ch.Apply(Event{Type: EventCampaignUpdate, CampaignID: "c1",
		Updates: map[string]any{"processed": 5}})
	ch.Apply(Event{Type: EventCampaignUpdate, CampaignID: "c1",
		Updates: map[string]any{"processed": 6}})

	c, _ := s.Campaign("c1")
	assert.Equal(t, 6, c.Processed, "unsequenced events apply in arrival order")
}

func TestApplySubmissionUpdate(t *testing.T) {
	s := seedStore(t)
	ch := NewChannel("", "", s, nil)

	ch.Apply(Event{
		Type:         EventSubmissionUpdate,
		CampaignID:   "c1",
		SubmissionID: "sub1",
		Seq:          5,
		Updates:      map[string]any{"status": "success", "success": true},
	})

	sub, ok := s.Submission("sub1")
	require.True(t, ok)
	assert.Equal(t, model.SubmissionSuccess, sub.Status)
	assert.True(t, sub.Success)
}

func TestReconnectResyncsAndReplayDoesNotDoubleCount(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	frame := func(seq int64, processed, successful int) Event {
		return Event{
			Type:       EventCampaignUpdate,
			CampaignID: "c1",
			Seq:        seq,
			Updates:    map[string]any{"processed": processed, "successful": successful},
		}
	}

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(frame(3, 5, 5))
		if n == 1 {
			// drop the connection right after the first frame
			return
		}
		// catch-up replay of the frame the client already holds, then fresh
		// progress
		conn.WriteJSON(frame(3, 5, 5))
		conn.WriteJSON(frame(4, 6, 6))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := seedStore(t)
	ch := NewChannel("ws"+strings.TrimPrefix(srv.URL, "http"), "", s, nil)
	var resyncs int32
	ch.Resync = func(context.Context) error {
		atomic.AddInt32(&resyncs, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	require.Eventually(t, func() bool {
		c, _ := s.Campaign("c1")
		return c.Processed == 6
	}, 10*time.Second, 20*time.Millisecond)

	c, _ := s.Campaign("c1")
	assert.Equal(t, 6, c.Successful, "replayed frame must not double-count")
	assert.Equal(t, int32(1), atomic.LoadInt32(&resyncs), "resync runs on reconnect, not first connect")
}

func TestRunConsumesEventsUntilCancelled(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Event{
			Type:       EventCampaignUpdate,
			CampaignID: "c1",
			Seq:        3,
			Updates:    map[string]any{"processed": 7},
		})
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := seedStore(t)
	ch := NewChannel("ws"+strings.TrimPrefix(srv.URL, "http"), "tok", s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	require.Eventually(t, func() bool {
		c, _ := s.Campaign("c1")
		return c.Processed == 7
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Bearer tok", gotAuth)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
