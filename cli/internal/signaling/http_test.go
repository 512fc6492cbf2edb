package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReply answers a request the way the rendezvous server would for a room
// R1 that already holds peer A.
func fakeReply(req *Request) (int, any) {
	switch req.Type {
	case TypeRegister:
		return http.StatusOK, map[string]any{"type": "registered", "peerId": req.PeerID, "success": true, "requestId": req.RequestID}
	case TypeJoinRoom:
		return http.StatusOK, map[string]any{"type": "room_joined", "roomId": req.RoomID, "peers": []string{"A"}, "success": true, "requestId": req.RequestID}
	case TypeDiscoverPeers:
		return http.StatusOK, map[string]any{"type": "room_peers", "roomId": req.RoomID, "peers": []string{}, "requestId": req.RequestID}
	case TypeHeartbeat:
		if req.PeerID == "gone" {
			return http.StatusNotFound, map[string]any{"type": "error", "error": "heartbeat: peer not found (gone)", "code": "peer_not_found", "requestId": req.RequestID}
		}
		return http.StatusOK, map[string]any{"type": "heartbeat_ack", "success": true, "requestId": req.RequestID}
	case TypeOffer:
		return http.StatusOK, map[string]any{"type": "offer_stored", "success": true, "requestId": req.RequestID}
	case TypeGetRoomInfo:
		if req.RoomID != "R1" {
			return http.StatusNotFound, map[string]any{"type": "error", "error": "room not found", "code": "room_not_found", "requestId": req.RequestID}
		}
		return http.StatusOK, map[string]any{
			"type": "room_info", "roomId": "R1", "peerCount": 1, "requestId": req.RequestID,
			"peers": []map[string]any{{"peerId": "A", "deviceType": "desktop", "lastSeen": 1700000000000}},
		}
	case TypeGetPendingSignaling:
		return http.StatusOK, map[string]any{
			"type": "pending_signaling", "requestId": req.RequestID,
			"messages": []map[string]any{{"type": "offer", "fromPeerId": "A", "offer": map[string]string{"sdp": "v=0"}, "roomId": "R1", "timestamp": 1}},
		}
	case TypeGetNotifications:
		return http.StatusOK, map[string]any{"type": "notifications", "notifications": []any{}, "requestId": req.RequestID}
	default:
		return http.StatusBadRequest, map[string]any{"type": "error", "error": "unknown message type", "code": "malformed_request", "requestId": req.RequestID}
	}
}

func newFakeHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, body := fakeReply(&req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPClient_Operations(t *testing.T) {
	ts := newFakeHTTPServer(t)
	c := NewHTTPClient(ts.URL, discardLogger())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "B", "mobile"))

	peers, err := c.JoinRoom(ctx, "B", "R1", "mobile")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, peers)

	peers, err = c.DiscoverPeers(ctx, "B", "R1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, peers)

	require.NoError(t, c.SendOffer(ctx, "B", "A", "R1", json.RawMessage(`{"sdp":"v=0"}`)))

	info, err := c.RoomInfo(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, RoomInfo{RoomID: "R1", PeerCount: 1, Peers: []PeerSummary{{PeerID: "A", DeviceType: "desktop", LastSeen: 1700000000000}}}, info)

	signals, err := c.PendingSignaling(ctx, "B")
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, TypeOffer, signals[0].Type)
	assert.Equal(t, "A", signals[0].FromPeerID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(signals[0].Offer))

	notes, err := c.Notifications(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestHTTPClient_ErrorKinds(t *testing.T) {
	ts := newFakeHTTPServer(t)
	c := NewHTTPClient(ts.URL, discardLogger())
	ctx := context.Background()

	err := c.Heartbeat(ctx, "gone")
	require.ErrorIs(t, err, ErrPeerNotFound)
	assert.False(t, errors.Is(err, ErrUnreachable))

	_, err = c.RoomInfo(ctx, "missing")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"missing endpoint", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "<html>Not Found</html>", http.StatusNotFound)
		}},
		{"not json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("hello"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			err := NewHTTPClient(ts.URL, discardLogger()).Register(context.Background(), "A", "desktop")
			require.ErrorIs(t, err, ErrUnreachable)
		})
	}

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		err := NewHTTPClient(url, discardLogger()).Register(context.Background(), "A", "desktop")
		require.ErrorIs(t, err, ErrUnreachable)
	})
}

func TestHTTPClient_CanceledIsNotUnreachable(t *testing.T) {
	ts := newFakeHTTPServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewHTTPClient(ts.URL, discardLogger()).Register(ctx, "A", "desktop")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrUnreachable))
}
