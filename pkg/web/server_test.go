package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/agent"
	"github.com/teslashibe/go-coach/pkg/hub"
	"github.com/teslashibe/go-coach/pkg/inference"
	"github.com/teslashibe/go-coach/pkg/room"
	"github.com/teslashibe/go-coach/pkg/stt"
)

func newTestServer(t *testing.T, opts ...agent.ManagerOption) (*Server, *agent.Manager) {
	t.Helper()

	rec := stt.NewMock()
	rec.StreamFunc = func(ctx context.Context, audio <-chan []byte) (stt.Stream, error) {
		return stt.NewChanStream(), nil
	}
	cfg := agent.DefaultConfig()
	cfg.Logger = log.Discard()
	a, err := agent.New(cfg, agent.Engines{Recognizer: rec, Generator: inference.NewMock("ok")}, nil)
	if err != nil {
		t.Fatal(err)
	}

	mgr := agent.NewManager(a, append(opts, agent.WithManagerLogger(log.Discard()))...)
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })

	srv := NewServer(":0", mgr,
		WithHub(hub.New("debug", hub.WithLogger(log.Discard()))),
		WithLogger(log.Discard()),
		WithPeerFactory(func() (*room.Peer, error) {
			return room.NewPeer(room.Config{Logger: log.Discard()})
		}),
	)
	return srv, mgr
}

// browserOffer builds an offer the way a browser client would: one audio
// transceiver and the side-channel data channel.
func browserOffer(t *testing.T) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		t.Fatal(err)
	}
	if _, err := pc.CreateDataChannel(room.DataChannelLabel, nil); err != nil {
		t.Fatal(err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	<-gathered

	body, _ := json.Marshal(SessionRequest{SDP: pc.LocalDescription().SDP, Type: "offer"})
	return string(body)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/health", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Sessions != 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestCreateSessionRejectsBadRequests(t *testing.T) {
	srv, mgr := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", 400},
		{"answer instead of offer", `{"sdp":"v=0","type":"answer"}`, 400},
		{"empty sdp", `{"sdp":"","type":"offer"}`, 400},
		{"garbage sdp", `{"sdp":"hello","type":"offer"}`, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := srv.App().Test(req, 5000)
			if err != nil {
				t.Fatalf("Request error: %v", err)
			}
			if resp.StatusCode != tt.want {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("Status = %d, want %d (%s)", resp.StatusCode, tt.want, body)
			}
		})
	}

	if mgr.Count() != 0 {
		t.Errorf("Count() = %d after rejected offers", mgr.Count())
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, mgr := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(browserOffer(t)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, 10000)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 201 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Status = %d, want 201 (%s)", resp.StatusCode, body)
	}

	var answer SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if answer.SessionID == "" || answer.Type != "answer" || !strings.HasPrefix(answer.SDP, "v=0") {
		t.Errorf("answer = %+v", answer)
	}
	if _, ok := mgr.Get(answer.SessionID); !ok {
		t.Fatal("session should be registered")
	}

	resp, err = srv.App().Test(httptest.NewRequest("DELETE", "/api/sessions/"+answer.SessionID, nil), 5000)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 204 {
		t.Errorf("DELETE status = %d, want 204", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mgr.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateSessionLimit(t *testing.T) {
	srv, mgr := newTestServer(t, agent.WithMaxSessions(1))

	for i, want := range []int{201, 503} {
		req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(browserOffer(t)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.App().Test(req, 10000)
		if err != nil {
			t.Fatalf("Request error: %v", err)
		}
		if resp.StatusCode != want {
			t.Errorf("request %d status = %d, want %d", i, resp.StatusCode, want)
		}
	}
	if mgr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", mgr.Count())
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("DELETE", "/api/sessions/nope", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
}

func TestDebugRequiresUpgrade(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/ws/debug", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
}

func TestRunShutsDown(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.addr = ":18094"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
