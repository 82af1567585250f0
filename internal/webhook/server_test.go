package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"devrelay/internal/aliases"
	"devrelay/internal/config"
	"devrelay/internal/routing"
)

type recorder struct {
	mu    sync.Mutex
	sends []string // "room: text"
}

func (r *recorder) Send(room, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, room+": "+text)
}

func (r *recorder) rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []string
	for _, s := range r.sends {
		rooms = append(rooms, strings.SplitN(s, ":", 2)[0])
	}
	return rooms
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *fakeDedup) SeenDelivery(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *fakeDedup) MarkDelivery(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[id] = true
	return nil
}

func testServer(t *testing.T, dedup DedupStore) (*Server, *recorder) {
	t.Helper()
	cfg := &config.Config{
		AppName:             "devrelay",
		Port:                3030,
		MetricsPath:         "/metrics",
		RateLimitMax:        1000,
		RateLimitExpiration: time.Minute,
	}
	store, err := routing.NewStore("lobby", map[string]routing.RoomConfiguration{
		"Proj":  {Rooms: []string{"a", "b"}, Secret: "s1"},
		"Quiet": {Rooms: []string{}, SimpleRooms: []string{}, Secret: "s2"},
		"Split": {Rooms: []string{"dev"}, SimpleRooms: []string{"announce"}},
	}, "g")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	return NewServer(cfg, store, aliases.New(), rec, dedup, nil, nil), rec
}

func post(t *testing.T, s *Server, event, secret string, body []byte, extra map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/github/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if secret != "" {
		req.Header.Set("X-Hub-Signature-256", sign(secret, body))
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	resp, err := s.app().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func pushBody(repo string) []byte {
	return []byte(`{
		"ref": "refs/heads/main",
		"compare": "https://github.com/o/` + repo + `/compare/aaa...bbb",
		"pusher": {"name": "ann"},
		"commits": [{"id": "abc1234567890", "message": "Fix it", "author": {"username": "ann"}}],
		"repository": {"name": "` + repo + `"}
	}`)
}

func TestHandleGitHubKnownProject(t *testing.T) {
	s, rec := testServer(t, nil)

	resp := post(t, s, "push", "s1", pushBody("Proj"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	rooms := rec.rooms()
	if len(rooms) != 2 || rooms[0] != "a" || rooms[1] != "b" {
		t.Errorf("delivered to %v, want [a b]", rooms)
	}
}

func TestHandleGitHubUnknownProjectUsesDefaultRoomAndGlobalSecret(t *testing.T) {
	s, rec := testServer(t, nil)

	resp := post(t, s, "push", "g", pushBody("SomethingElse"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	rooms := rec.rooms()
	if len(rooms) != 1 || rooms[0] != "lobby" {
		t.Errorf("delivered to %v, want [lobby]", rooms)
	}
}

func TestHandleGitHubSimpleRooms(t *testing.T) {
	s, rec := testServer(t, nil)

	resp := post(t, s, "push", "g", pushBody("Split"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.sends) != 2 {
		t.Fatalf("got %d sends, want 2: %v", len(rec.sends), rec.sends)
	}
	if !bytes.Contains([]byte(rec.sends[0]), []byte("compare")) {
		t.Errorf("full room should get the detailed line: %q", rec.sends[0])
	}
	if bytes.Contains([]byte(rec.sends[1]), []byte("compare")) {
		t.Errorf("simple room should get the reduced line: %q", rec.sends[1])
	}
}

func TestHandleGitHubBadSignature(t *testing.T) {
	s, rec := testServer(t, nil)

	resp := post(t, s, "push", "wrong-secret", pushBody("Proj"), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", resp.StatusCode)
	}
	if len(rec.rooms()) != 0 {
		t.Errorf("nothing should be delivered on signature mismatch, got %v", rec.rooms())
	}
}

func TestHandleGitHubProjectSecretBeatsGlobal(t *testing.T) {
	s, rec := testServer(t, nil)

	// The global secret does not sign deliveries for a project with an
	// override.
	resp := post(t, s, "push", "g", pushBody("Proj"), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", resp.StatusCode)
	}
	if len(rec.rooms()) != 0 {
		t.Errorf("got deliveries %v, want none", rec.rooms())
	}
}

func TestHandleGitHubSilencedProject(t *testing.T) {
	s, rec := testServer(t, nil)

	resp := post(t, s, "push", "s2", pushBody("Quiet"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (valid signature, no rooms)", resp.StatusCode)
	}
	if len(rec.rooms()) != 0 {
		t.Errorf("silenced project delivered to %v, want nobody", rec.rooms())
	}
}

func TestHandleGitHubPing(t *testing.T) {
	s, rec := testServer(t, nil)

	resp := post(t, s, "ping", "", []byte(`{"zen":"Design for failure."}`), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if len(rec.rooms()) != 0 {
		t.Errorf("ping should not route, got %v", rec.rooms())
	}
}

func TestHandleGitHubMissingEventHeader(t *testing.T) {
	s, _ := testServer(t, nil)

	resp := post(t, s, "", "g", pushBody("Proj"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHandleGitHubDuplicateDelivery(t *testing.T) {
	s, rec := testServer(t, &fakeDedup{})

	headers := map[string]string{"X-GitHub-Delivery": "guid-1"}
	if resp := post(t, s, "push", "s1", pushBody("Proj"), headers); resp.StatusCode != http.StatusOK {
		t.Fatalf("first delivery: got %d", resp.StatusCode)
	}
	first := len(rec.rooms())

	if resp := post(t, s, "push", "s1", pushBody("Proj"), headers); resp.StatusCode != http.StatusOK {
		t.Fatalf("replayed delivery: got %d", resp.StatusCode)
	}
	if got := len(rec.rooms()); got != first {
		t.Errorf("replayed delivery was relayed again: %d sends, want %d", got, first)
	}
}

func TestHandleGitHubRejectedDeliveryStaysRedeliverable(t *testing.T) {
	s, rec := testServer(t, &fakeDedup{})

	headers := map[string]string{"X-GitHub-Delivery": "guid-2"}
	bad := []byte(`{"repository": {"name": "Proj"}, "commits": "not-a-list"}`)
	if resp := post(t, s, "push", "s1", bad, headers); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed payload: got %d, want 400", resp.StatusCode)
	}

	// A redelivery of the same GUID with a fixed payload must relay.
	if resp := post(t, s, "push", "s1", pushBody("Proj"), headers); resp.StatusCode != http.StatusOK {
		t.Fatalf("redelivery: got %d, want 200", resp.StatusCode)
	}
	if len(rec.rooms()) == 0 {
		t.Error("redelivered fixed payload should be relayed, got no sends")
	}
}

func TestHandleGitHubIgnoredAction(t *testing.T) {
	s, rec := testServer(t, nil)

	body := []byte(`{
		"action": "synchronize",
		"number": 42,
		"pull_request": {"title": "x", "user": {"login": "ann"}},
		"repository": {"name": "Proj"}
	}`)
	resp := post(t, s, "pull_request", "s1", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if len(rec.rooms()) != 0 {
		t.Errorf("ignored action should not route, got %v", rec.rooms())
	}
}
