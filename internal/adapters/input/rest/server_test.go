package rest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amimof/huego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/domain/queue"
	"hue-mcp-gateway/internal/domain/service"
	"hue-mcp-gateway/internal/ports"
)

// fakeHub records downstream calls with timing so tests can assert the
// single-flight property end to end.
type fakeHub struct {
	mu         sync.Mutex
	configured bool
	delay      time.Duration
	inFlight   atomic.Int32
	overlap    atomic.Bool
	writes     []string
	lights     []*model.Light
	scenes     []*model.Scene
}

func (f *fakeHub) enter() {
	if f.inFlight.Add(1) != 1 {
		f.overlap.Store(true)
	}
	time.Sleep(f.delay)
}

func (f *fakeHub) leave() { f.inFlight.Add(-1) }

func (f *fakeHub) Lights(ctx context.Context) ([]*model.Light, error) {
	f.enter()
	defer f.leave()
	return f.lights, nil
}

func (f *fakeHub) Light(ctx context.Context, id string) (*model.Light, error) {
	f.enter()
	defer f.leave()
	for _, l := range f.lights {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, errors.New("light not found")
}

func (f *fakeHub) SetLightState(ctx context.Context, id string, state huego.State) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	f.writes = append(f.writes, "light:"+id)
	f.mu.Unlock()
	return nil
}

func (f *fakeHub) Groups(ctx context.Context) ([]*model.Group, error) {
	f.enter()
	defer f.leave()
	return nil, nil
}

func (f *fakeHub) Group(ctx context.Context, id string) (*model.Group, error) {
	f.enter()
	defer f.leave()
	return &model.Group{ID: id, Name: "Room " + id}, nil
}

func (f *fakeHub) SetGroupState(ctx context.Context, id string, state huego.State) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	f.writes = append(f.writes, "group:"+id)
	f.mu.Unlock()
	return nil
}

func (f *fakeHub) Scenes(ctx context.Context) ([]*model.Scene, error) {
	f.enter()
	defer f.leave()
	return f.scenes, nil
}

func (f *fakeHub) RecallScene(ctx context.Context, id string, gid int) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	f.writes = append(f.writes, "scene:"+id)
	f.mu.Unlock()
	return nil
}

func (f *fakeHub) Discover(ctx context.Context) (string, error)          { return "192.168.1.20", nil }
func (f *fakeHub) Pair(ctx context.Context, h, d string) (string, error) { return "", ports.ErrLinkButton }
func (f *fakeHub) Configure(host, user string)                           {}
func (f *fakeHub) IsConfigured() bool                                    { return f.configured }

func (f *fakeHub) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func newTestServer(t *testing.T, hub *fakeHub) *Server {
	t.Helper()
	q := queue.NewSerializer()
	t.Cleanup(q.Close)
	log := slog.New(slog.DiscardHandler)
	return NewServer(service.NewHubService(hub, fakeRepo{}, q, log), log)
}

type fakeRepo struct{}

func (fakeRepo) Get(ctx context.Context) (*model.Config, error)  { return &model.Config{}, nil }
func (fakeRepo) Save(ctx context.Context, c *model.Config) error { return nil }

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_GetLights(t *testing.T) {
	hub := &fakeHub{configured: true, lights: []*model.Light{
		{ID: "1", Name: "Desk", State: &huego.State{On: true}},
	}}
	s := newTestServer(t, hub)

	rec := doJSON(s, http.MethodGet, "/api/lights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Desk")
}

func TestServer_WriteReturnsAcceptedImmediately(t *testing.T) {
	hub := &fakeHub{configured: true, delay: 50 * time.Millisecond}
	s := newTestServer(t, hub)

	start := time.Now()
	rec := doJSON(s, http.MethodPut, "/api/lights/1/state", `{"on":true,"brightness":0.5}`)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "accepted")
	assert.Less(t, elapsed, 40*time.Millisecond, "the acknowledgement must not wait for the hub")

	assert.Eventually(t, func() bool {
		return len(hub.writeLog()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServer_ConcurrentWritesAreSerializedDownstream(t *testing.T) {
	hub := &fakeHub{configured: true, delay: 20 * time.Millisecond}
	s := newTestServer(t, hub)

	var wg sync.WaitGroup
	codes := make([]int, 2)
	paths := []string{"/api/lights/1/state", "/api/lights/2/state"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := doJSON(s, http.MethodPut, paths[i], `{"on":true}`)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	assert.Equal(t, http.StatusAccepted, codes[0])
	assert.Equal(t, http.StatusAccepted, codes[1])

	require.Eventually(t, func() bool {
		return len(hub.writeLog()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, hub.overlap.Load(), "downstream calls must run strictly one after the other")
	assert.ElementsMatch(t, []string{"light:1", "light:2"}, hub.writeLog())
}

func TestServer_ValidationRejectsBeforeSerializer(t *testing.T) {
	hub := &fakeHub{configured: true}
	s := newTestServer(t, hub)

	cases := []struct {
		name string
		body string
	}{
		{"brightness above 1", `{"brightness":1.5}`},
		{"brightness below 0", `{"brightness":-0.2}`},
		{"colorTemp below range", `{"colorTemp":100}`},
		{"colorTemp above range", `{"colorTemp":600}`},
		{"bad color text", `{"color":"not-a-color"}`},
		{"negative transition", `{"transitionTime":-2}`},
		{"empty update", `{}`},
		{"malformed JSON", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(s, http.MethodPut, "/api/lights/1/state", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, hub.writeLog(), "rejected writes must never reach the hub")
}

func TestServer_UnconfiguredHubIsServiceUnavailable(t *testing.T) {
	hub := &fakeHub{configured: false}
	s := newTestServer(t, hub)

	rec := doJSON(s, http.MethodGet, "/api/lights", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(s, http.MethodPut, "/api/lights/1/state", `{"on":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_SceneActivation(t *testing.T) {
	hub := &fakeHub{configured: true, scenes: []*model.Scene{
		{ID: "abc", Name: "Relax", Group: "4"},
	}}
	s := newTestServer(t, hub)

	rec := doJSON(s, http.MethodPost, "/api/scenes/abc/activate", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		log := hub.writeLog()
		return len(log) == 1 && log[0] == "scene:abc"
	}, time.Second, 5*time.Millisecond)
}

func TestServer_SceneActivationBadGroupIsClientError(t *testing.T) {
	hub := &fakeHub{configured: true}
	s := newTestServer(t, hub)

	rec := doJSON(s, http.MethodPost, "/api/scenes/abc/activate", `{"group":"kitchen"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid group id")
	assert.Empty(t, hub.writeLog())
}

func TestServer_PairLinkButtonNotPressed(t *testing.T) {
	hub := &fakeHub{}
	s := newTestServer(t, hub)

	rec := doJSON(s, http.MethodPost, "/api/setup/pair", `{"host":"192.168.1.20"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "link button")
}
