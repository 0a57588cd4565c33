package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/amimof/huego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/domain/queue"
	"hue-mcp-gateway/internal/ports"
)

type MockHubPort struct {
	mock.Mock
}

func (m *MockHubPort) Lights(ctx context.Context) ([]*model.Light, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.Light), args.Error(1)
}

func (m *MockHubPort) Light(ctx context.Context, id string) (*model.Light, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Light), args.Error(1)
}

func (m *MockHubPort) SetLightState(ctx context.Context, id string, state huego.State) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockHubPort) Groups(ctx context.Context) ([]*model.Group, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.Group), args.Error(1)
}

func (m *MockHubPort) Group(ctx context.Context, id string) (*model.Group, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *MockHubPort) SetGroupState(ctx context.Context, id string, state huego.State) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockHubPort) Scenes(ctx context.Context) ([]*model.Scene, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.Scene), args.Error(1)
}

func (m *MockHubPort) RecallScene(ctx context.Context, id string, groupID int) error {
	args := m.Called(ctx, id, groupID)
	return args.Error(0)
}

func (m *MockHubPort) Discover(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockHubPort) Pair(ctx context.Context, host, deviceType string) (string, error) {
	args := m.Called(ctx, host, deviceType)
	return args.String(0), args.Error(1)
}

func (m *MockHubPort) Configure(host, user string) {
	m.Called(host, user)
}

func (m *MockHubPort) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockConfigRepo struct {
	mock.Mock
}

func (m *MockConfigRepo) Get(ctx context.Context) (*model.Config, error) {
	args := m.Called(ctx)
	return args.Get(0).(*model.Config), args.Error(1)
}

func (m *MockConfigRepo) Save(ctx context.Context, cfg *model.Config) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func newTestService(hub *MockHubPort) (*HubService, *queue.Serializer) {
	q := queue.NewSerializer()
	return NewHubService(hub, new(MockConfigRepo), q, slog.New(slog.DiscardHandler)), q
}

func TestHubService_NotConfigured(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(false)

	s, q := newTestService(hub)
	defer q.Close()

	_, err := s.Lights(context.Background())
	assert.ErrorIs(t, err, ports.ErrNotConfigured)

	on := true
	err = s.SetLightAsync(context.Background(), "1", model.StateUpdate{On: &on})
	assert.ErrorIs(t, err, ports.ErrNotConfigured)

	// Nothing may reach the hub.
	hub.AssertNotCalled(t, "Lights", mock.Anything)
	hub.AssertNotCalled(t, "SetLightState", mock.Anything, mock.Anything, mock.Anything)
}

func TestHubService_BrightnessClamping(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)

	var sent huego.State
	hub.On("SetLightState", mock.Anything, "1", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(2).(huego.State)
	}).Return(nil)

	s, q := newTestService(hub)
	defer q.Close()

	zero := 0.0
	require.NoError(t, s.SetLight(context.Background(), "1", model.StateUpdate{Brightness: &zero}))
	assert.Equal(t, uint8(1), sent.Bri, "fraction 0 maps to the native floor of 1")

	one := 1.0
	require.NoError(t, s.SetLight(context.Background(), "1", model.StateUpdate{Brightness: &one}))
	assert.Equal(t, uint8(254), sent.Bri)
	assert.True(t, sent.On, "a brightness write implies on")
}

func TestHubService_ColorTempClamping(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)

	var sent huego.State
	hub.On("SetLightState", mock.Anything, "1", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(2).(huego.State)
	}).Return(nil)

	s, q := newTestService(hub)
	defer q.Close()

	low := uint16(100)
	require.NoError(t, s.SetLight(context.Background(), "1", model.StateUpdate{ColorTemp: &low}))
	assert.Equal(t, uint16(153), sent.Ct)

	high := uint16(9000)
	require.NoError(t, s.SetLight(context.Background(), "1", model.StateUpdate{ColorTemp: &high}))
	assert.Equal(t, uint16(500), sent.Ct)
}

func TestHubService_InvalidColorRejectedBeforeEnqueue(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)

	s, q := newTestService(hub)
	defer q.Close()

	bad := "not-a-color"
	err := s.SetLight(context.Background(), "1", model.StateUpdate{Color: &bad})
	assert.Error(t, err)
	hub.AssertNotCalled(t, "SetLightState", mock.Anything, mock.Anything, mock.Anything)
}

func TestHubService_ColorDerivedBrightnessYieldsToExplicit(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)

	var sent huego.State
	hub.On("SetLightState", mock.Anything, "1", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(2).(huego.State)
	}).Return(nil)

	s, q := newTestService(hub)
	defer q.Close()

	red := "red"
	require.NoError(t, s.SetLight(context.Background(), "1", model.StateUpdate{Color: &red}))
	assert.Equal(t, uint8(254), sent.Bri, "saturated red carries full colour-derived brightness")

	half := 0.5
	require.NoError(t, s.SetLight(context.Background(), "1", model.StateUpdate{Color: &red, Brightness: &half}))
	assert.Equal(t, uint8(127), sent.Bri, "explicit brightness wins over the colour-derived one")
}

func TestHubService_SceneGroupResolution(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)
	hub.On("Scenes", mock.Anything).Return([]*model.Scene{
		{ID: "abc", Name: "Relax", Group: "7"},
		{ID: "def", Name: "Focus", Group: "2"},
	}, nil)
	hub.On("RecallScene", mock.Anything, "abc", 7).Return(nil)

	s, q := newTestService(hub)
	defer q.Close()

	require.NoError(t, s.ActivateScene(context.Background(), "abc", ""))
	hub.AssertCalled(t, "RecallScene", mock.Anything, "abc", 7)
}

func TestHubService_SceneGroupFallback(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)
	hub.On("Scenes", mock.Anything).Return([]*model.Scene(nil), errors.New("hub busy"))
	hub.On("RecallScene", mock.Anything, "abc", 0).Return(nil)

	s, q := newTestService(hub)
	defer q.Close()

	require.NoError(t, s.ActivateScene(context.Background(), "abc", ""))
	hub.AssertCalled(t, "RecallScene", mock.Anything, "abc", 0)
}

func TestHubService_ExplicitSceneGroupSkipsLookup(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)
	hub.On("RecallScene", mock.Anything, "abc", 3).Return(nil)

	s, q := newTestService(hub)
	defer q.Close()

	require.NoError(t, s.ActivateScene(context.Background(), "abc", "3"))
	hub.AssertNotCalled(t, "Scenes", mock.Anything)

	err := s.ActivateScene(context.Background(), "abc", "kitchen")
	assert.ErrorIs(t, err, ErrInvalidGroupID, "a non-numeric group id is a validation error")

	err = s.ActivateSceneAsync(context.Background(), "abc", "kitchen")
	assert.ErrorIs(t, err, ErrInvalidGroupID)
}

func TestHubService_AsyncWriteFailureDoesNotSurface(t *testing.T) {
	hub := new(MockHubPort)
	hub.On("IsConfigured").Return(true)
	reached := make(chan struct{})
	hub.On("SetLightState", mock.Anything, "1", mock.Anything).Run(func(mock.Arguments) {
		close(reached)
	}).Return(errors.New("hub timeout"))

	s, q := newTestService(hub)
	defer q.Close()

	on := true
	// The submission succeeds even though the downstream call will fail.
	require.NoError(t, s.SetLightAsync(context.Background(), "1", model.StateUpdate{On: &on}))

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("queued write never reached the hub")
	}
}

func TestHubService_Pair(t *testing.T) {
	hub := new(MockHubPort)
	repo := new(MockConfigRepo)
	hub.On("Discover", mock.Anything).Return("192.168.1.20", nil)
	hub.On("Pair", mock.Anything, "192.168.1.20", pairDeviceType).Return("app-key", nil)
	hub.On("Configure", "192.168.1.20", "app-key").Return()
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	q := queue.NewSerializer()
	defer q.Close()
	s := NewHubService(hub, repo, q, slog.New(slog.DiscardHandler))

	cfg, err := s.Pair(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", cfg.HubHost)
	assert.Equal(t, "app-key", cfg.HubUser)
	repo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestHubService_PairLinkButton(t *testing.T) {
	hub := new(MockHubPort)
	repo := new(MockConfigRepo)
	hub.On("Pair", mock.Anything, "192.168.1.20", pairDeviceType).Return("", ports.ErrLinkButton)

	q := queue.NewSerializer()
	defer q.Close()
	s := NewHubService(hub, repo, q, slog.New(slog.DiscardHandler))

	_, err := s.Pair(context.Background(), "192.168.1.20")
	assert.ErrorIs(t, err, ports.ErrLinkButton)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
