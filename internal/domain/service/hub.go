// Package service holds the HubService, the single choke point between both
// front ends and the hub. Every downstream call, read or write, goes through
// one shared request serializer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/amimof/huego"

	"hue-mcp-gateway/internal/domain/color"
	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/domain/queue"
	"hue-mcp-gateway/internal/ports"
)

const (
	// Hub native colour temperature range, in mireds.
	ctMin uint16 = 153
	ctMax uint16 = 500

	// Group 0 is the hub's implicit all-lights group, also the fallback
	// target when a scene's owning group cannot be resolved.
	allLightsGroup = 0

	pairDeviceType = "hue-mcp-gateway"
)

// ErrInvalidGroupID marks a caller-supplied group id that is not a hub group
// number. A validation error, not a downstream failure.
var ErrInvalidGroupID = errors.New("invalid group id")

type HubService struct {
	hub   ports.HubPort
	repo  ports.ConfigRepository
	queue *queue.Serializer
	log   *slog.Logger
}

func NewHubService(hub ports.HubPort, repo ports.ConfigRepository, q *queue.Serializer, log *slog.Logger) *HubService {
	return &HubService{hub: hub, repo: repo, queue: q, log: log}
}

func (s *HubService) Lights(ctx context.Context) ([]*model.Light, error) {
	if !s.hub.IsConfigured() {
		return nil, ports.ErrNotConfigured
	}
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Lights(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Light), nil
}

func (s *HubService) Light(ctx context.Context, id string) (*model.Light, error) {
	if !s.hub.IsConfigured() {
		return nil, ports.ErrNotConfigured
	}
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Light(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Light), nil
}

func (s *HubService) Groups(ctx context.Context) ([]*model.Group, error) {
	if !s.hub.IsConfigured() {
		return nil, ports.ErrNotConfigured
	}
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Groups(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Group), nil
}

func (s *HubService) Group(ctx context.Context, id string) (*model.Group, error) {
	if !s.hub.IsConfigured() {
		return nil, ports.ErrNotConfigured
	}
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Group(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Group), nil
}

func (s *HubService) Scenes(ctx context.Context) ([]*model.Scene, error) {
	if !s.hub.IsConfigured() {
		return nil, ports.ErrNotConfigured
	}
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Scenes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Scene), nil
}

// SetLight translates upd to the hub's native ranges and applies it,
// blocking until the downstream call settles.
func (s *HubService) SetLight(ctx context.Context, id string, upd model.StateUpdate) error {
	if !s.hub.IsConfigured() {
		return ports.ErrNotConfigured
	}
	st, err := NativeState(upd)
	if err != nil {
		return err
	}
	_, err = s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return nil, s.hub.SetLightState(ctx, id, st)
	})
	return err
}

// SetLightAsync validates and enqueues the write, then returns without
// waiting for the hub. Failures are logged; the caller already got its
// acknowledgement.
func (s *HubService) SetLightAsync(ctx context.Context, id string, upd model.StateUpdate) error {
	if !s.hub.IsConfigured() {
		return ports.ErrNotConfigured
	}
	st, err := NativeState(upd)
	if err != nil {
		return err
	}
	return s.fireAndForget(ctx, "light", id, func(ctx context.Context) (any, error) {
		return nil, s.hub.SetLightState(ctx, id, st)
	})
}

func (s *HubService) SetGroup(ctx context.Context, id string, upd model.StateUpdate) error {
	if !s.hub.IsConfigured() {
		return ports.ErrNotConfigured
	}
	st, err := NativeState(upd)
	if err != nil {
		return err
	}
	_, err = s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return nil, s.hub.SetGroupState(ctx, id, st)
	})
	return err
}

func (s *HubService) SetGroupAsync(ctx context.Context, id string, upd model.StateUpdate) error {
	if !s.hub.IsConfigured() {
		return ports.ErrNotConfigured
	}
	st, err := NativeState(upd)
	if err != nil {
		return err
	}
	return s.fireAndForget(ctx, "group", id, func(ctx context.Context) (any, error) {
		return nil, s.hub.SetGroupState(ctx, id, st)
	})
}

// SetHome applies upd house-wide via the all-lights group.
func (s *HubService) SetHome(ctx context.Context, upd model.StateUpdate) error {
	return s.SetGroup(ctx, strconv.Itoa(allLightsGroup), upd)
}

func (s *HubService) SetHomeAsync(ctx context.Context, upd model.StateUpdate) error {
	return s.SetGroupAsync(ctx, strconv.Itoa(allLightsGroup), upd)
}

// ActivateScene recalls a scene. When groupID is empty the owning group is
// resolved by listing scenes and matching by id, falling back to the
// all-lights group when resolution fails. The lookup and the recall are two
// separately serialized operations; a concurrent scene mutation between them
// can still win the race (kept as-is, see DESIGN.md).
func (s *HubService) ActivateScene(ctx context.Context, sceneID, groupID string) error {
	if !s.hub.IsConfigured() {
		return ports.ErrNotConfigured
	}

	gid := allLightsGroup
	if groupID != "" {
		n, err := strconv.Atoi(groupID)
		if err != nil {
			return fmt.Errorf("%w %q", ErrInvalidGroupID, groupID)
		}
		gid = n
	} else {
		gid = s.resolveSceneGroup(ctx, sceneID)
	}

	_, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return nil, s.hub.RecallScene(ctx, sceneID, gid)
	})
	return err
}

func (s *HubService) ActivateSceneAsync(ctx context.Context, sceneID, groupID string) error {
	if !s.hub.IsConfigured() {
		return ports.ErrNotConfigured
	}
	if groupID != "" {
		if _, err := strconv.Atoi(groupID); err != nil {
			return fmt.Errorf("%w %q", ErrInvalidGroupID, groupID)
		}
	}
	opCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.ActivateScene(opCtx, sceneID, groupID); err != nil {
			s.log.Error("scene.activate.fail",
				slog.String("scene", sceneID),
				slog.String("err", err.Error()))
		}
	}()
	return nil
}

func (s *HubService) resolveSceneGroup(ctx context.Context, sceneID string) int {
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Scenes(ctx)
	})
	if err != nil {
		s.log.Warn("scene.group.resolve.fail", slog.String("scene", sceneID), slog.String("err", err.Error()))
		return allLightsGroup
	}
	for _, sc := range v.([]*model.Scene) {
		if sc.ID != sceneID {
			continue
		}
		if n, err := strconv.Atoi(sc.Group); err == nil {
			return n
		}
		break
	}
	return allLightsGroup
}

// Pair runs the setup subflow: discover the hub when no host is given, then
// request an application key (the hub requires its link button to have been
// pressed). Credentials are persisted and applied immediately.
func (s *HubService) Pair(ctx context.Context, host string) (*model.Config, error) {
	if host == "" {
		v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
			return s.hub.Discover(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("hub discovery failed: %w", err)
		}
		host = v.(string)
	}

	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.hub.Pair(ctx, host, pairDeviceType)
	})
	if err != nil {
		return nil, err
	}
	user := v.(string)

	cfg := &model.Config{HubHost: host, HubUser: user}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("saving hub credentials: %w", err)
	}
	s.hub.Configure(host, user)
	s.log.Info("hub.paired", slog.String("host", host))
	return cfg, nil
}

// Configured reports whether the hub credentials are set.
func (s *HubService) Configured() bool {
	return s.hub.IsConfigured()
}

func (s *HubService) fireAndForget(ctx context.Context, kind, id string, op queue.Operation) error {
	out, err := s.queue.EnqueueAsync(context.WithoutCancel(ctx), op)
	if err != nil {
		return err
	}
	go func() {
		if res := <-out; res.Err != nil {
			s.log.Error("hub.write.fail",
				slog.String("resource", kind),
				slog.String("id", id),
				slog.String("err", res.Err.Error()))
		}
	}()
	return nil
}

// NativeState translates a semantic StateUpdate into the hub's native wire
// state. Out-of-range numeric input is clamped, not rejected; boundary
// layers that want rejection validate before calling in. Any field that
// implies light output also forces the light on unless the caller said
// otherwise.
func NativeState(upd model.StateUpdate) (huego.State, error) {
	st := huego.State{}
	touched := false

	if upd.Brightness != nil {
		st.Bri = color.Brightness(*upd.Brightness)
		touched = true
	}
	if upd.Color != nil {
		xy, bri, err := color.Translate(*upd.Color)
		if err != nil {
			return huego.State{}, err
		}
		st.Xy = []float32{float32(xy.X), float32(xy.Y)}
		if upd.Brightness == nil {
			st.Bri = bri
		}
		touched = true
	}
	if upd.Hue != nil {
		st.Hue = uint16(clamp01(*upd.Hue) * 65535)
		touched = true
	}
	if upd.Saturation != nil {
		st.Sat = uint8(clamp01(*upd.Saturation) * 254)
		touched = true
	}
	if upd.ColorTemp != nil {
		st.Ct = clampCT(*upd.ColorTemp)
		touched = true
	}
	if upd.TransitionTime != nil {
		secs := *upd.TransitionTime
		if secs < 0 {
			secs = 0
		}
		// Native transition time is in 100 ms steps.
		st.TransitionTime = uint16(secs * 10)
	}

	switch {
	case upd.On != nil:
		st.On = *upd.On
	case touched:
		st.On = true
	}
	return st, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// clampCT clamps a colour temperature to the hub's [153,500] mired range.
func clampCT(ct uint16) uint16 {
	if ct < ctMin {
		return ctMin
	}
	if ct > ctMax {
		return ctMax
	}
	return ct
}
