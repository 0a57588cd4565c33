// Package hue adapts the huego client to the HubPort interface. The adapter
// owns the fixed per-call timeout; ordering is the serializer's job.
package hue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"

	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/ports"
)

// Every downstream call gets the same fixed timeout; a hung hub surfaces as
// a failure on that one operation without blocking the queue for the next.
const callTimeout = 5 * time.Second

// Hub API error type for "link button not pressed" during user creation.
const linkButtonErrType = 101

type Client struct {
	mu     sync.RWMutex
	bridge *huego.Bridge
	log    *slog.Logger
}

var _ ports.HubPort = (*Client)(nil)

func NewClient(log *slog.Logger) *Client {
	return &Client{log: log}
}

func (c *Client) Configure(host, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bridge = huego.New(strings.TrimSuffix(host, "/"), user)
}

func (c *Client) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bridge != nil && c.bridge.Host != "" && c.bridge.User != ""
}

func (c *Client) conn() (*huego.Bridge, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bridge == nil || c.bridge.Host == "" || c.bridge.User == "" {
		return nil, ports.ErrNotConfigured
	}
	return c.bridge, nil
}

func (c *Client) Lights(ctx context.Context) ([]*model.Light, error) {
	b, err := c.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	ll, err := b.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing lights: %w", err)
	}
	out := make([]*model.Light, 0, len(ll))
	for i := range ll {
		out = append(out, lightFromHue(&ll[i]))
	}
	return out, nil
}

func (c *Client) Light(ctx context.Context, id string) (*model.Light, error) {
	b, err := c.conn()
	if err != nil {
		return nil, err
	}
	n, err := numericID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	l, err := b.GetLightContext(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("fetching light %s: %w", id, err)
	}
	return lightFromHue(l), nil
}

func (c *Client) SetLightState(ctx context.Context, id string, state huego.State) error {
	b, err := c.conn()
	if err != nil {
		return err
	}
	n, err := numericID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := b.SetLightStateContext(ctx, n, state); err != nil {
		return fmt.Errorf("setting light %s state: %w", id, err)
	}
	return nil
}

func (c *Client) Groups(ctx context.Context) ([]*model.Group, error) {
	b, err := c.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	gg, err := b.GetGroupsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	out := make([]*model.Group, 0, len(gg))
	for i := range gg {
		out = append(out, groupFromHue(&gg[i]))
	}
	return out, nil
}

func (c *Client) Group(ctx context.Context, id string) (*model.Group, error) {
	b, err := c.conn()
	if err != nil {
		return nil, err
	}
	n, err := numericID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	g, err := b.GetGroupContext(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", id, err)
	}
	return groupFromHue(g), nil
}

func (c *Client) SetGroupState(ctx context.Context, id string, state huego.State) error {
	b, err := c.conn()
	if err != nil {
		return err
	}
	n, err := numericID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := b.SetGroupStateContext(ctx, n, state); err != nil {
		return fmt.Errorf("setting group %s state: %w", id, err)
	}
	return nil
}

func (c *Client) Scenes(ctx context.Context) ([]*model.Scene, error) {
	b, err := c.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	ss, err := b.GetScenesContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scenes: %w", err)
	}
	out := make([]*model.Scene, 0, len(ss))
	for i := range ss {
		s := &ss[i]
		out = append(out, &model.Scene{
			ID:     s.ID,
			Name:   s.Name,
			Group:  s.Group,
			Lights: s.Lights,
		})
	}
	return out, nil
}

func (c *Client) RecallScene(ctx context.Context, id string, groupID int) error {
	b, err := c.conn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := b.RecallSceneContext(ctx, id, groupID); err != nil {
		return fmt.Errorf("recalling scene %s: %w", id, err)
	}
	return nil
}

// Discover locates a hub on the local network via the meethue discovery
// service and returns its address.
func (c *Client) Discover(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	b, err := huego.DiscoverContext(ctx)
	if err != nil {
		return "", fmt.Errorf("hub discovery: %w", err)
	}
	if b == nil || b.Host == "" {
		return "", fmt.Errorf("no hub found on the local network")
	}
	return b.Host, nil
}

// Pair requests an application key from the hub at host. The hub only grants
// one within the window after its physical link button was pressed.
func (c *Client) Pair(ctx context.Context, host, deviceType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	b := huego.New(strings.TrimSuffix(host, "/"), "")
	user, err := b.CreateUserContext(ctx, deviceType)
	if err != nil {
		if isLinkButtonErr(err) {
			return "", ports.ErrLinkButton
		}
		return "", fmt.Errorf("creating hub user: %w", err)
	}
	return user, nil
}

func isLinkButtonErr(err error) bool {
	var aerr *huego.APIError
	if errors.As(err, &aerr) {
		return aerr.Type == linkButtonErrType
	}
	return strings.Contains(err.Error(), "link button not pressed")
}

func numericID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("invalid hub resource id %q", id)
	}
	return n, nil
}

func lightFromHue(l *huego.Light) *model.Light {
	return &model.Light{
		ID:               strconv.Itoa(l.ID),
		Name:             l.Name,
		Type:             l.Type,
		ModelID:          l.ModelID,
		UniqueID:         l.UniqueID,
		ManufacturerName: l.ManufacturerName,
		State:            l.State,
	}
}

func groupFromHue(g *huego.Group) *model.Group {
	mg := &model.Group{
		ID:     strconv.Itoa(g.ID),
		Name:   g.Name,
		Type:   g.Type,
		Class:  g.Class,
		Lights: g.Lights,
		State:  g.State,
	}
	if g.GroupState != nil {
		mg.AnyOn = g.GroupState.AnyOn
		mg.AllOn = g.GroupState.AllOn
	}
	return mg
}
