package ports

import (
	"context"

	"github.com/amimof/huego"
	"hue-mcp-gateway/internal/domain/model"
)

// HubPort is the outbound interface to the lighting hub. Implementations own
// the wire protocol and the per-call timeout; callers own ordering (every call
// is expected to arrive through the request serializer).
type HubPort interface {
	Lights(ctx context.Context) ([]*model.Light, error)
	Light(ctx context.Context, id string) (*model.Light, error)
	SetLightState(ctx context.Context, id string, state huego.State) error

	Groups(ctx context.Context) ([]*model.Group, error)
	Group(ctx context.Context, id string) (*model.Group, error)
	SetGroupState(ctx context.Context, id string, state huego.State) error

	Scenes(ctx context.Context) ([]*model.Scene, error)
	RecallScene(ctx context.Context, id string, groupID int) error

	// Setup subflow.
	Discover(ctx context.Context) (string, error)
	Pair(ctx context.Context, host, deviceType string) (string, error)

	Configure(host, user string)
	IsConfigured() bool
}
