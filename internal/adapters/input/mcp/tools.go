package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/invopop/jsonschema"

	"hue-mcp-gateway/internal/domain/model"
	"hue-mcp-gateway/internal/domain/service"
	"hue-mcp-gateway/internal/logctx"
)

// Tool argument payloads. Schemas are reflected from these structs and
// surfaced verbatim in tools/list.

type lightArgs struct {
	LightID string `json:"lightId" jsonschema:"required,description=Hub-assigned light identifier"`
}

type stateArgs struct {
	On             *bool    `json:"on,omitempty" jsonschema:"description=Turn the target on or off"`
	Brightness     *float64 `json:"brightness,omitempty" jsonschema:"minimum=0,maximum=1,description=Brightness fraction"`
	Hue            *float64 `json:"hue,omitempty" jsonschema:"minimum=0,maximum=1,description=Hue fraction"`
	Saturation     *float64 `json:"saturation,omitempty" jsonschema:"minimum=0,maximum=1,description=Saturation fraction"`
	Color          *string  `json:"color,omitempty" jsonschema:"description=CSS colour text (named, hex, or functional)"`
	ColorTemp      *uint16  `json:"colorTemp,omitempty" jsonschema:"description=Colour temperature in mireds (153-500)"`
	TransitionTime *float64 `json:"transitionTime,omitempty" jsonschema:"minimum=0,description=Transition duration in seconds"`
}

type setLightArgs struct {
	LightID string `json:"lightId" jsonschema:"required,description=Hub-assigned light identifier"`
	stateArgs
}

type setRoomArgs struct {
	RoomID string `json:"roomId" jsonschema:"required,description=Hub-assigned room/group identifier"`
	stateArgs
}

type activateSceneArgs struct {
	SceneID string `json:"sceneId" jsonschema:"required,description=Hub-assigned scene identifier"`
	GroupID string `json:"groupId,omitempty" jsonschema:"description=Target group; resolved from the scene when omitted"`
}

func (a stateArgs) update() model.StateUpdate {
	return model.StateUpdate{
		On:             a.On,
		Brightness:     a.Brightness,
		Hue:            a.Hue,
		Saturation:     a.Saturation,
		Color:          a.Color,
		ColorTemp:      a.ColorTemp,
		TransitionTime: a.TransitionTime,
	}
}

// Tool is one entry of the tools/list result.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// toolResult is the tools/call result envelope. Downstream failures are
// reported in-band with isError, not as JSON-RPC errors.
type toolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

type toolDef struct {
	tool    Tool
	handler toolHandler
}

// Toolset dispatches tools/call requests onto the shared HubService; both
// front ends therefore contend for the same serializer slot.
type Toolset struct {
	hub    *service.HubService
	log    *slog.Logger
	tools  []*toolDef
	byName map[string]*toolDef
}

func NewToolset(hub *service.HubService, log *slog.Logger) *Toolset {
	t := &Toolset{hub: hub, log: log, byName: make(map[string]*toolDef)}

	t.register("list_lights", "List all lights known to the hub.", struct{}{},
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			return t.hub.Lights(ctx)
		})
	t.register("get_light", "Fetch the current state of one light.", lightArgs{},
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args lightArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return t.hub.Light(ctx, args.LightID)
		})
	t.register("set_light_state", "Change one light's on/off, brightness, colour, or colour temperature.", setLightArgs{},
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args setLightArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if err := t.hub.SetLight(ctx, args.LightID, args.update()); err != nil {
				return nil, err
			}
			return ack(), nil
		})
	t.register("list_rooms", "List all rooms and zones.", struct{}{},
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			return t.hub.Groups(ctx)
		})
	t.register("set_room_state", "Change the state of every light in a room.", setRoomArgs{},
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args setRoomArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if err := t.hub.SetGroup(ctx, args.RoomID, args.update()); err != nil {
				return nil, err
			}
			return ack(), nil
		})
	t.register("list_scenes", "List all scenes stored on the hub.", struct{}{},
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			return t.hub.Scenes(ctx)
		})
	t.register("activate_scene", "Recall a scene, resolving its owning room when no group is given.", activateSceneArgs{},
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args activateSceneArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if err := t.hub.ActivateScene(ctx, args.SceneID, args.GroupID); err != nil {
				return nil, err
			}
			return ack(), nil
		})
	t.register("set_home_state", "Change the state of every light in the house.", stateArgs{},
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args stateArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if err := t.hub.SetHome(ctx, args.update()); err != nil {
				return nil, err
			}
			return ack(), nil
		})

	return t
}

func (t *Toolset) register(name, desc string, argsExemplar any, h toolHandler) {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	def := &toolDef{
		tool:    Tool{Name: name, Description: desc, InputSchema: reflector.Reflect(argsExemplar)},
		handler: h,
	}
	t.tools = append(t.tools, def)
	t.byName[name] = def
}

// List returns the tool descriptors in registration order.
func (t *Toolset) List() []Tool {
	out := make([]Tool, 0, len(t.tools))
	for _, def := range t.tools {
		out = append(out, def.tool)
	}
	return out
}

// Call runs a tool by name. An unknown name or undecodable arguments is the
// caller's protocol problem (returned as error); a downstream failure is
// reported in-band so the RPC itself still succeeds.
func (t *Toolset) Call(ctx context.Context, name string, args json.RawMessage) (*toolResult, error) {
	def, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	ctx = logctx.WithToolData(ctx, &logctx.ToolData{Name: name})
	v, err := def.handler(ctx, args)
	if err != nil {
		t.log.WarnContext(ctx, "tool.call.fail", slog.String("err", err.Error()))
		return &toolResult{
			Content: []toolContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &toolResult{Content: []toolContent{{Type: "text", Text: string(text)}}}, nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

func ack() map[string]string {
	return map[string]string{"status": "ok"}
}
