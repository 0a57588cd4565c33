package model

import "github.com/amimof/huego"

// Light is a read-through view of one hub light. Identifiers are assigned by
// the hub and treated as opaque strings; nothing here is cached or persisted.
type Light struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Type             string       `json:"type"`
	ModelID          string       `json:"modelId,omitempty"`
	UniqueID         string       `json:"uniqueId,omitempty"`
	ManufacturerName string       `json:"manufacturerName,omitempty"`
	State            *huego.State `json:"state,omitempty"`
}

// Group is a room or zone on the hub. Group "0" is the hub's implicit
// all-lights group.
type Group struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Type   string       `json:"type,omitempty"`
	Class  string       `json:"class,omitempty"`
	Lights []string     `json:"lights,omitempty"`
	AnyOn  bool         `json:"anyOn"`
	AllOn  bool         `json:"allOn"`
	State  *huego.State `json:"state,omitempty"`
}

// Scene is a stored light arrangement. Group is the id of the owning group
// and may be empty for legacy scenes.
type Scene struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Group  string   `json:"group,omitempty"`
	Lights []string `json:"lights,omitempty"`
}
