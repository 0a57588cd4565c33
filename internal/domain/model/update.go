package model

// StateUpdate is the semantic form of a write. All fields are optional;
// fractions are 0..1, colour temperature is in mireds, transition in seconds.
// Translation to the hub's native integer ranges happens in the service layer.
type StateUpdate struct {
	On             *bool    `json:"on,omitempty"`
	Brightness     *float64 `json:"brightness,omitempty"`
	Hue            *float64 `json:"hue,omitempty"`
	Saturation     *float64 `json:"saturation,omitempty"`
	Color          *string  `json:"color,omitempty"`
	ColorTemp      *uint16  `json:"colorTemp,omitempty"`
	TransitionTime *float64 `json:"transitionTime,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u StateUpdate) Empty() bool {
	return u.On == nil && u.Brightness == nil && u.Hue == nil && u.Saturation == nil &&
		u.Color == nil && u.ColorTemp == nil && u.TransitionTime == nil
}
