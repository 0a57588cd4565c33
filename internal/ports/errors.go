package ports

import "errors"

var (
	// ErrNotConfigured is returned when a hub operation is attempted before
	// credentials have been set. Checked at the boundary, never sent downstream.
	ErrNotConfigured = errors.New("hub is not configured")

	// ErrLinkButton is returned by pairing when the hub's physical link button
	// has not been pressed.
	ErrLinkButton = errors.New("hub link button not pressed")
)
