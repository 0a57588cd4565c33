package model

// Config holds the hub credentials issued by the pairing subflow.
type Config struct {
	HubHost string `json:"hub_host"`
	HubUser string `json:"hub_user"`
}

// Complete reports whether the config carries everything needed to talk to
// the hub.
func (c *Config) Complete() bool {
	return c != nil && c.HubHost != "" && c.HubUser != ""
}
