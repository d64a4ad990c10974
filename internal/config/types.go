package config

// Multiplex configures the synchronization session of one presentation.
type Multiplex struct {
	// ChannelID scopes which envelopes this instance accepts. Required.
	ChannelID string `yaml:"channel_id"`
	// RelayAddress is the relay base URL. Required.
	RelayAddress string `yaml:"relay_address"`
	// Secret proves this instance may broadcast. Absent means client only.
	Secret string `yaml:"secret,omitempty"`
	// StrictCompatibility omits client_id from published envelopes, for
	// followers that only speak the reference multiplex format.
	StrictCompatibility bool `yaml:"strict_compatibility"`
	// IdentityRange bounds the random session identity.
	IdentityRange int `yaml:"identity_range"`
	// Receiver marks a display-only surface that must never broadcast.
	Receiver bool `yaml:"receiver"`
	// IgnoreSameOrigin drops every inbound envelope, for a host's own
	// loopback subscription.
	IgnoreSameOrigin bool `yaml:"ignore_same_origin"`
}

// Debug controls diagnostic verbosity before and after startup completes.
type Debug struct {
	DuringInit bool `yaml:"during_init"`
	AfterInit  bool `yaml:"after_init"`
}

// Relay configures the relay server.
type Relay struct {
	Port          int    `yaml:"port"`
	HashAlgorithm string `yaml:"hash_algorithm"`
	Trace         bool   `yaml:"trace"`
}

// Config represents the .slidesync/config.yaml file.
type Config struct {
	Multiplex Multiplex `yaml:"multiplex"`
	Debug     Debug     `yaml:"debug"`
	Relay     Relay     `yaml:"relay"`
}

// Environment variables that override the config file.
const (
	EnvChannelID    = "SLIDESYNC_CHANNEL_ID"
	EnvRelayAddress = "SLIDESYNC_RELAY_ADDRESS"
	EnvSecret       = "SLIDESYNC_SECRET"
)
