package multiplex

// ChannelConfig is the connection configuration of a Session.
type ChannelConfig struct {
	ChannelID    string
	RelayAddress string
	Secret       string
}

// Role describes what a Session does on its channel.
type Role struct {
	// Active is false when channel id or relay address is missing; the
	// session then does nothing at all.
	Active bool
	// Client sessions apply relayed state. Every active session is a client.
	Client bool
	// Master sessions broadcast local state changes.
	Master bool
}

func (r Role) String() string {
	switch {
	case !r.Active:
		return "inactive"
	case r.Master:
		return "client+master"
	default:
		return "client"
	}
}

// SelectRole decides the role for cfg. receiver marks a display-only surface
// that must never broadcast even when it holds the secret.
func SelectRole(cfg ChannelConfig, receiver bool) Role {
	if cfg.ChannelID == "" || cfg.RelayAddress == "" {
		return Role{}
	}
	return Role{
		Active: true,
		Client: true,
		Master: cfg.Secret != "" && !receiver,
	}
}
