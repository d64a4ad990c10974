package multiplex

import "github.com/thruflo/slidesync/internal/config"

// FromConfig translates loaded configuration into a ChannelConfig and the
// options that apply it.
func FromConfig(cfg *config.Config) (ChannelConfig, []Option) {
	m := cfg.Multiplex
	ch := ChannelConfig{
		ChannelID:    m.ChannelID,
		RelayAddress: m.RelayAddress,
		Secret:       m.Secret,
	}

	opts := []Option{
		WithStrictCompatibility(m.StrictCompatibility),
		WithReceiver(m.Receiver),
		WithDebug(cfg.Debug.DuringInit, cfg.Debug.AfterInit),
	}
	if m.IdentityRange > 0 {
		opts = append(opts, WithIdentityRange(m.IdentityRange))
	}
	if m.IgnoreSameOrigin {
		opts = append(opts, WithExclusion(func() bool { return true }))
	}
	return ch, opts
}
