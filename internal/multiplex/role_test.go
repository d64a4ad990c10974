package multiplex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      ChannelConfig
		receiver bool
		want     Role
	}{
		{
			name: "nothing configured",
			cfg:  ChannelConfig{},
			want: Role{},
		},
		{
			name: "missing relay address",
			cfg:  ChannelConfig{ChannelID: "c1", Secret: "s"},
			want: Role{},
		},
		{
			name: "missing channel id",
			cfg:  ChannelConfig{RelayAddress: "r", Secret: "s"},
			want: Role{},
		},
		{
			name: "client only",
			cfg:  ChannelConfig{ChannelID: "c1", RelayAddress: "r"},
			want: Role{Active: true, Client: true},
		},
		{
			name: "master",
			cfg:  ChannelConfig{ChannelID: "c1", RelayAddress: "r", Secret: "s"},
			want: Role{Active: true, Client: true, Master: true},
		},
		{
			name:     "receiver never masters",
			cfg:      ChannelConfig{ChannelID: "c1", RelayAddress: "r", Secret: "s"},
			receiver: true,
			want:     Role{Active: true, Client: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectRole(tt.cfg, tt.receiver))
		})
	}
}

func TestRole_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "inactive", Role{}.String())
	assert.Equal(t, "client", Role{Active: true, Client: true}.String())
	assert.Equal(t, "client+master", Role{Active: true, Client: true, Master: true}.String())
}
