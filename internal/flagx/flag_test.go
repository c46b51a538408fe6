package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "short flag with separate value",
			args:    []string{"-c", "conf.json", "-a", "localhost"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "conf.json"},
		},
		{
			name:    "flag with equals",
			args:    []string{"-config=alt.json", "-a", "localhost"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=alt.json"},
		},
		{
			name:    "unknown flags ignored",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "flag without value at end is kept",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "flag followed by another flag",
			args:    []string{"-offline", "-d", "data"},
			allowed: []string{"-offline", "-d"},
			want:    []string{"-offline", "-d", "data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestStringFlag(t *testing.T) {
	assert.Equal(t, "a.json", StringFlag([]string{"-c", "a.json"}, "c", "config"))
	assert.Equal(t, "b.json", StringFlag([]string{"--config=b.json", "-x"}, "c", "config"))
	assert.Equal(t, "second", StringFlag([]string{"-c", "first", "-config", "second"}, "c", "config"))
	assert.Equal(t, "", StringFlag([]string{"-a", "127.0.0.1:1"}, "c", "config"))
}

func TestJsonConfigAndEnvFileFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"bin", "-config", "cfg.json", "-env", "prod.env", "-a", "x"}
	assert.Equal(t, "cfg.json", JsonConfigFlags())
	assert.Equal(t, "prod.env", EnvFileFlags())

	os.Args = []string{"bin"}
	assert.Empty(t, JsonConfigFlags())
	assert.Empty(t, EnvFileFlags())
}
