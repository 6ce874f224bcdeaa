package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobwas/wsreactor/config"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestRootCmdDefaults(t *testing.T) {
	cmd := newRootCmd(env(map[string]string{
		config.EnvAddr:        "127.0.0.1:9000",
		config.EnvIdleTimeout: "5s",
	}))
	f := cmd.Flags()

	addr, err := f.GetString("addr")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", addr)

	idle, err := f.GetDuration("idle-timeout")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, idle)

	events, err := f.GetInt("max-events")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxEvents, events)
}

func TestRootCmdFlagsOverrideEnv(t *testing.T) {
	cmd := newRootCmd(env(map[string]string{config.EnvMaxConns: "10"}))
	require.NoError(t, cmd.ParseFlags([]string{"--max-conns", "20"}))

	n, err := cmd.Flags().GetInt("max-conns")
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestRootCmdInvalidConfig(t *testing.T) {
	for _, test := range []struct {
		label string
		env   map[string]string
		args  []string
		err   string
	}{
		{
			label: "env",
			env:   map[string]string{config.EnvBacklog: "many"},
			err:   config.EnvBacklog,
		},
		{
			label: "flag",
			args:  []string{"--log-level", "loud"},
			err:   "unknown log level",
		},
		{
			label: "args",
			args:  []string{"extra"},
			err:   "unknown command",
		},
	} {
		t.Run(test.label, func(t *testing.T) {
			var stderr bytes.Buffer
			cmd := newRootCmd(env(test.env))
			cmd.SetArgs(test.args)
			cmd.SetOut(&stderr)
			cmd.SetErr(&stderr)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.err)
		})
	}
}
