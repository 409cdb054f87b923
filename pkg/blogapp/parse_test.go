package blogapp_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youssef-Hossam5/Blog-app/pkg/blogapp"
)

func TestParseCommands(t *testing.T) {
	cases := []struct {
		name  string
		args  []string
		check func(t *testing.T, cmd blogapp.Command)
	}{
		{
			name: "setup",
			args: []string{"setup"},
			check: func(t *testing.T, cmd blogapp.Command) {
				require.IsType(t, &blogapp.SetupCommand{}, cmd)
			},
		},
		{
			name: "migrate",
			args: []string{"migrate"},
			check: func(t *testing.T, cmd blogapp.Command) {
				require.IsType(t, &blogapp.MigrateCommand{}, cmd)
			},
		},
		{
			name: "reconcile with window",
			args: []string{"-since", "2026-01-02T03:04:05Z", "reconcile"},
			check: func(t *testing.T, cmd blogapp.Command) {
				rc, ok := cmd.(*blogapp.ReconcileCommand)
				require.True(t, ok)
				assert.Equal(t, "2026-01-02T03:04:05Z", rc.Since)
			},
		},
		{
			name: "phase defaults to show",
			args: []string{"phase"},
			check: func(t *testing.T, cmd blogapp.Command) {
				pc, ok := cmd.(*blogapp.PhaseCommand)
				require.True(t, ok)
				assert.Equal(t, "show", pc.Action)
			},
		},
		{
			name: "phase advance",
			args: []string{"phase", "advance", "dual_write_secondary_read"},
			check: func(t *testing.T, cmd blogapp.Command) {
				pc, ok := cmd.(*blogapp.PhaseCommand)
				require.True(t, ok)
				assert.Equal(t, "advance", pc.Action)
				assert.Equal(t, "dual_write_secondary_read", pc.Target)
			},
		},
		{
			name: "phase rollback",
			args: []string{"phase", "rollback", "dual_write_primary_read"},
			check: func(t *testing.T, cmd blogapp.Command) {
				pc, ok := cmd.(*blogapp.PhaseCommand)
				require.True(t, ok)
				assert.Equal(t, "rollback", pc.Action)
				assert.Equal(t, "dual_write_primary_read", pc.Target)
			},
		},
		{
			name: "stats",
			args: []string{"stats"},
			check: func(t *testing.T, cmd blogapp.Command) {
				require.IsType(t, &blogapp.StatsCommand{}, cmd)
			},
		},
		{
			name: "retire carries confirmation",
			args: []string{"-confirm", "primary", "retire"},
			check: func(t *testing.T, cmd blogapp.Command) {
				rc, ok := cmd.(*blogapp.RetireCommand)
				require.True(t, ok)
				assert.Equal(t, "primary", rc.Confirm)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, cfg, err := blogapp.Parse(tc.args)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tc.check(t, cmd)
		})
	}
}

func TestParseFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("BLOGAPP_PHASE", "secondary_only")
	t.Setenv("BLOGAPP_MIGRATE_WORKERS", "2")

	_, cfg, err := blogapp.Parse([]string{"setup"})
	require.NoError(t, err)
	assert.Equal(t, "secondary_only", cfg.Phase, "environment applies when no flag is given")
	assert.Equal(t, 2, cfg.MigrateWorkers)

	_, cfg, err = blogapp.Parse([]string{
		"-phase", "dual_write_secondary_read",
		"-migrate-workers", "8",
		"-backend-timeout", "500ms",
		"-memory-only",
		"setup",
	})
	require.NoError(t, err)
	assert.Equal(t, "dual_write_secondary_read", cfg.Phase, "flags win over environment")
	assert.Equal(t, 8, cfg.MigrateWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.BackendTimeout)
	assert.True(t, cfg.MemoryOnly)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no subcommand", []string{}},
		{"unknown subcommand", []string{"frobnicate"}},
		{"advance without target", []string{"phase", "advance"}},
		{"unknown phase action", []string{"phase", "sideways"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := blogapp.Parse(tc.args)
			assert.Error(t, err)
		})
	}
}

func TestParseTime(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := blogapp.ParseTime("", fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(fallback))

	got, err = blogapp.ParseTime("2026-08-01T12:00:00Z", fallback)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.August, got.Month())

	_, err = blogapp.ParseTime("yesterday", fallback)
	assert.Error(t, err)
}
