package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

func validDomain() refresh.DomainConfig {
	return refresh.DomainConfig{
		SourcePath:             "catalogs/cameras.json",
		OutputPath:             "out/cameras.json",
		RefreshIntervalSeconds: 60,
		BatchSize:              4,
		ParameterNames:         []string{"id", "ts"},
		TimestampParameter:     "ts",
	}
}

func TestRegistry_GetAppliesDefaults(t *testing.T) {
	t.Parallel()
	reg := New(map[string]refresh.DomainConfig{"cameras": validDomain()})

	cfg, err := reg.Get("cameras")
	require.NoError(t, err)
	require.Equal(t, "cameras", cfg.Name)
	require.Equal(t, 5, cfg.RequestTimeoutSeconds)
	require.Equal(t, 3, cfg.MaxAttempts)
}

func TestRegistry_GetUnknownDomain(t *testing.T) {
	t.Parallel()
	reg := New(map[string]refresh.DomainConfig{"cameras": validDomain()})

	_, err := reg.Get("tides")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_GetRejectsInvariantViolations(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*refresh.DomainConfig)
	}{
		{"zero batch size", func(c *refresh.DomainConfig) { c.BatchSize = 0 }},
		{"negative batch size", func(c *refresh.DomainConfig) { c.BatchSize = -2 }},
		{"zero refresh interval", func(c *refresh.DomainConfig) { c.RefreshIntervalSeconds = 0 }},
		{"negative refresh interval", func(c *refresh.DomainConfig) { c.RefreshIntervalSeconds = -1 }},
		{"missing source path", func(c *refresh.DomainConfig) { c.SourcePath = "" }},
		{"missing output path", func(c *refresh.DomainConfig) { c.OutputPath = "" }},
		{"missing timestamp parameter", func(c *refresh.DomainConfig) { c.TimestampParameter = "" }},
		{"timestamp parameter not listed", func(c *refresh.DomainConfig) { c.TimestampParameter = "when" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validDomain()
			tc.mutate(&cfg)
			reg := New(map[string]refresh.DomainConfig{"cameras": cfg})

			_, err := reg.Get("cameras")
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	t.Parallel()
	reg := New(map[string]refresh.DomainConfig{
		"sensors": validDomain(),
		"cameras": validDomain(),
		"tides":   validDomain(),
	})
	require.Equal(t, []string{"cameras", "sensors", "tides"}, reg.Names())
}
