package scout_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

func validParams() scout.Parameters {
	return scout.Parameters{
		Username:       "octocat",
		TopSites:       500,
		SiteTimeout:    30 * time.Second,
		MaxConnections: 50,
		Retries:        1,
	}
}

func TestNormalizeUsername(t *testing.T) {
	t.Parallel()

	require.Equal(t, "octocat", scout.NormalizeUsername("  @octocat "))
	require.Equal(t, "jane.doe-1", scout.NormalizeUsername("jane.doe-1"))
	require.Equal(t, "", scout.NormalizeUsername(" @ "))
}

func TestParametersValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validParams().Validate(scout.Limits{}))

	cases := []struct {
		name   string
		mutate func(*scout.Parameters)
		field  string
	}{
		{"username too short", func(p *scout.Parameters) { p.Username = "ab" }, "username"},
		{"username bad chars", func(p *scout.Parameters) { p.Username = "oc to cat" }, "username"},
		{"top sites zero", func(p *scout.Parameters) { p.TopSites = 0 }, "top_sites"},
		{"top sites over limit", func(p *scout.Parameters) { p.TopSites = 1501 }, "top_sites"},
		{"timeout sub-second", func(p *scout.Parameters) { p.SiteTimeout = 500 * time.Millisecond }, "timeout"},
		{"timeout over limit", func(p *scout.Parameters) { p.SiteTimeout = 301 * time.Second }, "timeout"},
		{"connections zero", func(p *scout.Parameters) { p.MaxConnections = 0 }, "max_connections"},
		{"connections over limit", func(p *scout.Parameters) { p.MaxConnections = 201 }, "max_connections"},
		{"retries negative", func(p *scout.Parameters) { p.Retries = -1 }, "retries"},
		{"retries over limit", func(p *scout.Parameters) { p.Retries = 6 }, "retries"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			params := validParams()
			tc.mutate(&params)
			err := params.Validate(scout.Limits{})
			var invalid *scout.InvalidParameterError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, tc.field, invalid.Field)
		})
	}
}

func TestParametersValidateCustomLimits(t *testing.T) {
	t.Parallel()

	limits := scout.Limits{TopSites: 100}
	params := validParams()
	params.TopSites = 150
	err := params.Validate(limits)
	var invalid *scout.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "top_sites", invalid.Field)

	params.TopSites = 100
	require.NoError(t, params.Validate(limits))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, scout.Clamp(-5, 1, 1500))
	require.Equal(t, 1500, scout.Clamp(999999, 1, 1500))
	require.Equal(t, 42, scout.Clamp(42, 1, 1500))
}
