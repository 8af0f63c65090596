package brand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"on24", "goldcast", "zoom"}, r.Keys())

	on24, ok := r.Get("ON24")
	require.True(t, ok)
	assert.True(t, on24.DualDomain())
	assert.Equal(t, []string{"on24.com"}, on24.Domains)
	assert.Equal(t, []string{"event.on24.com"}, on24.SecondaryHosts)

	goldcast, ok := r.Get("goldcast")
	require.True(t, ok)
	assert.False(t, goldcast.DualDomain())
}

func TestResolve(t *testing.T) {
	r := Default()
	tests := []struct {
		in   string
		want string
	}{
		{"on24", "on24"},
		{"  ON24  ", "on24"},
		{"On 24", "on24"},
		{"on24.com", "on24"},
		{"Goldcast.io", "goldcast"},
		{"gold cast", "goldcast"},
		{"Zoom Webinars", "zoom"},
		{"zoom events platform", "zoom"},
		{"the ON24 platform", "on24"},
		{"Goldcast (Event Marketing)", "goldcast"},
		{"other", Other},
		{"Cvent", Other},
		{"webex", Other},
		{"", Other},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.in))
		})
	}
}

func TestResolve_ExcludedProductLines(t *testing.T) {
	r := Default()
	tests := []struct {
		in   string
		want string
	}{
		{"Zoom Meetings", Other},
		{"Zoom Phone", Other},
		{"ZoomInfo", Other},
		{"Zoom Rooms", Other},
		{"zoom meetings (video conferencing)", Other},
		{"Zoom", "zoom"},
		{"Zoom Events", "zoom"},
		{"Zoom Webinars for virtual events", "zoom"},
		{"ON24Plus", Other},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.in))
		})
	}
}

func TestOutOfScope(t *testing.T) {
	r := Default()
	assert.True(t, r.Scoped("zoom"))
	assert.False(t, r.Scoped("on24"))

	assert.True(t, r.OutOfScope("zoom", "Zoom Meetings for daily standups"))
	assert.False(t, r.OutOfScope("zoom", "Zoom Meetings plus a webinar add-on"))
	assert.False(t, r.OutOfScope("zoom", "Zoom Webinars for large events"))
	assert.False(t, r.OutOfScope("on24", "video conferencing"))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("brands: []"))
	require.Error(t, err)

	_, err = Parse([]byte("brands:\n  - key: other\n"))
	require.Error(t, err)

	_, err = Parse([]byte("brands:\n  - key: a\n  - key: A\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = Parse([]byte("brands: [unclosed"))
	require.Error(t, err)

	_, err = Parse([]byte("brands:\n  - key: a\n    exclude_context: \"(unclosed\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude_context")
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Len(t, r.Keys(), 3)
}

func TestNew_DoesNotMutateInput(t *testing.T) {
	defs := []Definition{{Key: "acme", Domains: []string{"WWW.Acme.COM"}}}
	r, err := New(defs)
	require.NoError(t, err)
	assert.Equal(t, "WWW.Acme.COM", defs[0].Domains[0])
	d, _ := r.Get("acme")
	assert.Equal(t, []string{"acme.com"}, d.Domains)
}
