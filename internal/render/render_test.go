package render

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	return New(logger.NewWithOutput("error", os.Stderr), 4)
}

func fixtureSet() *intent.Set {
	vid10, vid20 := 10, 20
	return &intent.Set{
		Sites: []intent.Site{
			{Name: "Pennington", Slug: "pennington", Description: "Primary residence"},
			{Name: "Count Fleet Court", Slug: "countfleetcourt"},
		},
		VLANs: []intent.VLAN{
			{VID: 20, Name: "IoT", Site: "pennington", Status: "active"},
			{VID: 10, Name: "LAN", Site: "pennington", Status: "active"},
			{VID: 10, Name: "LAN", Site: "countfleetcourt", Status: "active"},
		},
		Prefixes: []intent.Prefix{
			{CIDR: "10.10.20.0/24", Site: "pennington", VID: &vid20, Status: "active"},
			{CIDR: "10.10.10.0/24", Site: "pennington", VID: &vid10, Status: "active"},
			{CIDR: "10.20.10.0/24", Site: "countfleetcourt", VID: &vid10, Status: "active"},
		},
		Tags: []intent.Tag{
			{Name: "terraform", Slug: "terraform"},
			{Name: "homelab", Slug: "homelab"},
		},
	}
}

func TestRender_SingleSiteDocument(t *testing.T) {
	vid10 := 10
	set := &intent.Set{
		Sites:    []intent.Site{{Name: "Pennington", Slug: "pennington"}},
		VLANs:    []intent.VLAN{{VID: 10, Name: "LAN", Site: "pennington", Status: "active"}},
		Prefixes: []intent.Prefix{{CIDR: "10.10.10.0/24", Site: "pennington", VID: &vid10, Status: "active"}},
	}

	configs, errs := testRenderer(t).Render(set)
	require.Empty(t, errs)
	require.Contains(t, configs, "pennington")

	cfg := configs["pennington"]
	require.Len(t, cfg.Vlans, 1)
	assert.Equal(t, 10, cfg.Vlans[0].VlanID)
	require.Len(t, cfg.Prefixes, 1)
	assert.Equal(t, "10.10.10.0/24", cfg.Prefixes[0].CIDR)
	require.NotNil(t, cfg.Prefixes[0].VlanID)
	assert.Equal(t, 10, *cfg.Prefixes[0].VlanID)
}

func TestRender_OrderingWithinDocument(t *testing.T) {
	configs, errs := testRenderer(t).Render(fixtureSet())
	require.Empty(t, errs)

	cfg := configs["pennington"]
	require.Len(t, cfg.Vlans, 2)
	assert.Equal(t, 10, cfg.Vlans[0].VlanID)
	assert.Equal(t, 20, cfg.Vlans[1].VlanID)

	require.Len(t, cfg.Prefixes, 2)
	assert.Equal(t, "10.10.10.0/24", cfg.Prefixes[0].CIDR)
	assert.Equal(t, "10.10.20.0/24", cfg.Prefixes[1].CIDR)

	assert.Equal(t, []string{"homelab", "terraform"}, cfg.Tags)
}

func TestRender_DeterministicUnderShuffle(t *testing.T) {
	base := fixtureSet()
	configs, errs := testRenderer(t).Render(base)
	require.Empty(t, errs)
	want, err := Marshal(configs["pennington"])
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := fixtureSet()
		rng.Shuffle(len(shuffled.VLANs), func(a, b int) {
			shuffled.VLANs[a], shuffled.VLANs[b] = shuffled.VLANs[b], shuffled.VLANs[a]
		})
		rng.Shuffle(len(shuffled.Prefixes), func(a, b int) {
			shuffled.Prefixes[a], shuffled.Prefixes[b] = shuffled.Prefixes[b], shuffled.Prefixes[a]
		})
		rng.Shuffle(len(shuffled.Tags), func(a, b int) {
			shuffled.Tags[a], shuffled.Tags[b] = shuffled.Tags[b], shuffled.Tags[a]
		})

		got, errs := testRenderer(t).Render(shuffled)
		require.Empty(t, errs)
		data, err := Marshal(got["pennington"])
		require.NoError(t, err)
		assert.Equal(t, want, data, "render must be byte-identical regardless of input order")
	}
}

func TestRender_EmptySiteStillProducesDocument(t *testing.T) {
	set := &intent.Set{
		Sites: []intent.Site{{Name: "Empty", Slug: "empty"}},
	}

	configs, errs := testRenderer(t).Render(set)
	require.Empty(t, errs)
	require.Contains(t, configs, "empty")

	data, err := Marshal(configs["empty"])
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []interface{}{}, decoded["vlans"], "empty site must render empty arrays, not null")
	assert.Equal(t, []interface{}{}, decoded["prefixes"])
}

func TestRender_SortedKeys(t *testing.T) {
	configs, errs := testRenderer(t).Render(fixtureSet())
	require.Empty(t, errs)

	data, err := Marshal(configs["pennington"])
	require.NoError(t, err)

	text := string(data)
	for _, pair := range [][2]string{
		{`"prefixes"`, `"site_description"`},
		{`"site_description"`, `"site_name"`},
		{`"site_name"`, `"site_slug"`},
		{`"site_slug"`, `"tags"`},
		{`"tags"`, `"vlans"`},
	} {
		assert.Less(t, strings.Index(text, pair[0]), strings.Index(text, pair[1]),
			"%s must precede %s", pair[0], pair[1])
	}
}

func TestRender_PerSiteFailureIsolation(t *testing.T) {
	set := fixtureSet()
	// Introduce a duplicate tag at pennington only.
	set.VLANs = append(set.VLANs, intent.VLAN{VID: 10, Name: "LAN-dup", Site: "pennington"})

	configs, errs := testRenderer(t).Render(set)
	require.Len(t, errs, 1)
	assert.Equal(t, intent.KindDuplicateVlanTag, errs[0].Kind)

	assert.NotContains(t, configs, "pennington", "malformed site must not render")
	assert.Contains(t, configs, "countfleetcourt", "healthy sites still render")
}

func TestRender_PrefixWithUndeclaredVLAN(t *testing.T) {
	vid99 := 99
	set := &intent.Set{
		Sites:    []intent.Site{{Name: "Pennington", Slug: "pennington"}},
		VLANs:    []intent.VLAN{{VID: 10, Name: "LAN", Site: "pennington"}},
		Prefixes: []intent.Prefix{{CIDR: "10.10.99.0/24", Site: "pennington", VID: &vid99}},
	}

	configs, errs := testRenderer(t).Render(set)
	require.Len(t, errs, 1)
	assert.Equal(t, intent.KindMalformedIntent, errs[0].Kind)
	assert.NotContains(t, configs, "pennington")
}

func TestRender_VLANWithoutPrefixDropped(t *testing.T) {
	vid10 := 10
	set := &intent.Set{
		Sites: []intent.Site{{Name: "Pennington", Slug: "pennington"}},
		VLANs: []intent.VLAN{
			{VID: 10, Name: "LAN", Site: "pennington"},
			{VID: 30, Name: "Guest", Site: "pennington"},
		},
		Prefixes: []intent.Prefix{{CIDR: "10.10.10.0/24", Site: "pennington", VID: &vid10}},
	}

	configs, errs := testRenderer(t).Render(set)
	require.Empty(t, errs)
	cfg := configs["pennington"]
	require.Len(t, cfg.Vlans, 1)
	assert.Equal(t, 10, cfg.Vlans[0].VlanID)
}

func TestRenderTo_WritesOneFilePerSite(t *testing.T) {
	dir := t.TempDir()
	res, err := testRenderer(t).RenderTo(context.Background(), fixtureSet(), dir)
	require.NoError(t, err)
	require.True(t, res.OK())

	assert.Equal(t, []string{
		filepath.Join(dir, "site-countfleetcourt.tfvars.json"),
		filepath.Join(dir, "site-pennington.tfvars.json"),
	}, res.Written)
}

func TestRenderTo_Idempotent(t *testing.T) {
	dir := t.TempDir()
	r := testRenderer(t)

	_, err := r.RenderTo(context.Background(), fixtureSet(), dir)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "site-pennington.tfvars.json"))
	require.NoError(t, err)

	_, err = r.RenderTo(context.Background(), fixtureSet(), dir)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "site-pennington.tfvars.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "site-pennington.tfvars.json", Filename("pennington"))
	assert.Equal(t, "site-pennington.tfvars.json", Filename("site-pennington"))
}
