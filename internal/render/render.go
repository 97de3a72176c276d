// Package render turns a validated intent set into per-site Terraform
// variable files. Output is deterministic: for the same intent set, in
// any input order, the rendered bytes are identical, so version-control
// diffs only ever reflect real intent changes.
package render

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
)

// PrefixConfig is one rendered prefix entry. Field order is
// alphabetical so encoding/json emits sorted keys.
type PrefixConfig struct {
	CIDR        string `json:"cidr"`
	Description string `json:"description"`
	Status      string `json:"status"`
	VlanID      *int   `json:"vlan_id,omitempty"`
}

// VLANConfig is one rendered VLAN entry.
type VLANConfig struct {
	Description string `json:"description"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	VlanID      int    `json:"vlan_id"`
}

// SiteConfig is the rendered document for a single site, the input
// contract for the per-site Terraform root module.
type SiteConfig struct {
	Prefixes        []PrefixConfig `json:"prefixes"`
	SiteDescription string         `json:"site_description"`
	SiteName        string         `json:"site_name"`
	SiteSlug        string         `json:"site_slug"`
	Tags            []string       `json:"tags"`
	Vlans           []VLANConfig   `json:"vlans"`
}

// Renderer renders site configurations from intent sets.
type Renderer struct {
	log     logger.Logger
	workers int
}

// New returns a Renderer. workers bounds per-site parallelism in
// RenderTo; values below 1 are treated as 1.
func New(log logger.Logger, workers int) *Renderer {
	if workers < 1 {
		workers = 1
	}
	return &Renderer{log: log, workers: workers}
}

// Render validates the set and builds one SiteConfig per declared
// site. Failures are isolated per site: a malformed site contributes
// its errors and no config, while every other declared site still gets
// one. Sites with no resources produce an empty config, so downstream
// terraform plan invocations never miss a variable file.
func (r *Renderer) Render(set *intent.Set) (map[string]*SiteConfig, []intent.SiteError) {
	errs := set.Validate()
	failed := intent.FailedSites(errs)

	configs := make(map[string]*SiteConfig)
	for i := range set.Sites {
		site := &set.Sites[i]
		if failed[site.Slug] {
			continue
		}
		configs[site.Slug] = r.renderSite(set, site)
	}

	return configs, errs
}

// renderSite builds the config for one site. VLANs without any prefix
// in the site are dropped: the Terraform input contract requires every
// VLAN to carry a network.
func (r *Renderer) renderSite(set *intent.Set, site *intent.Site) *SiteConfig {
	prefixes := set.PrefixesForSite(site)
	vlans := set.VLANsForSite(site)

	cfg := &SiteConfig{
		Prefixes:        make([]PrefixConfig, 0, len(prefixes)),
		SiteDescription: site.Description,
		SiteName:        site.Name,
		SiteSlug:        site.Slug,
		Tags:            make([]string, 0, len(set.Tags)),
		Vlans:           make([]VLANConfig, 0, len(vlans)),
	}

	prefixVIDs := make(map[int]bool)
	for _, p := range prefixes {
		cfg.Prefixes = append(cfg.Prefixes, PrefixConfig{
			CIDR:        p.CIDR,
			Description: p.Description,
			Status:      p.Status,
			VlanID:      p.VID,
		})
		if p.VID != nil {
			prefixVIDs[*p.VID] = true
		}
	}

	skipped := 0
	for _, v := range vlans {
		if !prefixVIDs[v.VID] {
			skipped++
			continue
		}
		cfg.Vlans = append(cfg.Vlans, VLANConfig{
			Description: v.Description,
			Name:        v.Name,
			Status:      v.Status,
			VlanID:      v.VID,
		})
	}
	if skipped > 0 {
		r.log.WithFields(map[string]interface{}{
			"site":    site.Slug,
			"skipped": skipped,
		}).Warn("skipping VLANs without prefix assignments")
	}

	for _, t := range set.Tags {
		cfg.Tags = append(cfg.Tags, t.Slug)
	}

	sort.Slice(cfg.Vlans, func(i, j int) bool { return cfg.Vlans[i].VlanID < cfg.Vlans[j].VlanID })
	sort.Slice(cfg.Prefixes, func(i, j int) bool { return cfg.Prefixes[i].CIDR < cfg.Prefixes[j].CIDR })
	sort.Strings(cfg.Tags)

	return cfg
}

// Marshal serializes a SiteConfig with the canonical layout: sorted
// keys, two-space indent, trailing newline.
func Marshal(cfg *SiteConfig) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal site config: %w", err)
	}
	return append(data, '\n'), nil
}

// Filename returns the output file name for a site slug. Slugs already
// carrying the site- prefix are not double-prefixed.
func Filename(slug string) string {
	if len(slug) >= 5 && slug[:5] == "site-" {
		return slug + ".tfvars.json"
	}
	return "site-" + slug + ".tfvars.json"
}
