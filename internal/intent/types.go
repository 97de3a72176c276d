// Package intent models the normalized network intent exported from
// NetBox: sites, prefixes, VLANs, and tags. It accepts both the raw
// NetBox API shapes (nested status/site/vlan objects) and the minimal
// consolidated schema, and normalizes them into flat records.
package intent

import (
	"encoding/json"
	"fmt"
)

// Site is a physical location. Slug is the stable identifier; Name is
// mutable in NetBox.
type Site struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// VLAN is a layer-2 segment scoped to a site. VID is the 802.1Q tag
// (1-4094) and may repeat across sites.
type VLAN struct {
	ID          int64  `json:"id,omitempty"`
	VID         int    `json:"vid"`
	Name        string `json:"name"`
	Site        string `json:"site"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Prefix is an IP range. Site may be empty in raw NetBox exports, in
// which case it is resolved through the VLAN association. VID is the
// associated VLAN tag, nil when the prefix has no VLAN.
type Prefix struct {
	ID          int64  `json:"id,omitempty"`
	CIDR        string `json:"prefix"`
	Site        string `json:"site,omitempty"`
	VID         *int   `json:"vlan,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`

	// vlanInternalID carries a sparse NetBox VLAN reference (internal
	// database id only) until Set.resolve can look it up.
	vlanInternalID *int64
}

// Tag is free-standing metadata, not bound to a site.
type Tag struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Set is a complete intent export.
type Set struct {
	Sites    []Site   `json:"sites"`
	Prefixes []Prefix `json:"prefixes"`
	VLANs    []VLAN   `json:"vlans"`
	Tags     []Tag    `json:"tags"`
}

// UnmarshalJSON accepts both NetBox API site objects and plain records.
func (s *Site) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Slug        string          `json:"slug"`
		Description string          `json:"description"`
		Status      json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.ID = raw.ID
	s.Name = raw.Name
	s.Slug = raw.Slug
	if s.Slug == "" {
		s.Slug = raw.Name
	}
	s.Description = raw.Description
	s.Status = extractStatus(raw.Status)
	return nil
}

// UnmarshalJSON handles both 'vid' and 'vlan_id' field names and both
// string and nested-object site references. A VLAN without a VID is
// rejected here rather than surfacing later as a zero tag.
func (v *VLAN) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64           `json:"id"`
		VID         *int            `json:"vid"`
		VlanID      *int            `json:"vlan_id"`
		Name        string          `json:"name"`
		Site        json.RawMessage `json:"site"`
		Description string          `json:"description"`
		Status      json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	vid := raw.VID
	if vid == nil {
		vid = raw.VlanID
	}
	site := extractSiteRef(raw.Site)
	if vid == nil {
		name := raw.Name
		if name == "" {
			name = "unnamed"
		}
		return fmt.Errorf("VLAN %q (site: %s) has no VLAN ID assigned", name, orUnknown(site))
	}

	v.ID = raw.ID
	v.VID = *vid
	v.Name = raw.Name
	v.Site = site
	v.Description = raw.Description
	v.Status = extractStatus(raw.Status)
	return nil
}

// UnmarshalJSON handles both 'prefix' and 'cidr' field names, integer
// or nested-object VLAN associations, and optional site references.
func (p *Prefix) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64           `json:"id"`
		Prefix      string          `json:"prefix"`
		CIDR        string          `json:"cidr"`
		Site        json.RawMessage `json:"site"`
		VLAN        json.RawMessage `json:"vlan"`
		Description string          `json:"description"`
		Status      json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ID = raw.ID
	p.CIDR = raw.Prefix
	if p.CIDR == "" {
		p.CIDR = raw.CIDR
	}
	p.Description = raw.Description
	p.Status = extractStatus(raw.Status)

	site := extractSiteRef(raw.Site)

	vid, internalID, vlanSite := extractVLANRef(raw.VLAN)
	p.VID = vid
	p.vlanInternalID = internalID
	if site == "" {
		site = vlanSite
	}
	p.Site = site
	return nil
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Color       string `json:"color"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.ID = raw.ID
	t.Name = raw.Name
	t.Slug = raw.Slug
	if t.Slug == "" {
		t.Slug = raw.Name
	}
	t.Color = raw.Color
	t.Description = raw.Description
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
