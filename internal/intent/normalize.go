package intent

import "encoding/json"

// extractStatus normalizes a NetBox status field. The API returns an
// object {"label": "Reserved", "value": "reserved"}; the minimal schema
// uses a plain string. Absent status defaults to "active".
func extractStatus(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "active"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != "" {
		return obj.Value
	}

	return "active"
}

// extractSiteRef normalizes a site reference: either a slug string or a
// nested site object (slug preferred, name as fallback).
func extractSiteRef(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Slug != "" {
			return obj.Slug
		}
		return obj.Name
	}

	return ""
}

// extractVLANRef normalizes a prefix's VLAN association. The minimal
// schema uses a bare integer VID; the NetBox API nests a VLAN object
// that may carry vid, an internal id, and sometimes the owning site.
// Returns the VID if known, the internal id for sparse references, and
// the VLAN's site slug if present.
func extractVLANRef(raw json.RawMessage) (vid *int, internalID *int64, site string) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, ""
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil, ""
	}

	var obj struct {
		ID     *int64          `json:"id"`
		VID    *int            `json:"vid"`
		VlanID *int            `json:"vlan_id"`
		Site   json.RawMessage `json:"site"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, ""
	}

	vid = obj.VID
	if vid == nil {
		vid = obj.VlanID
	}
	return vid, obj.ID, extractSiteRef(obj.Site)
}

// Resolve fills in prefix site and VID fields that raw NetBox exports
// leave sparse (a VLAN reference carrying only the internal id). Must
// be called once the whole set is in memory; the loaders and the
// exporter do this.
func (s *Set) Resolve() {
	byInternalID := make(map[int64]*VLAN, len(s.VLANs))
	for i := range s.VLANs {
		if s.VLANs[i].ID != 0 {
			byInternalID[s.VLANs[i].ID] = &s.VLANs[i]
		}
	}

	for i := range s.Prefixes {
		p := &s.Prefixes[i]
		if p.vlanInternalID == nil {
			continue
		}
		vlan, ok := byInternalID[*p.vlanInternalID]
		if !ok {
			continue
		}
		if p.VID == nil {
			vid := vlan.VID
			p.VID = &vid
		}
		if p.Site == "" {
			p.Site = vlan.Site
		}
	}
}
