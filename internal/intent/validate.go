package intent

import (
	"fmt"
	"net"
	"sort"
)

// Error kinds reported by Validate. These names appear in CLI output
// and reports, so they are part of the contract.
const (
	KindMalformedIntent  = "MalformedIntent"
	KindDuplicateVlanTag = "DuplicateVlanTag"
)

// SiteError attributes a validation failure to a single site so the
// renderer can isolate failures per site. Site is the slug the
// offending record referenced, which may not be a declared site at all.
type SiteError struct {
	Site    string `json:"site"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e SiteError) Error() string {
	return fmt.Sprintf("%s (site: %s): %s", e.Kind, orUnknown(e.Site), e.Message)
}

// SiteBySlug returns the declared site with the given slug or name.
func (s *Set) SiteBySlug(slug string) (*Site, bool) {
	for i := range s.Sites {
		if s.Sites[i].Slug == slug || s.Sites[i].Name == slug {
			return &s.Sites[i], true
		}
	}
	return nil, false
}

// VLANsForSite returns the VLANs referencing the given site slug or name.
func (s *Set) VLANsForSite(site *Site) []VLAN {
	var out []VLAN
	for _, v := range s.VLANs {
		if v.Site == site.Slug || v.Site == site.Name {
			out = append(out, v)
		}
	}
	return out
}

// PrefixesForSite returns the prefixes referencing the given site slug
// or name.
func (s *Set) PrefixesForSite(site *Site) []Prefix {
	var out []Prefix
	for _, p := range s.Prefixes {
		if p.Site == site.Slug || p.Site == site.Name {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks referential integrity of the set and returns one
// error per offense, each attributed to a site. An empty result means
// every record resolves cleanly.
//
// Rules:
//   - every VLAN and prefix site reference resolves to a declared site
//   - VLAN tags are within 1-4094 and unique within a site
//   - prefix CIDRs parse
//   - a prefix VLAN reference matches a declared VLAN in the same site
func (s *Set) Validate() []SiteError {
	var errs []SiteError

	type siteVID struct {
		site string
		vid  int
	}
	seenVIDs := make(map[siteVID]string)
	declaredVIDs := make(map[siteVID]bool)

	for _, v := range s.VLANs {
		site, ok := s.SiteBySlug(v.Site)
		if !ok {
			errs = append(errs, SiteError{
				Site:    v.Site,
				Kind:    KindMalformedIntent,
				Message: fmt.Sprintf("VLAN %d (%s) references undeclared site %q", v.VID, v.Name, v.Site),
			})
			continue
		}

		if v.VID < 1 || v.VID > 4094 {
			errs = append(errs, SiteError{
				Site:    site.Slug,
				Kind:    KindMalformedIntent,
				Message: fmt.Sprintf("VLAN %q has tag %d outside 1-4094", v.Name, v.VID),
			})
			continue
		}

		key := siteVID{site: site.Slug, vid: v.VID}
		if other, dup := seenVIDs[key]; dup {
			errs = append(errs, SiteError{
				Site:    site.Slug,
				Kind:    KindDuplicateVlanTag,
				Message: fmt.Sprintf("VLAN tag %d used by both %q and %q", v.VID, other, v.Name),
			})
			continue
		}
		seenVIDs[key] = v.Name
		declaredVIDs[key] = true
	}

	for _, p := range s.Prefixes {
		if p.Site == "" {
			errs = append(errs, SiteError{
				Site:    "",
				Kind:    KindMalformedIntent,
				Message: fmt.Sprintf("prefix %q has no site association", p.CIDR),
			})
			continue
		}

		site, ok := s.SiteBySlug(p.Site)
		if !ok {
			errs = append(errs, SiteError{
				Site:    p.Site,
				Kind:    KindMalformedIntent,
				Message: fmt.Sprintf("prefix %q references undeclared site %q", p.CIDR, p.Site),
			})
			continue
		}

		if _, _, err := net.ParseCIDR(p.CIDR); err != nil {
			errs = append(errs, SiteError{
				Site:    site.Slug,
				Kind:    KindMalformedIntent,
				Message: fmt.Sprintf("prefix %q is not a valid CIDR", p.CIDR),
			})
			continue
		}

		if p.VID != nil && !declaredVIDs[siteVID{site: site.Slug, vid: *p.VID}] {
			errs = append(errs, SiteError{
				Site:    site.Slug,
				Kind:    KindMalformedIntent,
				Message: fmt.Sprintf("prefix %q references VLAN %d, which is not declared for site %q", p.CIDR, *p.VID, site.Slug),
			})
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Site < errs[j].Site })
	return errs
}

// FailedSites returns the set of site slugs that have at least one
// validation error.
func FailedSites(errs []SiteError) map[string]bool {
	failed := make(map[string]bool)
	for _, e := range errs {
		failed[e.Site] = true
	}
	return failed
}
