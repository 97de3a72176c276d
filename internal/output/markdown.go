// Package output renders human-facing reports: markdown plan-diff
// summaries for pull requests, per-site intent summaries, and colored
// terminal decision reports.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/policy"
)

// actionSymbol maps a plan action to the terraform display symbol.
var actionSymbol = map[string]string{
	"create": "+",
	"update": "~",
	"delete": "-",
}

// PlanDiff renders a markdown summary of a plan document: change
// counts by action, sorted resource lists, and a machine-readable
// JSON block that CI jobs can extract.
func PlanDiff(doc *policy.Document, site string) string {
	byAction := map[string][]string{}
	total := 0

	for _, rc := range doc.Plan {
		if len(rc.Change.Actions) == 0 {
			continue
		}
		primary := rc.Change.Actions[0]
		if primary == "no-op" {
			continue
		}
		byAction[primary] = append(byAction[primary], rc.Address)
		total++
	}
	for _, addrs := range byAction {
		sort.Strings(addrs)
	}

	var b strings.Builder
	b.WriteString("# Plan Diff Summary\n\n")
	fmt.Fprintf(&b, "**Site**: `%s`\n\n", site)

	b.WriteString("## Change Summary\n\n")
	if total == 0 {
		b.WriteString("**No changes.** Infrastructure is up-to-date.\n")
	} else {
		fmt.Fprintf(&b, "**%d resource(s)** will be modified:\n\n", total)
		for _, action := range []string{"create", "update", "delete"} {
			if n := len(byAction[action]); n > 0 {
				fmt.Fprintf(&b, "- **%s%s**: %d\n", strings.ToUpper(action[:1]), action[1:], n)
			}
		}

		b.WriteString("\n## Detailed Changes\n\n")
		for _, action := range []string{"create", "update", "delete"} {
			addrs := byAction[action]
			if len(addrs) == 0 {
				continue
			}
			fmt.Fprintf(&b, "### %s%s (%d)\n\n", strings.ToUpper(action[:1]), action[1:], len(addrs))
			for _, addr := range addrs {
				fmt.Fprintf(&b, "- `%s %s`\n", actionSymbol[action], addr)
			}
			b.WriteString("\n")
		}
	}

	summary := struct {
		ChangesByAction map[string]int      `json:"changes_by_action"`
		ResourceList    map[string][]string `json:"resource_list"`
		Site            string              `json:"site"`
		TotalChanges    int                 `json:"total_changes"`
	}{
		ChangesByAction: map[string]int{},
		ResourceList:    map[string][]string{},
		Site:            site,
		TotalChanges:    total,
	}
	for action, addrs := range byAction {
		summary.ChangesByAction[action] = len(addrs)
		summary.ResourceList[action] = addrs
	}
	encoded, _ := json.MarshalIndent(summary, "", "  ")

	b.WriteString("\n## Machine-Readable Summary\n\n")
	b.WriteString("```json\n")
	b.Write(encoded)
	b.WriteString("\n```\n")
	return b.String()
}

// SiteSummary renders a markdown network summary for one site:
// prefixes, VLANs, and tags as tables.
func SiteSummary(set *intent.Set, slug string) (string, error) {
	site, ok := set.SiteBySlug(slug)
	if !ok {
		return "", fmt.Errorf("site %q not found in intent", slug)
	}

	prefixes := set.PrefixesForSite(site)
	vlans := set.VLANsForSite(site)
	sort.Slice(prefixes, func(i, j int) bool { return prefixes[i].CIDR < prefixes[j].CIDR })
	sort.Slice(vlans, func(i, j int) bool { return vlans[i].VID < vlans[j].VID })
	tags := append([]intent.Tag(nil), set.Tags...)
	sort.Slice(tags, func(i, j int) bool { return tags[i].Slug < tags[j].Slug })

	var b strings.Builder
	fmt.Fprintf(&b, "# Network Summary: %s\n\n", site.Name)

	b.WriteString("## Site Information\n\n")
	fmt.Fprintf(&b, "**Name:** %s\n", site.Name)
	fmt.Fprintf(&b, "**Slug:** %s\n", site.Slug)
	if site.Description != "" {
		fmt.Fprintf(&b, "**Description:** %s\n", site.Description)
	}
	b.WriteString("\n")

	b.WriteString("## IP Prefixes\n\n")
	if len(prefixes) > 0 {
		b.WriteString("| Prefix | VLAN ID | Description | Status |\n")
		b.WriteString("|--------|---------|-------------|--------|\n")
		for _, p := range prefixes {
			vid := "-"
			if p.VID != nil {
				vid = fmt.Sprintf("%d", *p.VID)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", p.CIDR, vid, p.Description, p.Status)
		}
	} else {
		b.WriteString("*No prefixes configured*\n")
	}
	b.WriteString("\n")

	b.WriteString("## VLANs\n\n")
	if len(vlans) > 0 {
		b.WriteString("| VLAN ID | Name | Description | Status |\n")
		b.WriteString("|---------|------|-------------|--------|\n")
		for _, v := range vlans {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", v.VID, v.Name, v.Description, v.Status)
		}
	} else {
		b.WriteString("*No VLANs configured*\n")
	}
	b.WriteString("\n")

	b.WriteString("## Tags\n\n")
	if len(tags) > 0 {
		b.WriteString("| Name | Slug | Description | Color |\n")
		b.WriteString("|------|------|-------------|-------|\n")
		for _, tag := range tags {
			color := ""
			if tag.Color != "" {
				color = "`" + tag.Color + "`"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", tag.Name, tag.Slug, tag.Description, color)
		}
	} else {
		b.WriteString("*No tags configured*\n")
	}

	fmt.Fprintf(&b, "\n---\n\n*Generated from network intent data for %s*\n", site.Name)
	return b.String(), nil
}

// WriteSiteSummaries writes one site-<slug>.md summary per site into
// dir and returns the written paths in sorted order.
func WriteSiteSummaries(set *intent.Set, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create summary directory %s: %w", dir, err)
	}

	slugs := make([]string, 0, len(set.Sites))
	for _, s := range set.Sites {
		slugs = append(slugs, s.Slug)
	}
	sort.Strings(slugs)

	var written []string
	for _, slug := range slugs {
		content, err := SiteSummary(set, slug)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, "site-"+slug+".md")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
