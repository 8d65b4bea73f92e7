package models

// Link records that a component (and optionally one of its instances)
// depends on a file. An empty ComponentID means no specific instance.
type Link struct {
	Component   string `json:"component"`
	ComponentID string `json:"componentId,omitempty"`
}

// LinkEntry is a Link bound to a file of a site.
type LinkEntry struct {
	SiteID string
	FileID string
	Link
}

// MergeLinks returns the union of a and b, keeping first-seen order.
func MergeLinks(a, b []Link) []Link {
	out := make([]Link, 0, len(a)+len(b))
	seen := make(map[Link]struct{}, len(a)+len(b))
	for _, l := range append(append([]Link{}, a...), b...) {
		if l.Component == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
