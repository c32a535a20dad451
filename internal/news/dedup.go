package news

import (
	"sort"
	"strings"

	"github.com/sawpanic/intelrun/internal/models"
)

// Dedup collapses raw items into cluster representatives in two phases:
// local clustering (URL or entity groups folded by title similarity,
// one item per source domain) and global suppression across clusters.
// similarity is the token-set ratio threshold, 0.85 by default.
func Dedup(items []models.NewsItem, similarity float64) []models.NewsItem {
	clusters := clusterLocal(items, similarity)
	return dedupGlobal(clusters, similarity)
}

type cluster struct {
	members []models.NewsItem
}

// clusterLocal groups by canonical URL when present, otherwise by the
// top-2 entities, then folds near-identical titles inside each entity
// group.
func clusterLocal(items []models.NewsItem, similarity float64) []models.NewsItem {
	byURL := make(map[string]*cluster)
	var entityGroups []*cluster
	byEntityKey := make(map[string]*cluster)

	for _, item := range items {
		if item.CanonicalURL != "" {
			key := item.CanonicalURL
			if c, ok := byURL[key]; ok {
				c.members = append(c.members, item)
			} else {
				byURL[key] = &cluster{members: []models.NewsItem{item}}
			}
			continue
		}
		key := entityKey(item.Entities)
		if c, ok := byEntityKey[key]; ok {
			// Fold only when a member title is close enough; otherwise
			// the item starts a sibling cluster under the same key.
			folded := false
			for _, m := range c.members {
				if TokenSetRatio(m.Title, item.Title) >= similarity {
					c.members = append(c.members, item)
					folded = true
					break
				}
			}
			if folded {
				continue
			}
		}
		nc := &cluster{members: []models.NewsItem{item}}
		byEntityKey[key] = nc
		entityGroups = append(entityGroups, nc)
	}

	var reps []models.NewsItem
	urlKeys := make([]string, 0, len(byURL))
	for k := range byURL {
		urlKeys = append(urlKeys, k)
	}
	sort.Strings(urlKeys)
	for _, k := range urlKeys {
		reps = append(reps, collapse(byURL[k]))
	}
	for _, c := range entityGroups {
		reps = append(reps, collapse(c))
	}
	return reps
}

func entityKey(entities []string) string {
	top := entities
	if len(top) > 2 {
		top = top[:2]
	}
	if len(top) == 0 {
		return "~none"
	}
	return strings.Join(top, "|")
}

// collapse keeps at most one member per source domain (latest published
// wins), elects the representative and attaches other source domains.
func collapse(c *cluster) models.NewsItem {
	byDomain := make(map[string]models.NewsItem)
	var domainOrder []string
	for _, m := range c.members {
		prev, ok := byDomain[m.SourceDomain]
		if !ok {
			byDomain[m.SourceDomain] = m
			domainOrder = append(domainOrder, m.SourceDomain)
			continue
		}
		if laterPublished(m, prev) {
			byDomain[m.SourceDomain] = m
		}
	}

	rep := byDomain[domainOrder[0]]
	for _, d := range domainOrder[1:] {
		if betterRepresentative(byDomain[d], rep) {
			rep = byDomain[d]
		}
	}

	for _, d := range domainOrder {
		if d == rep.SourceDomain || len(rep.OtherSources) >= 3 {
			continue
		}
		rep.OtherSources = appendUnique(rep.OtherSources, d)
	}
	rep.DedupClusterID = clusterID(rep.CanonicalURL, rep.Title, rep.Entities)
	return rep
}

func laterPublished(a, b models.NewsItem) bool {
	if a.PublishedAt == nil {
		return false
	}
	if b.PublishedAt == nil {
		return true
	}
	return a.PublishedAt.After(*b.PublishedAt)
}

// betterRepresentative orders by quality, then relevance, then recency.
func betterRepresentative(a, b models.NewsItem) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	if a.RelevanceScore != b.RelevanceScore {
		return a.RelevanceScore > b.RelevanceScore
	}
	return laterPublished(a, b)
}

// dedupGlobal suppresses cross-cluster duplicates: equal canonical URL
// or near-identical title against any kept item. The suppressed item's
// domain is promoted into the survivor's other_sources (max 3).
func dedupGlobal(reps []models.NewsItem, similarity float64) []models.NewsItem {
	var kept []models.NewsItem
	keptURLs := make(map[string]int)

	for _, item := range reps {
		dupIdx := -1
		if item.CanonicalURL != "" {
			if idx, ok := keptURLs[item.CanonicalURL]; ok {
				dupIdx = idx
			}
		}
		if dupIdx < 0 {
			for i := range kept {
				if TokenSetRatio(kept[i].Title, item.Title) >= similarity {
					dupIdx = i
					break
				}
			}
		}
		if dupIdx >= 0 {
			surv := &kept[dupIdx]
			if item.SourceDomain != surv.SourceDomain && len(surv.OtherSources) < 3 {
				surv.OtherSources = appendUnique(surv.OtherSources, item.SourceDomain)
			}
			continue
		}
		kept = append(kept, item)
		if item.CanonicalURL != "" {
			keptURLs[item.CanonicalURL] = len(kept) - 1
		}
	}
	return kept
}

// applyDomainSoftCap drops items beyond the per-domain cap, preserving
// rank order. Applied after the final sort.
func applyDomainSoftCap(items []models.NewsItem, cap int) []models.NewsItem {
	if cap <= 0 {
		return items
	}
	counts := make(map[string]int)
	out := items[:0]
	for _, item := range items {
		if counts[item.SourceDomain] >= cap {
			continue
		}
		counts[item.SourceDomain]++
		out = append(out, item)
	}
	return out
}
