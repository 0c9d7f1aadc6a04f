package catalog

import "strings"

// AllCategories is the sentinel category that disables filtering.
const AllCategories = "all"

// Categorized is implemented by views that carry a category.
type Categorized interface {
	CategoryKey() string
}

// IsAllCategories reports whether category selects the unfiltered view.
func IsAllCategories(category string) bool {
	c := strings.TrimSpace(category)
	return c == "" || c == AllCategories
}

// FilterByCategory returns the views whose category equals category.
// The "all" sentinel returns views unchanged; unknown categories yield an empty slice.
func FilterByCategory[V Categorized](views []V, category string) []V {
	if IsAllCategories(category) {
		return views
	}
	out := make([]V, 0, len(views))
	for _, v := range views {
		if v.CategoryKey() == category {
			out = append(out, v)
		}
	}
	return out
}

// DistinctCategories lists the categories present in views in first-seen order.
func DistinctCategories[V Categorized](views []V) []string {
	seen := make(map[string]struct{}, len(views))
	out := make([]string, 0)
	for _, v := range views {
		c := v.CategoryKey()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
