package menu

// CategoryGroup is one display bucket of items sharing a category.
type CategoryGroup struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
}

// GroupByCategory buckets items in display order (Menu, Vegi, Hit, Unknown).
// Categories without items are omitted; order within a bucket follows the
// snapshot's insertion order.
func GroupByCategory(items []Item) []CategoryGroup {
	buckets := make(map[Category][]Item, len(CategoryOrder))
	for _, item := range items {
		category := item.Category
		if category == "" {
			category = CategoryUnknown
		}
		buckets[category] = append(buckets[category], item)
	}
	groups := make([]CategoryGroup, 0, len(buckets))
	for _, category := range CategoryOrder {
		if items, ok := buckets[category]; ok {
			groups = append(groups, CategoryGroup{Category: category, Items: items})
		}
	}
	return groups
}
