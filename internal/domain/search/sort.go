package search

import (
	"sort"
	"strings"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// SortType orders search results and library listings.
type SortType string

const (
	SortNone              SortType = ""
	SortTitleAsc          SortType = "title_asc"
	SortTitleDesc         SortType = "title_desc"
	SortDateNewToOld      SortType = "date_new_to_old"
	SortDateOldToNew      SortType = "date_old_to_new"
	SortSizeLargeToSmall  SortType = "size_large_to_small"
	SortSizeSmallToLarge  SortType = "size_small_to_large"
	SortResolutionHighLow SortType = "resolution_high_to_low"
	SortResolutionLowHigh SortType = "resolution_low_to_high"
	SortDurationLongShort SortType = "duration_long_to_short"
	SortDurationShortLong SortType = "duration_short_to_long"
	SortRecentlyPlayed    SortType = "recently_played"
)

// SortTypes lists every sort in menu order.
var SortTypes = []SortType{
	SortTitleAsc, SortTitleDesc,
	SortDateNewToOld, SortDateOldToNew,
	SortSizeLargeToSmall, SortSizeSmallToLarge,
	SortResolutionHighLow, SortResolutionLowHigh,
	SortDurationLongShort, SortDurationShortLong,
	SortRecentlyPlayed,
}

var displayNames = map[SortType]string{
	SortTitleAsc:          "Title (A-Z)",
	SortTitleDesc:         "Title (Z-A)",
	SortDateNewToOld:      "Date (New to Old)",
	SortDateOldToNew:      "Date (Old to New)",
	SortSizeLargeToSmall:  "Size (Large to Small)",
	SortSizeSmallToLarge:  "Size (Small to Large)",
	SortResolutionHighLow: "Resolution (High to Low)",
	SortResolutionLowHigh: "Resolution (Low to High)",
	SortDurationLongShort: "Duration (Long to Short)",
	SortDurationShortLong: "Duration (Short to Long)",
	SortRecentlyPlayed:    "Recently Played",
}

// DisplayName returns the label shown in sort menus.
func (s SortType) DisplayName() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is a known sort.
func (s SortType) Valid() bool {
	_, ok := displayNames[s]
	return ok
}

// Sort orders items in place. Unknown sorts leave the order unchanged.
func Sort(items []media.Item, s SortType) {
	less := comparator(items, s)
	if less == nil {
		return
	}
	sort.SliceStable(items, less)
}

func comparator(items []media.Item, s SortType) func(i, j int) bool {
	switch s {
	case SortTitleAsc:
		return func(i, j int) bool { return titleKey(items[i]) < titleKey(items[j]) }
	case SortTitleDesc:
		return func(i, j int) bool { return titleKey(items[i]) > titleKey(items[j]) }
	case SortDateNewToOld:
		return func(i, j int) bool { return items[i].DateAdded.After(items[j].DateAdded) }
	case SortDateOldToNew:
		return func(i, j int) bool { return items[i].DateAdded.Before(items[j].DateAdded) }
	case SortSizeLargeToSmall:
		return func(i, j int) bool { return items[i].Size > items[j].Size }
	case SortSizeSmallToLarge:
		return func(i, j int) bool { return items[i].Size < items[j].Size }
	case SortResolutionHighLow:
		return func(i, j int) bool { return items[i].Pixels() > items[j].Pixels() }
	case SortResolutionLowHigh:
		return func(i, j int) bool { return items[i].Pixels() < items[j].Pixels() }
	case SortDurationLongShort:
		return func(i, j int) bool { return items[i].Duration > items[j].Duration }
	case SortDurationShortLong:
		return func(i, j int) bool { return items[i].Duration < items[j].Duration }
	case SortRecentlyPlayed:
		return func(i, j int) bool { return items[i].LastPlayed.After(items[j].LastPlayed) }
	}
	return nil
}

func titleKey(item media.Item) string {
	return strings.ToLower(item.SortTitle())
}
