package enums

import "fmt"

// ItemCategory groups catalog items for display.
type ItemCategory string

const (
	ItemCategoryShirt     ItemCategory = "shirt"
	ItemCategorySportWear ItemCategory = "sport_wear"
	ItemCategoryOutwear   ItemCategory = "outwear"
)

var validItemCategories = []ItemCategory{
	ItemCategoryShirt,
	ItemCategorySportWear,
	ItemCategoryOutwear,
}

// String implements fmt.Stringer.
func (c ItemCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ItemCategory.
func (c ItemCategory) IsValid() bool {
	for _, candidate := range validItemCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseItemCategory converts raw input into an ItemCategory.
func ParseItemCategory(value string) (ItemCategory, error) {
	for _, candidate := range validItemCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item category %q", value)
}

// ItemLabel is the badge colour shown next to an item.
type ItemLabel string

const (
	ItemLabelPrimary   ItemLabel = "primary"
	ItemLabelSecondary ItemLabel = "secondary"
	ItemLabelDanger    ItemLabel = "danger"
)

var validItemLabels = []ItemLabel{
	ItemLabelPrimary,
	ItemLabelSecondary,
	ItemLabelDanger,
}

// String implements fmt.Stringer.
func (l ItemLabel) String() string {
	return string(l)
}

// IsValid reports whether the value is a known ItemLabel.
func (l ItemLabel) IsValid() bool {
	for _, candidate := range validItemLabels {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseItemLabel converts raw input into an ItemLabel.
func ParseItemLabel(value string) (ItemLabel, error) {
	for _, candidate := range validItemLabels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item label %q", value)
}
