package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// searchSep separates the folded fields inside Recipe.SearchText so that a
// match cannot span two fields. FoldSearch strips it from every input.
const searchSep = "\x1f"

// FoldSearch returns s with full Unicode case folding applied ("CRÈME" and
// "crème" fold to the same string). Search columns are stored folded and
// queries are folded the same way, so matching never relies on the store's
// LOWER(), which only maps ASCII on SQLite.
func FoldSearch(s string) string {
	return strings.ReplaceAll(cases.Fold().String(s), searchSep, "")
}

// RecipeSearchText builds the value kept in Recipe.SearchText.
func RecipeSearchText(title, description, ingredients string) string {
	return FoldSearch(title) + searchSep + FoldSearch(description) + searchSep + FoldSearch(ingredients)
}

// BeforeCreate derives SearchText from the recipe's text fields.
func (r *Recipe) BeforeCreate(*gorm.DB) error {
	r.SearchText = RecipeSearchText(r.Title, r.Description, r.Ingredients)
	return nil
}

// BeforeCreate derives DietarySearch from the profile.
func (u *User) BeforeCreate(*gorm.DB) error {
	u.DietarySearch = FoldSearch(u.Profile.DietaryPreferences)
	return nil
}
