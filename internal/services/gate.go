// Package services – access gate
//
// The gate is the only place that decides whether an actor may read or
// mutate a recipe. Services call it before every mutating or
// detail-revealing operation; handlers never re-derive ownership.
package services

import "github.com/tbourn/go-recipe-backend/internal/domain"

// CanModify reports whether actorID owns the recipe.
func CanModify(r *domain.Recipe, actorID string) bool {
	return r != nil && actorID != "" && r.UserID == actorID
}

// CanView reports whether actorID may see the recipe: it is public or the
// actor owns it.
func CanView(r *domain.Recipe, actorID string) bool {
	return r != nil && (r.IsPublic || CanModify(r, actorID))
}

// visibleTo drops the recipes actorID may not view. The input slice is
// reused.
func visibleTo(items []domain.RankedRecipe, actorID string) []domain.RankedRecipe {
	out := items[:0]
	for i := range items {
		if CanView(&items[i].Recipe, actorID) {
			out = append(out, items[i])
		}
	}
	return out
}
