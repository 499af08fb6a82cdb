// Package domain defines the persistence models for users, recipes, and the
// save relationships between them. These types are mapped with GORM and form
// the core data layer of the recipe application.
package domain

import (
	"time"
)

// Profile holds the free-form profile attributes of a user. No validation
// invariant applies to any field; the picture is stored as an opaque blob.
type Profile struct {
	Bio                string `json:"bio"                 gorm:"type:text"`
	ProfilePicture     []byte `json:"profile_picture,omitempty"`
	Gender             string `json:"gender"              gorm:"type:varchar(64)"`
	DietaryPreferences string `json:"dietary_preferences" gorm:"type:text"`
}

// User is a registered account. Users are never deleted.
//
// Fields:
//   - ID: opaque UUID identity (char(36)).
//   - Username: unique, case-sensitive login name.
//   - PasswordHash: one-way credential hash; never serialized.
//   - Profile: embedded profile attributes (bio, picture, gender, diet).
type User struct {
	ID           string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"  gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	PasswordHash string    `json:"-"         gorm:"type:varchar(255);not null"`
	Profile      Profile   `json:"profile"   gorm:"embedded"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// DietarySearch is Profile.DietaryPreferences folded by FoldSearch.
	DietarySearch string `json:"-" gorm:"type:text"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Recipe is a recipe authored by a user.
//
// Author is a copy of the owner's username taken at creation time and is not
// kept in sync with later username changes. Saved caches whether at least one
// SaveRelationship references the recipe; it is only written by the ledger.
// Recipes are hard-deleted (no soft delete) so save relationships cascade.
type Recipe struct {
	ID           int64     `json:"recipe_id"    gorm:"primaryKey;autoIncrement"`
	UserID       string    `json:"user_id"      gorm:"type:char(36);not null;index:idx_recipes_owner"`
	Title        string    `json:"title"        gorm:"type:varchar(255);not null"`
	Author       string    `json:"author"       gorm:"type:varchar(64);not null"`
	Description  string    `json:"description"  gorm:"type:text"`
	Ingredients  string    `json:"ingredients"  gorm:"type:text"`
	Instructions string    `json:"instructions" gorm:"type:text"`
	IsPublic     bool      `json:"is_public"    gorm:"not null;default:false;index:idx_recipes_public"`
	Saved        bool      `json:"saved"        gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// SearchText is the folded title, description and ingredients matched
	// by search (see RecipeSearchText).
	SearchText string `json:"-" gorm:"type:text"`

	// Owner is the authoring user.
	Owner User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// SaveRelationship records that a user saved a recipe. At most one row exists
// per (recipe_id, user_id) pair, enforced by a unique index.
type SaveRelationship struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	RecipeID  int64     `json:"recipe_id"  gorm:"not null;uniqueIndex:ux_save_recipe_user,priority:1"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:ux_save_recipe_user,priority:2;index:idx_saves_user"`
	CreatedAt time.Time `json:"created_at"`

	// Recipe and User are the referenced rows. Relationships disappear with
	// their recipe.
	Recipe Recipe `json:"-" gorm:"foreignKey:RecipeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User   User   `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SaveRelationship.
func (SaveRelationship) TableName() string { return "save_relationships" }

// RankedRecipe is a recipe together with its current save count, as returned
// by feed, search, and detail queries. It is a read model and is never migrated.
type RankedRecipe struct {
	Recipe
	SaveCount int64 `json:"save_count"`
}

// UserStatistics are the derived per-user metrics. MostPopularRecipe is nil
// when the user owns no recipes.
type UserStatistics struct {
	TotalRecipes      int64   `json:"total_recipes"`
	SavedRecipes      int64   `json:"saved_recipes"`
	AvgSavesPerRecipe float64 `json:"avg_saves_per_recipe"`
	MostPopularRecipe *string `json:"most_popular_recipe"`
}
