// Package tags normalizes, stores and looks up the free-form labels
// attached to posts.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
)

// Normalize is applied both when tags are written and when the feed is
// filtered, so matching is case-insensitive and ignores surrounding space.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseList splits a comma-separated tag field. Empty entries are dropped
// and duplicates keep their first position.
func ParseList(raw string) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		name := Normalize(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Attach links postID to each of names, creating missing tags. It must run
// inside the caller's transaction.
func Attach(tx *gorm.DB, postID uint, names []string) error {
	for _, name := range names {
		name = Normalize(name)
		if name == "" {
			continue
		}

		// The returned id is unreliable when the row already exists, so
		// the tag is always read back by name.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Tag{Name: name}).Error; err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		var tag models.Tag
		if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
			return fmt.Errorf("failed to load tag %q: %w", name, err)
		}

		link := models.PostTag{PostID: postID, TagID: tag.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}

type postTagRow struct {
	PostID uint
	ID     uint
	Name   string
}

// ForPosts returns the tags of each post in ids, alphabetically. Posts
// without tags are absent from the map.
func ForPosts(tx *gorm.DB, ids []uint) (map[uint][]models.Tag, error) {
	out := make(map[uint][]models.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []postTagRow
	err := tx.Table("posts_tags").
		Select("posts_tags.post_id, tags.id, tags.name").
		Joins("JOIN tags ON tags.id = posts_tags.tag_id").
		Where("posts_tags.post_id IN ?", ids).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.PostID] = append(out[r.PostID], models.Tag{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

// Index answers tag queries for single posts.
type Index struct {
	db *gorm.DB
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db}
}

func (i *Index) ForPost(ctx context.Context, postID uint) ([]models.Tag, error) {
	tx := i.db.WithContext(ctx)

	var post models.Post
	if err := tx.Select("id").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("post not found")
		}
		return nil, utils.Storage("failed to load post", err)
	}

	byPost, err := ForPosts(tx, []uint{postID})
	if err != nil {
		return nil, utils.Storage("failed to load tags", err)
	}
	tags := byPost[postID]
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}
