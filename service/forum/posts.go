package forum

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/service/tags"
)

// Feed builds the read models served to the map and feed pages.
type Feed struct {
	db *gorm.DB
}

func NewFeed(db *gorm.DB) *Feed {
	return &Feed{db: db}
}

type postRow struct {
	ID        uint
	Content   string
	CreatedAt time.Time
	UserID    uint
	FullName  string
	Path      *string
	Latitude  *float64
	Longitude *float64
}

type likeCount struct {
	PostID uint
	Count  int64
}

// ListPosts returns posts newest first with their likes, comments and tags.
// A non-empty tag keeps only posts carrying it, compared after
// normalization. Every post appears exactly once.
func (f *Feed) ListPosts(ctx context.Context, tag string) ([]models.PostView, error) {
	tx := f.db.WithContext(ctx)

	q := tx.Table("posts").
		Select("posts.id, posts.content, posts.created_at, posts.user_id, users.full_name, " +
			"images.path, images.latitude, images.longitude").
		Joins("JOIN users ON users.id = posts.user_id").
		Joins("LEFT JOIN images ON images.id = posts.image_id")
	if name := tags.Normalize(tag); name != "" {
		q = q.Where(`EXISTS (SELECT 1 FROM posts_tags
			JOIN tags ON tags.id = posts_tags.tag_id
			WHERE posts_tags.post_id = posts.id AND tags.name = ?)`, name)
	}

	var rows []postRow
	if err := q.Order("posts.created_at DESC, posts.id DESC").Scan(&rows).Error; err != nil {
		return nil, utils.Storage("failed to load posts", err)
	}

	posts := make([]models.PostView, 0, len(rows))
	if len(rows) == 0 {
		return posts, nil
	}
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	likes, err := f.likesFor(tx, ids)
	if err != nil {
		return nil, utils.Storage("failed to load likes", err)
	}
	comments, err := f.commentsFor(tx, ids)
	if err != nil {
		return nil, utils.Storage("failed to load comments", err)
	}
	tagsByPost, err := tags.ForPosts(tx, ids)
	if err != nil {
		return nil, utils.Storage("failed to load tags", err)
	}

	for _, r := range rows {
		view := models.PostView{
			ID:        r.ID,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
			UserID:    r.UserID,
			FullName:  r.FullName,
			Path:      r.Path,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Likes:     likes[r.ID],
			Comments:  comments[r.ID],
			Tags:      tagsByPost[r.ID],
		}
		if view.Comments == nil {
			view.Comments = []models.CommentView{}
		}
		if view.Tags == nil {
			view.Tags = []models.Tag{}
		}
		posts = append(posts, view)
	}
	return posts, nil
}

func (f *Feed) likesFor(tx *gorm.DB, ids []uint) (map[uint]int64, error) {
	var counts []likeCount
	err := tx.Model(&models.Like{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(counts))
	for _, c := range counts {
		out[c.PostID] = c.Count
	}
	return out, nil
}

// commentsFor returns each post's comments oldest first.
func (f *Feed) commentsFor(tx *gorm.DB, ids []uint) (map[uint][]models.CommentView, error) {
	var rows []models.CommentView
	err := tx.Table("comments").
		Select("comments.id, comments.post_id, comments.user_id, users.full_name, comments.content, comments.created_at").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id IN ?", ids).
		Order("comments.created_at ASC, comments.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]models.CommentView)
	for _, c := range rows {
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, nil
}

// ListPictures returns the location and path of every image, newest first.
func (f *Feed) ListPictures(ctx context.Context) ([]models.PictureView, error) {
	pictures := make([]models.PictureView, 0)
	err := f.db.WithContext(ctx).
		Model(&models.Image{}).
		Select("latitude, longitude, path").
		Order("created_at DESC, id DESC").
		Scan(&pictures).Error
	if err != nil {
		return nil, utils.Storage("failed to load pictures", err)
	}
	return pictures, nil
}

func postExists(tx *gorm.DB, postID uint) error {
	var post models.Post
	if err := tx.Select("id").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("post not found")
		}
		return utils.Storage("failed to load post", err)
	}
	return nil
}
