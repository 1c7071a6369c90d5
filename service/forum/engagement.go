package forum

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/db"
	"github.com/KAsare1/pesb-server/logging"
	"github.com/KAsare1/pesb-server/metrics"
)

// maxToggleAttempts bounds retries when two toggles by the same user race
// on the like's primary key.
const maxToggleAttempts = 3

// Engagement records likes and comments.
type Engagement struct {
	db *gorm.DB
}

func NewEngagement(db *gorm.DB) *Engagement {
	return &Engagement{db: db}
}

// ToggleLike flips userID's like on postID and returns the new state with
// the post's like count.
func (e *Engagement) ToggleLike(ctx context.Context, userID, postID uint) (*models.LikeResult, error) {
	var err error
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		var res *models.LikeResult
		res, err = e.toggleOnce(ctx, userID, postID)
		if err == nil {
			metrics.RecordLikeToggle(res.Liked)
			return res, nil
		}
		if !db.IsUniqueViolation(err) {
			break
		}
		logging.Debug().Int("attempt", attempt).Uint("post_id", postID).Msg("like toggle raced, retrying")
	}
	return nil, engagementError("failed to toggle like", err)
}

func (e *Engagement) toggleOnce(ctx context.Context, userID, postID uint) (*models.LikeResult, error) {
	res := &models.LikeResult{PostID: postID}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := postExists(tx, postID); err != nil {
			return err
		}

		del := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			if err := tx.Create(&models.Like{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
			res.Liked = true
		}

		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&res.Likes).Error
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LikedState reports whether userID currently likes postID.
func (e *Engagement) LikedState(ctx context.Context, userID, postID uint) (bool, error) {
	tx := e.db.WithContext(ctx)
	if err := postExists(tx, postID); err != nil {
		return false, err
	}
	var n int64
	if err := tx.Model(&models.Like{}).Where("user_id = ? AND post_id = ?", userID, postID).Count(&n).Error; err != nil {
		return false, utils.Storage("failed to load like", err)
	}
	return n > 0, nil
}

// AddComment stores a comment and returns it with its author's name.
func (e *Engagement) AddComment(ctx context.Context, userID, postID uint, content string) (*models.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.Validation(map[string]string{"content": "content is required"})
	}

	tx := e.db.WithContext(ctx)
	if err := postExists(tx, postID); err != nil {
		return nil, err
	}

	var author models.User
	if err := tx.Select("id", "full_name").First(&author, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Unauthorized("user not found")
		}
		return nil, utils.Storage("failed to load user", err)
	}

	comment := models.Comment{PostID: postID, UserID: userID, Content: content}
	if err := tx.Create(&comment).Error; err != nil {
		return nil, engagementError("failed to add comment", err)
	}
	metrics.RecordComment()

	return &models.CommentView{
		ID:        comment.ID,
		PostID:    postID,
		UserID:    userID,
		FullName:  author.FullName,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}, nil
}

// engagementError keeps service errors as they are. A foreign key failure
// means the caller's account no longer exists.
func engagementError(msg string, err error) error {
	var e *utils.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return utils.Unauthorized("user not found")
	}
	return utils.Storage(msg, err)
}
