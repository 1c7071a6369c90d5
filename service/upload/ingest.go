// Package upload turns a submitted photo into an Image, a Post and its tags.
package upload

import (
	"context"
	"errors"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/logging"
	"github.com/KAsare1/pesb-server/metrics"
	"github.com/KAsare1/pesb-server/service/tags"
)

type Input struct {
	UserID uint
	File   io.Reader
	// Filename is the name the client sent. It is only logged; stored
	// files are always renamed.
	Filename    string
	Location    utils.Location
	Description string
	Tags        []string
}

type Result struct {
	PostID  uint   `json:"postId"`
	ImageID uint   `json:"imageId"`
	Path    string `json:"path"`
}

type Ingest struct {
	db     *gorm.DB
	images *utils.ImageStore
}

func NewIngest(db *gorm.DB, images *utils.ImageStore) *Ingest {
	return &Ingest{db: db, images: images}
}

// Upload stores the file and records it. Either everything is persisted or
// nothing is: on failure the rows are rolled back and the file removed.
func (i *Ingest) Upload(ctx context.Context, in Input) (*Result, error) {
	var user models.User
	if err := i.db.WithContext(ctx).Select("id").First(&user, in.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.RecordUpload("rejected")
			return nil, utils.Unauthorized("user not found")
		}
		metrics.RecordUpload("failure")
		return nil, utils.Storage("failed to load user", err)
	}

	stored, err := i.images.Save(in.File)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrUnsupportedImage):
			metrics.RecordUpload("rejected")
			return nil, utils.BadRequest("file must be an image")
		case errors.Is(err, utils.ErrImageTooLarge):
			metrics.RecordUpload("rejected")
			return nil, utils.BadRequest("file too large")
		}
		metrics.RecordUpload("failure")
		return nil, utils.Storage("failed to store file", err)
	}

	image := models.Image{
		Filename:  stored.Name,
		Mimetype:  stored.Mimetype,
		Path:      stored.Path,
		Size:      stored.Size,
		Latitude:  in.Location.Latitude,
		Longitude: in.Location.Longitude,
	}
	var post models.Post

	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&image).Error; err != nil {
			return err
		}
		post = models.Post{
			UserID:  in.UserID,
			ImageID: &image.ID,
			Content: strings.TrimSpace(in.Description),
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tags.Attach(tx, post.ID, in.Tags)
	})
	if err != nil {
		if derr := i.images.Delete(stored.Name); derr != nil {
			logging.Warn().Err(derr).Str("file", stored.Name).Msg("failed to remove orphaned upload")
		}
		metrics.RecordUpload("failure")
		return nil, utils.Storage("failed to save upload", err)
	}

	metrics.RecordUpload("success")
	logging.Info().
		Uint("user_id", in.UserID).
		Uint("post_id", post.ID).
		Str("client_filename", in.Filename).
		Str("path", stored.Path).
		Int("tags", len(in.Tags)).
		Msg("picture uploaded")

	return &Result{PostID: post.ID, ImageID: image.ID, Path: stored.Path}, nil
}
