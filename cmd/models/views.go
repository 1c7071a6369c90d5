package models

import "time"

// PostView is one entry of the feed: a post with its author, image and
// aggregated engagement. Comments and Tags are never nil.
type PostView struct {
	ID        uint          `json:"id"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
	UserID    uint          `json:"user_id"`
	FullName  string        `json:"full_name"`
	Path      *string       `json:"path"`
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
	Likes     int64         `json:"likes"`
	Comments  []CommentView `json:"comments"`
	Tags      []Tag         `json:"tags"`
}

type CommentView struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	FullName  string    `json:"full_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PictureView is the lightweight projection used by the map.
type PictureView struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Path      string  `json:"path"`
}

type LikeResult struct {
	PostID uint  `json:"postId"`
	Liked  bool  `json:"liked"`
	Likes  int64 `json:"likes"`
}
