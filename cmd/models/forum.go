package models

import "time"

// Image is written once, together with its Post, and never updated.
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Filename  string    `gorm:"column:filename;not null" json:"filename"`
	Mimetype  string    `gorm:"column:mimetype;size:100" json:"mimetype"`
	Path      string    `gorm:"column:path;not null" json:"path"`
	Size      int64     `gorm:"column:size" json:"size"`
	Latitude  float64   `gorm:"column:latitude" json:"latitude"`
	Longitude float64   `gorm:"column:longitude" json:"longitude"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Image) TableName() string {
	return "images"
}

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	ImageID   *uint     `gorm:"column:image_id" json:"image_id"`
	Content   string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Image     *Image    `gorm:"foreignKey:ImageID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Post) TableName() string {
	return "posts"
}

// Like has no surrogate key: the (user_id, post_id) primary key is the
// one-like-per-user constraint.
type Like struct {
	UserID    uint      `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"column:post_id;primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Like) TableName() string {
	return "post_likes"
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"column:post_id;not null;index" json:"post_id"`
	UserID    uint      `gorm:"column:user_id;not null" json:"user_id"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Comment) TableName() string {
	return "comments"
}

// Tag names are stored normalized (trimmed, lowercased).
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
}

func (Tag) TableName() string {
	return "tags"
}

type PostTag struct {
	PostID uint  `gorm:"column:post_id;primaryKey;autoIncrement:false" json:"post_id"`
	TagID  uint  `gorm:"column:tag_id;primaryKey;autoIncrement:false;index" json:"tag_id"`
	Post   *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Tag    *Tag  `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PostTag) TableName() string {
	return "posts_tags"
}

// All lists every model in foreign key order, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Image{},
		&Post{},
		&Like{},
		&Comment{},
		&Tag{},
		&PostTag{},
	}
}
