// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/config"
	"github.com/KAsare1/pesb-server/db"
)

// New returns a migrated in-memory SQLite database private to t, with
// foreign keys enforced. It is closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=1", name, uuid.NewString())

	gdb, err := db.NewStorage(config.DatabaseConfig{Driver: "sqlite", URL: dsn})
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { db.Close(gdb) })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}
	return gdb
}

// CreateUser inserts a user with an unusable password hash.
func CreateUser(t testing.TB, gdb *gorm.DB, fullName, email string) *models.User {
	t.Helper()
	u := &models.User{FullName: fullName, Email: email, PasswordHash: "-", Role: models.RoleUser}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("dbtest: create user: %v", err)
	}
	return u
}

// CreatePost inserts an image and a post owned by userID.
func CreatePost(t testing.TB, gdb *gorm.DB, userID uint, content string) *models.Post {
	t.Helper()
	img := &models.Image{Filename: "p.png", Mimetype: "image/png", Path: "uploads/p.png", Latitude: 1, Longitude: 2}
	if err := gdb.Create(img).Error; err != nil {
		t.Fatalf("dbtest: create image: %v", err)
	}
	p := &models.Post{UserID: userID, ImageID: &img.ID, Content: content}
	if err := gdb.Create(p).Error; err != nil {
		t.Fatalf("dbtest: create post: %v", err)
	}
	return p
}
