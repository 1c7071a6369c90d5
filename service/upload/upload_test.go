package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/db/dbtest"
	"github.com/KAsare1/pesb-server/service/auth"
	"github.com/KAsare1/pesb-server/service/tags"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func newIngest(t *testing.T) (*Ingest, *gorm.DB, string) {
	t.Helper()
	db := dbtest.New(t)
	dir := t.TempDir()
	return NewIngest(db, utils.NewImageStore(dir, "uploads", 1<<20)), db, dir
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func filesIn(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestUploadPersistsImagePostAndTags(t *testing.T) {
	ingest, db, dir := newIngest(t)
	u := dbtest.CreateUser(t, db, "Ana", "ana@x.com")

	res, err := ingest.Upload(context.Background(), Input{
		UserID:      u.ID,
		File:        bytes.NewReader(pngBytes),
		Filename:    "IMG_0001.PNG",
		Location:    utils.Location{Latitude: -20.72, Longitude: -42.40},
		Description: "  heron at dawn ",
		Tags:        tags.ParseList("bird, forest, Bird"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasPrefix(res.Path, "uploads/") || !strings.HasSuffix(res.Path, ".png") {
		t.Errorf("Path = %q", res.Path)
	}

	var post models.Post
	if err := db.Preload("Image").First(&post, res.PostID).Error; err != nil {
		t.Fatal(err)
	}
	if post.Content != "heron at dawn" || post.UserID != u.ID {
		t.Errorf("post = %+v", post)
	}
	if post.Image == nil || post.Image.ID != res.ImageID || post.Image.Latitude != -20.72 || post.Image.Longitude != -42.40 {
		t.Errorf("image = %+v", post.Image)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(res.Path))); err != nil {
		t.Errorf("stored file missing: %v", err)
	}

	byPost, _ := tags.ForPosts(db, []uint{res.PostID})
	if got := byPost[res.PostID]; len(got) != 2 || got[0].Name != "bird" || got[1].Name != "forest" {
		t.Errorf("tags = %+v", got)
	}
}

func TestUploadIsAllOrNothing(t *testing.T) {
	ingest, db, dir := newIngest(t)
	u := dbtest.CreateUser(t, db, "Ana", "ana@x.com")

	// Linking tags is the last step; without its table the transaction
	// fails after the image, post and tag rows were written.
	if err := db.Migrator().DropTable(&models.PostTag{}); err != nil {
		t.Fatal(err)
	}

	_, err := ingest.Upload(context.Background(), Input{
		UserID:   u.ID,
		File:     bytes.NewReader(pngBytes),
		Location: utils.Location{Latitude: 1, Longitude: 2},
		Tags:     []string{"bird"},
	})
	if utils.KindOf(err) != utils.KindStorage {
		t.Fatalf("Upload() error = %v, want storage error", err)
	}

	for _, m := range []interface{}{&models.Image{}, &models.Post{}, &models.Tag{}} {
		if n := countRows(t, db, m); n != 0 {
			t.Errorf("%T rows = %d after failed upload", m, n)
		}
	}
	if n := filesIn(t, dir); n != 0 {
		t.Errorf("%d files left in upload dir", n)
	}
}

func TestUploadRejections(t *testing.T) {
	ingest, db, dir := newIngest(t)
	u := dbtest.CreateUser(t, db, "Ana", "ana@x.com")
	ctx := context.Background()

	_, err := ingest.Upload(ctx, Input{UserID: 9999, File: bytes.NewReader(pngBytes)})
	if utils.KindOf(err) != utils.KindAuth {
		t.Errorf("unknown user error = %v, want auth", err)
	}

	_, err = ingest.Upload(ctx, Input{UserID: u.ID, File: strings.NewReader("plain text, not a picture")})
	if utils.KindOf(err) != utils.KindValidation {
		t.Errorf("text file error = %v, want bad request", err)
	}

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{1}, 2<<20)...)
	_, err = ingest.Upload(ctx, Input{UserID: u.ID, File: bytes.NewReader(big)})
	if utils.KindOf(err) != utils.KindValidation {
		t.Errorf("oversized file error = %v, want bad request", err)
	}

	if n := countRows(t, db, &models.Post{}); n != 0 {
		t.Errorf("posts = %d", n)
	}
	if n := filesIn(t, dir); n != 0 {
		t.Errorf("%d files left in upload dir", n)
	}
}

type form struct {
	picture  []byte
	location string
	tags     string
	token    string
}

func (f form) request(t *testing.T) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if f.picture != nil {
		fw, err := mw.CreateFormFile("picture", "photo.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(f.picture)
	}
	mw.WriteField("location", f.location)
	mw.WriteField("description", "a heron")
	mw.WriteField("tags", f.tags)
	if f.token != "" {
		mw.WriteField("token", f.token)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	ingest, db, _ := newIngest(t)
	u := dbtest.CreateUser(t, db, "Ana", "ana@x.com")

	issuer := auth.NewIssuer("test-secret", time.Hour)
	token, err := issuer.Issue(utils.Identity{UserID: u.ID, Email: u.Email, FullName: u.FullName})
	if err != nil {
		t.Fatal(err)
	}

	router := mux.NewRouter()
	NewHandler(ingest, auth.NewMiddleware(issuer, "authToken"), "/feed.html", 1<<20).RegisterRoutes(router)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}
	good := form{picture: pngBytes, location: "latitude: -20.72, longitude: -42.40", tags: "bird, forest", token: token}

	t.Run("redirects browsers", func(t *testing.T) {
		rec := serve(good.request(t))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/feed.html" {
			t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("json for api clients", func(t *testing.T) {
		req := good.request(t)
		req.Header.Set("Accept", "application/json")
		rec := serve(req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var res Result
		json.NewDecoder(rec.Body).Decode(&res)
		if res.PostID == 0 || res.ImageID == 0 || res.Path == "" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("check order", func(t *testing.T) {
		noFile := good
		noFile.picture = nil
		noFile.token = ""
		if rec := serve(noFile.request(t)); rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "no file attached") {
			t.Errorf("missing file: %d %s", rec.Code, rec.Body)
		}

		badLoc := good
		badLoc.location = "somewhere nice"
		badLoc.token = ""
		if rec := serve(badLoc.request(t)); rec.Code != http.StatusBadRequest {
			t.Errorf("bad location: status = %d", rec.Code)
		}

		anon := good
		anon.token = ""
		if rec := serve(anon.request(t)); rec.Code != http.StatusUnauthorized {
			t.Errorf("no token: status = %d", rec.Code)
		}
	})

	if n := countRows(t, db, &models.Post{}); n != 2 {
		t.Errorf("posts = %d, want 2", n)
	}
}
