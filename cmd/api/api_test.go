package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/config"
	"github.com/KAsare1/pesb-server/db/dbtest"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.SecretKey = "test-secret"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", URL: "unused"}

	h, err := NewApiServer(cfg, dbtest.New(t)).Handler()
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
	http  *http.Client
}

func (c *client) do(method, path string, body io.Reader, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *client) json(method, path string, in, out interface{}) int {
	c.t.Helper()
	var body io.Reader
	if in != nil {
		b, _ := json.Marshal(in)
		body = bytes.NewReader(b)
	}
	resp := c.do(method, path, body, "application/json")
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestPhotoSharingScenario(t *testing.T) {
	srv := newTestServer(t)
	c := &client{
		t:    t,
		base: srv.URL,
		http: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
	}

	var reg struct {
		UserID uint `json:"userId"`
	}
	status := c.json("POST", "/api/register", map[string]string{
		"fullName": "Ana Souza",
		"email":    "Ana@Example.com",
		"password": "correct horse",
	}, &reg)
	if status != http.StatusCreated || reg.UserID == 0 {
		t.Fatalf("register: %d %+v", status, reg)
	}

	var dup struct {
		Errors map[string]string `json:"errors"`
	}
	status = c.json("POST", "/api/register", map[string]string{
		"fullName": "Ana Again",
		"email":    "ana@EXAMPLE.com",
		"password": "correct horse",
	}, &dup)
	if status != http.StatusConflict || dup.Errors["email"] == "" {
		t.Fatalf("duplicate register: %d %+v", status, dup)
	}

	var login struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	status = c.json("POST", "/api/login", map[string]string{"email": "ana@example.com", "password": "correct horse"}, &login)
	if status != http.StatusOK || login.Token == "" || login.User.ID != reg.UserID {
		t.Fatalf("login: %d %+v", status, login)
	}
	c.token = login.Token

	var st struct {
		Authenticated bool `json:"authenticated"`
	}
	if status := c.json("GET", "/api/status", nil, &st); status != http.StatusOK || !st.Authenticated {
		t.Fatalf("status: %d %+v", status, st)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("picture", "heron.png")
	fw.Write(pngBytes)
	mw.WriteField("location", "latitude: -20.72, longitude: -42.40")
	mw.WriteField("description", "heron at dawn")
	mw.WriteField("tags", "bird, forest")
	mw.Close()
	resp := c.do("POST", "/upload", &buf, mw.FormDataContentType())
	if resp.StatusCode != http.StatusSeeOther {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload: %d %s", resp.StatusCode, b)
	}

	var posts []models.PostView
	if status := c.json("GET", "/posts", nil, &posts); status != http.StatusOK || len(posts) != 1 {
		t.Fatalf("posts: %d %+v", status, posts)
	}
	post := posts[0]
	if post.Likes != 0 || len(post.Tags) != 2 || post.Tags[0].Name != "bird" || post.Tags[1].Name != "forest" {
		t.Errorf("post = %+v", post)
	}
	if post.FullName != "Ana Souza" || post.Latitude == nil || *post.Latitude != -20.72 || *post.Longitude != -42.40 {
		t.Errorf("post = %+v", post)
	}

	img := c.do("GET", "/"+*post.Path, nil, "")
	if img.StatusCode != http.StatusOK {
		t.Errorf("GET stored image: %d", img.StatusCode)
	}

	likePath := fmt.Sprintf("/posts/%d/like", post.ID)
	var like models.LikeResult
	if status := c.json("POST", likePath, nil, &like); status != http.StatusOK || !like.Liked || like.Likes != 1 {
		t.Fatalf("like: %d %+v", status, like)
	}
	if status := c.json("POST", likePath, nil, &like); status != http.StatusOK || like.Liked || like.Likes != 0 {
		t.Fatalf("unlike: %d %+v", status, like)
	}

	var tagged []models.PostView
	if status := c.json("GET", "/tags/Forest/posts", nil, &tagged); status != http.StatusOK || len(tagged) != 1 {
		t.Errorf("tag listing: %d %+v", status, tagged)
	}

	var pictures []models.PictureView
	if status := c.json("GET", "/pictures", nil, &pictures); status != http.StatusOK || len(pictures) != 1 {
		t.Errorf("pictures: %d %+v", status, pictures)
	}
}

func TestLoginErrorsAreGeneric(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL, http: srv.Client()}

	c.json("POST", "/api/register", map[string]string{
		"fullName": "Ana",
		"email":    "ana@example.com",
		"password": "correct horse",
	}, nil)

	var wrongPass, unknown map[string]interface{}
	s1 := c.json("POST", "/api/login", map[string]string{"email": "ana@example.com", "password": "wrong password"}, &wrongPass)
	s2 := c.json("POST", "/api/login", map[string]string{"email": "bob@example.com", "password": "wrong password"}, &unknown)
	if s1 != http.StatusUnauthorized || s2 != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d", s1, s2)
	}
	if wrongPass["message"] != unknown["message"] {
		t.Errorf("messages differ: %v vs %v", wrongPass, unknown)
	}
}

func TestMetricsAndCORS(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL, http: srv.Client()}

	c.do("GET", "/pictures", nil, "")
	resp := c.do("GET", "/metrics", nil, "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `pesb_http_requests_total{method="GET",route="/pictures"`) {
		t.Errorf("metrics: %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", srv.URL+"/pictures", nil)
	req.Header.Set("Origin", "http://example.com")
	r, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS header")
	}
}
