package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// ImageStore keeps uploaded pictures on the local filesystem. Files are
// named by date and a random uuid, so concurrent uploads never collide.
type ImageStore struct {
	dir      string
	prefix   string
	maxBytes int64
}

// StoredImage describes a file written by Save. Path is the public path the
// file is served under, Name the file name inside the store directory.
type StoredImage struct {
	Name     string
	Path     string
	Size     int64
	Mimetype string
}

func NewImageStore(dir, publicPrefix string, maxBytes int64) *ImageStore {
	return &ImageStore{dir: dir, prefix: strings.Trim(publicPrefix, "/"), maxBytes: maxBytes}
}

func (s *ImageStore) Dir() string { return s.dir }

// Save streams src into the store. The content type is sniffed from the
// first bytes and must be an image.
func (s *ImageStore) Save(src io.Reader) (StoredImage, error) {
	br := bufio.NewReaderSize(src, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return StoredImage{}, fmt.Errorf("failed to read upload: %w", err)
	}
	mimetype := http.DetectContentType(head)
	ext, ok := imageExtensions[mimetype]
	if !ok {
		return StoredImage{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mimetype)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return StoredImage{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
	full := filepath.Join(s.dir, name)

	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return StoredImage{}, fmt.Errorf("failed to create file: %w", err)
	}

	// One extra byte tells an exact-limit file apart from an oversized one.
	n, err := io.Copy(dst, io.LimitReader(br, s.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrImageTooLarge
	}
	if err != nil {
		os.Remove(full)
		if errors.Is(err, ErrImageTooLarge) {
			return StoredImage{}, err
		}
		return StoredImage{}, fmt.Errorf("failed to save file: %w", err)
	}

	return StoredImage{
		Name:     name,
		Path:     path.Join(s.prefix, name),
		Size:     n,
		Mimetype: mimetype,
	}, nil
}

// Delete removes a stored file by name. A missing file is not an error.
func (s *ImageStore) Delete(name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
