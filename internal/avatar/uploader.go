package avatar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	MaxUploadSize  = 5 << 20
	defaultSize    = 250
	defaultTimeout = 15 * time.Second
)

var (
	ErrEmptyFile       = errors.New("avatar file is empty")
	ErrFileTooLarge    = errors.New("avatar file too large")
	ErrUnsupportedType = errors.New("avatar must be an image")
)

// ObjectStore es el almacenamiento externo de imagenes.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (version string, err error)
	PublicURL(key string) string
}

// Upload describe el archivo recibido en la request.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// Uploader sube el avatar de un usuario a una clave derivada de su email
// y devuelve la URL de la version recortada a size x size.
type Uploader struct {
	store   ObjectStore
	prefix  string
	size    int
	timeout time.Duration
}

func NewUploader(store ObjectStore, prefix string, size int) *Uploader {
	if size <= 0 {
		size = defaultSize
	}
	return &Uploader{
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		size:    size,
		timeout: defaultTimeout,
	}
}

func (u *Uploader) Upload(ctx context.Context, email string, file Upload) (string, error) {
	if file.Body == nil || file.Size <= 0 {
		return "", ErrEmptyFile
	}
	if file.Size > MaxUploadSize {
		return "", ErrFileTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(file.ContentType), "image/") {
		return "", ErrUnsupportedType
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	key := u.Key(email)
	version, err := u.store.Put(ctx, key, file.Body, file.Size, file.ContentType)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return u.derivedURL(key, version), nil
}

// Key es determinista por email: cada subida sobrescribe la anterior.
func (u *Uploader) Key(email string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	if u.prefix == "" {
		return key
	}
	return u.prefix + "/" + key
}

func (u *Uploader) derivedURL(key, version string) string {
	q := url.Values{}
	q.Set("w", strconv.Itoa(u.size))
	q.Set("h", strconv.Itoa(u.size))
	q.Set("fit", "fill")
	if version != "" {
		q.Set("v", version)
	}
	return u.store.PublicURL(key) + "?" + q.Encode()
}

// GravatarURL devuelve el avatar por defecto asociado al email.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}
