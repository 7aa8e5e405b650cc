package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/imaging"
	"inkpress/internal/models"
)

// MaxImageSize is the largest accepted upload (10 MB).
const MaxImageSize = 10 << 20

const maxOriginalNameLen = 255

var (
	// ErrStorageUnavailable is returned when no object storage is configured.
	ErrStorageUnavailable = errors.New("object storage is not configured")
	// ErrImageTooLarge is returned for uploads over MaxImageSize.
	ErrImageTooLarge = errors.New("image exceeds the 10 MB limit")
)

// ObjectStorage is the bucket images are written to.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	FileURL(key string) string
	Bucket() string
}

// ImageService uploads article images and their thumbnails.
type ImageService struct {
	media   MediaRepository
	storage ObjectStorage
	now     func() time.Time
}

// NewImageService creates an ImageService. storage may be nil, in which
// case uploads fail with ErrStorageUnavailable.
func NewImageService(media MediaRepository, storage ObjectStorage) *ImageService {
	return &ImageService{media: media, storage: storage, now: time.Now}
}

// Enabled reports whether uploads are possible.
func (s *ImageService) Enabled() bool {
	return s.storage != nil
}

// Upload stores data under images/YYYY/MM/<uuid><ext> and, for jpeg, png
// and webp, a JPEG thumbnail next to it. A failed thumbnail does not fail
// the upload.
func (s *ImageService) Upload(ctx context.Context, uploader *models.User, filename string, data []byte) (*models.Media, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}
	contentType, ext, ok := imaging.Detect(data)
	if !ok {
		return nil, apperror.ValidationFailed("file", "file must be a jpeg, png, gif or webp image")
	}

	now := s.now()
	fileID := uuid.New().String()
	prefix := fmt.Sprintf("images/%d/%02d/%s", now.Year(), now.Month(), fileID)
	key := prefix + ext

	if err := s.storage.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}

	var thumbKey *string
	if imaging.Thumbnailable(contentType) {
		thumb, err := imaging.Thumbnail(data, imaging.ThumbMaxWidth)
		if err != nil {
			slog.Warn("thumbnail generation failed", "key", key, "error", err)
		} else {
			tk := prefix + "_thumb.jpg"
			if err := s.storage.Upload(ctx, tk, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
				slog.Warn("thumbnail upload failed", "key", tk, "error", err)
			} else {
				thumbKey = &tk
			}
		}
	}

	draft := &models.Media{
		Filename:     fileID + ext,
		OriginalName: originalName(filename),
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		Bucket:       s.storage.Bucket(),
		S3Key:        key,
		ThumbS3Key:   thumbKey,
		UploaderID:   uploader.ID,
	}
	m, err := s.media.Create(ctx, draft)
	if err != nil {
		s.removeObjects(ctx, draft.ObjectKeys()...)
		return nil, err
	}
	slog.Info("image uploaded", "media_id", m.ID, "key", key, "size", m.HumanSize())
	s.resolveURLs(m)
	return m, nil
}

// List returns a page of the user's uploads, newest first.
func (s *ImageService) List(ctx context.Context, uploader *models.User, page, perPage int) ([]models.Media, error) {
	page, perPage = clampPage(page, perPage)
	items, err := s.media.ListByUploader(ctx, uploader.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Media{}
	}
	for i := range items {
		s.resolveURLs(&items[i])
	}
	return items, nil
}

// Delete removes an image and its objects. Only the uploader and admins
// may delete it.
func (s *ImageService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	m, err := s.media.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return apperror.NotFound("image", id.String())
	}
	if m.UploaderID != user.ID && !user.IsAdmin() {
		return apperror.Forbidden("only the uploader or an admin can delete this image")
	}
	if s.storage == nil {
		return ErrStorageUnavailable
	}
	if _, err := s.media.Delete(ctx, id); err != nil {
		return err
	}
	s.removeObjects(ctx, m.ObjectKeys()...)
	return nil
}

func (s *ImageService) removeObjects(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			slog.Warn("s3 delete failed", "key", key, "error", err)
		}
	}
}

func (s *ImageService) resolveURLs(m *models.Media) {
	if s.storage == nil {
		return
	}
	m.URL = s.storage.FileURL(m.S3Key)
	if m.ThumbS3Key != nil {
		m.ThumbURL = s.storage.FileURL(*m.ThumbS3Key)
	}
}

// originalName keeps the base of the client's filename as valid UTF-8 of
// at most maxOriginalNameLen runes.
func originalName(filename string) string {
	name := strings.ToValidUTF8(filepath.Base(filename), "")
	if utf8.RuneCountInString(name) > maxOriginalNameLen {
		name = string([]rune(name)[:maxOriginalNameLen])
	}
	return name
}
