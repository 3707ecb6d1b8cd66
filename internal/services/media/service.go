// Package media stores post and profile assets in the hosted storage
// bucket and hands back their public URLs.
package media

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// maxUploadBytes caps a single asset upload.
const maxUploadBytes = 10 << 20

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"video/mp4":  true,
}

// Service uploads media assets.
type Service struct {
	storage *supabase.StorageClient
	bucket  string
	log     *logger.Logger
}

// New constructs a media service backed by one bucket.
func New(storage *supabase.StorageClient, bucket string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("media")
	}
	return &Service{
		storage: storage,
		bucket:  bucket,
		log:     log,
	}
}

// UploadPostMedia stores an asset under the post's prefix and returns its
// public URL.
func (s *Service) UploadPostMedia(ctx context.Context, postID, filename string, data []byte, contentType string) (string, error) {
	return s.upload(ctx, "posts/"+postID, filename, data, contentType)
}

// UploadAvatar stores a user's avatar and returns its public URL.
func (s *Service) UploadAvatar(ctx context.Context, userID, filename string, data []byte, contentType string) (string, error) {
	return s.upload(ctx, "avatars/"+userID, filename, data, contentType)
}

// UploadCover stores a creator's cover image and returns its public URL.
func (s *Service) UploadCover(ctx context.Context, creatorID, filename string, data []byte, contentType string) (string, error) {
	return s.upload(ctx, "covers/"+creatorID, filename, data, contentType)
}

func (s *Service) upload(ctx context.Context, prefix, filename string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", validation.New("payload is empty")
	}
	if len(data) > maxUploadBytes {
		return "", validation.Errorf("payload exceeds %d bytes", maxUploadBytes)
	}
	if !allowedContentTypes[contentType] {
		return "", validation.Errorf("content type %q is not allowed", contentType)
	}

	name := sanitizeFilename(filename)
	objectPath := prefix + "/" + uuid.NewString() + "-" + name

	bucket := s.storage.From(s.bucket)
	resp, err := bucket.Upload(ctx, objectPath, data, contentType)
	if err != nil {
		return "", err
	}
	if err := resp.Error(); err != nil {
		return "", err
	}

	s.log.WithField("path", objectPath).Info("media uploaded")
	return bucket.GetPublicURL(objectPath), nil
}

func sanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}
