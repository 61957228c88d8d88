package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"regexp"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"

	"github.com/gofrs/uuid"
	"golang.org/x/image/draw"
)

const (
	DefaultAvatarMaxBytes = 1000000
	DefaultAvatarSize     = 250
	AvatarContentType     = "image/png"
)

var avatarExtension = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

type AvatarConfig struct {
	MaxBytes int64
	Size     int
}

type AvatarPipeline interface {
	Ingest(ctx context.Context, user *models.User, data []byte, filename string) error
	Remove(ctx context.Context, user *models.User) error
	FetchPublic(ctx context.Context, userID uuid.UUID) ([]byte, string, error)
}

type AvatarPipelineImpl struct {
	users    repositories.UserRepository
	maxBytes int64
	size     int
}

func NewAvatarPipeline(users repositories.UserRepository, config AvatarConfig) *AvatarPipelineImpl {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultAvatarMaxBytes
	}
	if config.Size <= 0 {
		config.Size = DefaultAvatarSize
	}
	return &AvatarPipelineImpl{users: users, maxBytes: config.MaxBytes, size: config.Size}
}

// CheckUpload applies the name and size rules. It runs before any decoding.
func (p *AvatarPipelineImpl) CheckUpload(filename string, size int64) error {
	if !avatarExtension.MatchString(filename) {
		return fmt.Errorf("%w: Please upload an image", models.ErrInvalidUpload)
	}
	if size > p.maxBytes {
		return fmt.Errorf("%w: File too large", models.ErrInvalidUpload)
	}
	return nil
}

// Ingest stores the normalized PNG, never the uploaded bytes.
func (p *AvatarPipelineImpl) Ingest(ctx context.Context, user *models.User, data []byte, filename string) error {
	if err := p.CheckUpload(filename, int64(len(data))); err != nil {
		return err
	}

	normalized, err := NormalizeAvatar(data, p.size)
	if err != nil {
		return err
	}

	return p.users.SetAvatar(ctx, user.ID, normalized)
}

func (p *AvatarPipelineImpl) Remove(ctx context.Context, user *models.User) error {
	return p.users.ClearAvatar(ctx, user.ID)
}

func (p *AvatarPipelineImpl) FetchPublic(ctx context.Context, userID uuid.UUID) ([]byte, string, error) {
	avatar, err := p.users.FindAvatar(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return avatar, AvatarContentType, nil
}

// NormalizeAvatar decodes a JPEG or PNG, center-crops it to a square and
// scales it to size x size, then encodes the result as PNG.
func NormalizeAvatar(data []byte, size int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageProcessing, err)
	}

	bounds := src.Bounds()
	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}
	if side == 0 {
		return nil, models.ErrImageProcessing
	}

	x0 := bounds.Min.X + (bounds.Dx()-side)/2
	y0 := bounds.Min.Y + (bounds.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageProcessing, err)
	}
	return buf.Bytes(), nil
}
