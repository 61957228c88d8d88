package services_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func encodeJPEG(t require.TestingT, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func encodePNG(t require.TestingT, width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type AvatarPipelineTestSuite struct {
	ServiceTestSuite
}

func (suite *AvatarPipelineTestSuite) TestIngest_NormalizesJPEG() {
	user, _ := suite.register("Pic", "pic@example.com")
	upload := encodeJPEG(suite.T(), 1000, 1000)
	suite.Require().LessOrEqual(len(upload), services.DefaultAvatarMaxBytes)

	suite.Require().NoError(suite.avatars.Ingest(suite.ctx, user, upload, "me.JPG"))

	stored, contentType, err := suite.avatars.FetchPublic(suite.ctx, user.ID)
	suite.Require().NoError(err)
	suite.Equal("image/png", contentType)
	suite.NotEqual(upload, stored)

	decoded, format, err := image.Decode(bytes.NewReader(stored))
	suite.Require().NoError(err)
	suite.Equal("png", format)
	suite.Equal(250, decoded.Bounds().Dx())
	suite.Equal(250, decoded.Bounds().Dy())
}

func (suite *AvatarPipelineTestSuite) TestIngest_CropsNonSquare() {
	user, _ := suite.register("Wide", "wide@example.com")

	suite.Require().NoError(suite.avatars.Ingest(suite.ctx, user, encodePNG(suite.T(), 600, 200), "wide.png"))

	stored, _, err := suite.avatars.FetchPublic(suite.ctx, user.ID)
	suite.Require().NoError(err)
	config, err := png.DecodeConfig(bytes.NewReader(stored))
	suite.Require().NoError(err)
	suite.Equal(250, config.Width)
	suite.Equal(250, config.Height)
}

func (suite *AvatarPipelineTestSuite) TestIngest_RejectsTypeBeforeDecoding() {
	user, _ := suite.register("Gif", "gif@example.com")

	err := suite.avatars.Ingest(suite.ctx, user, []byte("GIF89a not really"), "anim.gif")
	suite.ErrorIs(err, models.ErrInvalidUpload)
	suite.NotErrorIs(err, models.ErrImageProcessing)
	suite.Contains(err.Error(), "Please upload an image")

	_, _, err = suite.avatars.FetchPublic(suite.ctx, user.ID)
	suite.ErrorIs(err, models.ErrNotFound)
}

func (suite *AvatarPipelineTestSuite) TestIngest_RejectsOversize() {
	user, _ := suite.register("Big", "big@example.com")

	err := suite.avatars.Ingest(suite.ctx, user, make([]byte, services.DefaultAvatarMaxBytes+1), "big.png")
	suite.ErrorIs(err, models.ErrInvalidUpload)
	suite.Contains(err.Error(), "File too large")
}

func (suite *AvatarPipelineTestSuite) TestIngest_CorruptImage() {
	user, _ := suite.register("Broken", "broken@example.com")

	err := suite.avatars.Ingest(suite.ctx, user, []byte("definitely not a png"), "broken.png")
	suite.ErrorIs(err, models.ErrImageProcessing)
}

func (suite *AvatarPipelineTestSuite) TestRemove() {
	user, _ := suite.register("Remove", "remove@example.com")

	suite.ErrorIs(suite.avatars.Remove(suite.ctx, user), models.ErrNotFound)

	suite.Require().NoError(suite.avatars.Ingest(suite.ctx, user, encodePNG(suite.T(), 10, 10), "tiny.png"))
	suite.Require().NoError(suite.avatars.Remove(suite.ctx, user))

	_, _, err := suite.avatars.FetchPublic(suite.ctx, user.ID)
	suite.ErrorIs(err, models.ErrNotFound)
}

func TestAvatarPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(AvatarPipelineTestSuite))
}

func TestCheckUpload(t *testing.T) {
	pipeline := services.NewAvatarPipeline(nil, services.AvatarConfig{MaxBytes: 100})

	tests := []struct {
		filename string
		size     int64
		valid    bool
	}{
		{"photo.jpg", 10, true},
		{"photo.JPEG", 10, true},
		{"photo.Png", 100, true},
		{"photo.png", 101, false},
		{"photo.gif", 10, false},
		{"photo.png.exe", 10, false},
		{"jpg", 10, false},
	}

	for _, tt := range tests {
		err := pipeline.CheckUpload(tt.filename, tt.size)
		if tt.valid {
			assert.NoError(t, err, tt.filename)
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidUpload, tt.filename)
		}
	}
}

func TestNormalizeAvatar_Size(t *testing.T) {
	out, err := services.NormalizeAvatar(encodeJPEG(t, 40, 90), 64)
	require.NoError(t, err)

	config, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 64, config.Width)
	assert.Equal(t, 64, config.Height)
}
