package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/heic"
)

// JPEGQuality is the quality factor used when re-encoding HEIC uploads.
const JPEGQuality = 90

// ImageConverter turns a vendor image container into JPEG bytes.
type ImageConverter interface {
	ToJPEG(data []byte) ([]byte, error)
}

// HEICConverter decodes HEIC/HEIF images and re-encodes them as JPEG.
type HEICConverter struct {
	Quality int
}

func NewHEICConverter() HEICConverter {
	return HEICConverter{Quality: JPEGQuality}
}

func (c HEICConverter) ToJPEG(data []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode heic: %w", err)
	}
	return encodeJPEG(img, c.Quality)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var heicMIMEs = []string{"image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence"}

// IsHEIC reports whether the upload is a HEIC/HEIF image, judged by its
// content, its declared MIME type, or its file extension.
func IsHEIC(data []byte, declaredMIME, name string) bool {
	detected := mimetype.Detect(data)
	declared := strings.ToLower(strings.TrimSpace(declaredMIME))
	for _, m := range heicMIMEs {
		if detected.Is(m) || declared == m {
			return true
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".heic", ".heif":
		return true
	}
	return false
}
