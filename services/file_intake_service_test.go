package services

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/heic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntake(t *testing.T, converter ImageConverter) (*FileIntakeService, *recordingStore) {
	t.Helper()
	store := &recordingStore{ObjectStore: newLocalStore(t)}
	svc := NewFileIntakeService(store, converter, 10<<20, quietLogger())
	return svc, store
}

func TestUploadFileConvertsHEICToJPEG(t *testing.T) {
	converter := &fakeConverter{out: sampleJPEG(t)}
	svc, store := newIntake(t, converter)
	svc.now = fixedClock(time.UnixMilli(1700000000123))

	ref, err := svc.UploadFile(context.Background(), FileInput{
		Name:        "scan.HEIC",
		ContentType: "image/heic",
		Data:        append([]byte(nil), heicHeader...),
	}, UploadContext{UserID: "user-1", FieldName: "w2_copy", FieldLabel: "W-2 Copy", Accept: "image/*"})
	require.NoError(t, err)

	assert.Equal(t, 1, converter.calls)
	assert.Equal(t, "user-1/w2_copy_1700000000123.jpg", ref.StoragePath)
	assert.Equal(t, "scan.jpg", ref.Name)
	assert.Equal(t, "w2_copy", ref.FieldName)
	assert.Equal(t, "W-2 Copy", ref.FieldLabel)
	assert.Equal(t, store.PublicURL(ref.StoragePath), ref.URL)

	data, err := store.Download(context.Background(), ref.StoragePath)
	require.NoError(t, err)
	assert.True(t, mimetype.Detect(data).Is("image/jpeg"))
	assert.False(t, IsHEIC(data, "", ""))
	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestUploadFileConversionFailureWritesNothing(t *testing.T) {
	converter := &fakeConverter{err: errors.New("bad container")}
	svc, store := newIntake(t, converter)

	ref, err := svc.UploadFile(context.Background(), FileInput{
		Name: "scan.heic",
		Data: append([]byte(nil), heicHeader...),
	}, UploadContext{UserID: "user-1", FieldName: "w2_copy", Accept: "image/*"})

	var convErr *ConversionFailedError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "scan.heic", convErr.FileName)
	assert.Empty(t, ref.StoragePath)
	assert.Equal(t, 0, store.uploadCount())
}

func TestUploadFileReuploadGetsDistinctPaths(t *testing.T) {
	svc, store := newIntake(t, &fakeConverter{})
	svc.now = fixedClock(time.UnixMilli(1700000000000))

	file := FileInput{Name: "w2.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")}
	uc := UploadContext{UserID: "user-1", FieldName: "w2_copy", Accept: "*"}

	first, err := svc.UploadFile(context.Background(), file, uc)
	require.NoError(t, err)
	second, err := svc.UploadFile(context.Background(), file, uc)
	require.NoError(t, err)

	assert.Equal(t, "user-1/w2_copy_1700000000000.pdf", first.StoragePath)
	assert.Equal(t, "user-1/w2_copy_1700000000001.pdf", second.StoragePath)
	assert.Equal(t, 2, store.uploadCount())
}

func TestUploadFileStoreFailure(t *testing.T) {
	svc, store := newIntake(t, &fakeConverter{})
	store.failUpload = errors.New("bucket unavailable")

	ref, err := svc.UploadFile(context.Background(), FileInput{
		Name: "photo.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nrest"),
	}, UploadContext{UserID: "user-1", FieldName: "id_photo", Accept: "image/*"})

	var upErr *UploadFailedError
	require.ErrorAs(t, err, &upErr)
	assert.Regexp(t, regexp.MustCompile(`^user-1/id_photo_\d+\.png$`), upErr.Path)
	assert.Empty(t, ref.URL)
}

func TestUploadFileAcceptFilter(t *testing.T) {
	svc, _ := newIntake(t, &fakeConverter{})
	pdf := FileInput{Name: "w2.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")}

	_, err := svc.UploadFile(context.Background(), pdf, UploadContext{UserID: "user-1", FieldName: "photo", Accept: "image/*"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UploadFile(context.Background(), pdf, UploadContext{UserID: "user-1", FieldName: "doc", Accept: "*"})
	assert.NoError(t, err)
}

func TestUploadFileRejectsEmptyAndOversized(t *testing.T) {
	store := &recordingStore{ObjectStore: newLocalStore(t)}
	svc := NewFileIntakeService(store, &fakeConverter{}, 8, quietLogger())
	uc := UploadContext{UserID: "user-1", FieldName: "doc"}

	_, err := svc.UploadFile(context.Background(), FileInput{Name: "a.txt"}, uc)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UploadFile(context.Background(), FileInput{Name: "a.txt", Data: []byte("0123456789")}, uc)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UploadFile(context.Background(), FileInput{Name: "a.txt", Data: []byte("ok")}, UploadContext{FieldName: "doc"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, store.uploadCount())
}

func TestAcceptMatches(t *testing.T) {
	tests := []struct {
		accept, contentType, ext string
		want                     bool
	}{
		{"", "application/pdf", "pdf", true},
		{"*", "application/pdf", "pdf", true},
		{"image/*", "image/jpeg", "jpg", true},
		{"image/*", "application/pdf", "pdf", false},
		{".pdf,image/*", "application/pdf", "pdf", true},
		{"application/pdf", "application/pdf; charset=binary", "pdf", true},
		{"image/png", "image/jpeg", "jpg", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, acceptMatches(tt.accept, tt.contentType, tt.ext), "%q vs %q", tt.accept, tt.contentType)
	}
}

func TestIsHEIC(t *testing.T) {
	assert.True(t, IsHEIC(heicHeader, "", "upload"))
	assert.True(t, IsHEIC([]byte("x"), "image/HEIF", "upload"))
	assert.True(t, IsHEIC([]byte("x"), "", "IMG_0001.HEIC"))
	assert.False(t, IsHEIC([]byte("%PDF-1.4"), "application/pdf", "w2.pdf"))
}

func TestHEICConverterRejectsGarbage(t *testing.T) {
	_, err := NewHEICConverter().ToJPEG([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestHEICConverterDecodesRealImage(t *testing.T) {
	raw, err := os.ReadFile("testdata/w2_scan.heic")
	require.NoError(t, err)
	cfg, err := heic.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)

	out, err := NewHEICConverter().ToJPEG(raw)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, cfg.Width, img.Bounds().Dx())
	assert.Equal(t, cfg.Height, img.Bounds().Dy())
}

func TestUploadFileStoresRealHEICAsJPEG(t *testing.T) {
	raw, err := os.ReadFile("testdata/w2_scan.heic")
	require.NoError(t, err)
	require.True(t, IsHEIC(raw, "", "upload"))

	svc, store := newIntake(t, NewHEICConverter())
	ref, err := svc.UploadFile(context.Background(), FileInput{Name: "w2_scan.heic", Data: raw},
		UploadContext{UserID: "user-1", FieldName: "w2_copy", Accept: "image/*"})
	require.NoError(t, err)
	assert.Regexp(t, `^user-1/w2_copy_\d+\.jpg$`, ref.StoragePath)
	assert.Equal(t, "w2_scan.jpg", ref.Name)

	stored, err := store.Download(context.Background(), ref.StoragePath)
	require.NoError(t, err)
	assert.False(t, IsHEIC(stored, "", ""))
	_, err = jpeg.Decode(bytes.NewReader(stored))
	assert.NoError(t, err)
}

func TestNextStampForgetsPastMilliseconds(t *testing.T) {
	svc, _ := newIntake(t, &fakeConverter{})
	start := time.UnixMilli(1700000000000)
	svc.now = fixedClock(start)

	assert.EqualValues(t, 1700000000000, svc.nextStamp("user-1", "w2_copy"))
	assert.EqualValues(t, 1700000000000, svc.nextStamp("user-2", "w2_copy"))
	assert.EqualValues(t, 1700000000001, svc.nextStamp("user-1", "w2_copy"))
	assert.Len(t, svc.lastStamp, 2)

	svc.now = fixedClock(start.Add(time.Second))
	assert.EqualValues(t, 1700000001000, svc.nextStamp("user-3", "phone"))
	assert.Len(t, svc.lastStamp, 1)
}
