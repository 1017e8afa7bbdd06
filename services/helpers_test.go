package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"taxforms-api/models"
	"taxforms-api/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupSQLiteTestDB opens a migrated in-memory database. A single
// connection keeps every query on the same in-memory database.
func setupSQLiteTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func setupPostgresMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// failCreatesOn makes every insert into table fail.
func failCreatesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_create", func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("insert rejected"))
		}
	}))
}

func seedFormType(t *testing.T, db *gorm.DB, name, price string, active bool) models.FormType {
	t.Helper()
	ft := models.FormType{
		Name:      name,
		BasePrice: decimal.RequireFromString(price),
		IsActive:  true,
	}
	require.NoError(t, db.Create(&ft).Error)
	if !active {
		require.NoError(t, db.Model(&ft).Update("is_active", false).Error)
		ft.IsActive = false
	}
	return ft
}

func seedField(t *testing.T, db *gorm.DB, formTypeID, name string, fieldType models.FieldType, order int, required bool, createdAt time.Time) models.CustomField {
	t.Helper()
	field := models.CustomField{
		FormTypeID:   formTypeID,
		FieldName:    name,
		FieldLabel:   name,
		FieldType:    fieldType,
		IsRequired:   required,
		DisplayOrder: order,
		CreatedAt:    createdAt,
	}
	require.NoError(t, db.Create(&field).Error)
	return field
}

func seedProfile(t *testing.T, db *gorm.DB, userID, email, fullName string) models.Profile {
	t.Helper()
	p := models.Profile{UserID: userID, Email: email}
	if fullName != "" {
		p.FullName = &fullName
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedApplication(t *testing.T, db *gorm.DB, userID string, formType models.FormType, status models.ApplicationStatus, createdAt time.Time) models.Application {
	t.Helper()
	app := models.Application{
		UserID:     userID,
		FormTypeID: formType.ID,
		Status:     status,
		FormData:   map[string]any{"note": "seed"},
		TotalPrice: formType.BasePrice,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	require.NoError(t, db.Create(&app).Error)
	return app
}

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "application-files", "http://files.test")
	require.NoError(t, err)
	return store
}

// heicHeader is enough of an ISO-BMFF ftyp box to be sniffed as HEIC.
var heicHeader = []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic")

func sampleJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}))
	return buf.Bytes()
}

type fakeConverter struct {
	out   []byte
	err   error
	calls int
}

func (c *fakeConverter) ToJPEG(data []byte) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.out, nil
}

// recordingStore wraps a store and counts writes; failUpload rejects them.
type recordingStore struct {
	storage.ObjectStore
	mu         sync.Mutex
	uploads    []string
	failUpload error
}

func (s *recordingStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpload != nil {
		return s.failUpload
	}
	s.uploads = append(s.uploads, objectPath)
	return s.ObjectStore.Upload(ctx, objectPath, data, contentType)
}

func (s *recordingStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
