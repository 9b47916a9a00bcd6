package media

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"testing"

	"edumart/apperrors"
	"edumart/models"
	"edumart/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeStore records uploads and deletes, optionally failing the n-th upload.
type fakeStore struct {
	uploads      []string
	deletes      []string
	failUploadAt int // 1-based index of the upload call that fails, 0 = never
	failDelete   bool
	counter      int
}

func (f *fakeStore) Upload(file *multipart.FileHeader, folder, resourceType string) (*storage.UploadResult, error) {
	f.counter++
	if f.failUploadAt > 0 && f.counter == f.failUploadAt {
		return nil, errors.New("storage unavailable")
	}
	publicID := fmt.Sprintf("%s/%s-%d", folder, resourceType, f.counter)
	f.uploads = append(f.uploads, publicID)
	return &storage.UploadResult{
		PublicID: publicID,
		URL:      "https://cdn.test/" + publicID,
		Bytes:    file.Size,
		Format:   resourceType,
	}, nil
}

func (f *fakeStore) Delete(publicID, resourceType string) error {
	if f.failDelete {
		return errors.New("delete unavailable")
	}
	f.deletes = append(f.deletes, publicID)
	return nil
}

// remaining returns the ids uploaded in this run that were never deleted.
func (f *fakeStore) remaining() []string {
	deleted := make(map[string]bool)
	for _, id := range f.deletes {
		deleted[id] = true
	}
	var alive []string
	for _, id := range f.uploads {
		if !deleted[id] {
			alive = append(alive, id)
		}
	}
	return alive
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Course{}, &models.Lesson{}))
	return db
}

func fileHeader(t *testing.T, filename, contentType string, size int64) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), int(size)))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reader := multipart.NewReader(&buf, w.Boundary())
	form, err := reader.ReadForm(size + 1024)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func testCourse() *models.Course {
	return &models.Course{
		Title:        "Intro to Distributed Systems",
		Description:  "A course about keeping independent systems consistent.",
		Price:        49.99,
		InstructorID: 1,
	}
}

func TestCreateCourseZeroLessons(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.jpg", "image/jpeg", 512)
	created, err := co.CreateCourseWithMedia(testCourse(), image, nil, nil)
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.NotEmpty(t, created.ImagePublicID)
	assert.Equal(t, 0, created.LecturesCount)
	assert.Len(t, store.uploads, 1)
	assert.Empty(t, store.deletes)
}

func TestCreateCourseWithLessons(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.png", "image/png", 512)
	videos := []*multipart.FileHeader{
		fileHeader(t, "l1.mp4", "video/mp4", 2048),
		fileHeader(t, "l2.mp4", "video/mp4", 2048),
	}
	metas := []LessonMeta{
		{Title: "Lesson One", Order: 1, DurationSeconds: 1800},
		{Title: "Lesson Two", Order: 2, DurationSeconds: 5400},
	}

	created, err := co.CreateCourseWithMedia(testCourse(), image, videos, metas)
	require.NoError(t, err)

	assert.Equal(t, 2, created.LecturesCount)
	assert.InDelta(t, 2.0, created.TotalHours, 0.001)

	var lessons []models.Lesson
	require.NoError(t, db.Where("course_id = ?", created.ID).Order("order_index").Find(&lessons).Error)
	require.Len(t, lessons, 2)
	assert.Equal(t, "Lesson One", lessons[0].Title)
	assert.NotEmpty(t, lessons[0].VideoPublicID)
	assert.Equal(t, int64(2048), lessons[0].VideoBytes)

	assert.Len(t, store.uploads, 3)
	assert.Empty(t, store.deletes)
}

func TestCreateCourseCountMismatchCleansUp(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.jpg", "image/jpeg", 512)
	videos := []*multipart.FileHeader{
		fileHeader(t, "l1.mp4", "video/mp4", 1024),
		fileHeader(t, "l2.mp4", "video/mp4", 1024),
	}
	metas := []LessonMeta{{Title: "Only One", Order: 1, DurationSeconds: 60}}

	_, err := co.CreateCourseWithMedia(testCourse(), image, videos, metas)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// The already-uploaded image is deleted; nothing from this attempt survives
	assert.Empty(t, store.remaining())

	var count int64
	db.Model(&models.Course{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateCourseUploadFailureCompensates(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{failUploadAt: 3} // image, video 1 succeed; video 2 fails
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.jpg", "image/jpeg", 512)
	videos := []*multipart.FileHeader{
		fileHeader(t, "l1.mp4", "video/mp4", 1024),
		fileHeader(t, "l2.mp4", "video/mp4", 1024),
	}
	metas := []LessonMeta{
		{Title: "Lesson One", Order: 1, DurationSeconds: 60},
		{Title: "Lesson Two", Order: 2, DurationSeconds: 60},
	}

	_, err := co.CreateCourseWithMedia(testCourse(), image, videos, metas)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpload)

	assert.Empty(t, store.remaining())

	var courses, lessons int64
	db.Model(&models.Course{}).Count(&courses)
	db.Model(&models.Lesson{}).Count(&lessons)
	assert.Zero(t, courses)
	assert.Zero(t, lessons)
}

func TestCreateCourseRowFailureCompensates(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.jpg", "image/jpeg", 512)
	videos := []*multipart.FileHeader{
		fileHeader(t, "l1.mp4", "video/mp4", 1024),
		fileHeader(t, "l2.mp4", "video/mp4", 1024),
	}
	// Duplicate order makes the second lesson row violate the unique index
	metas := []LessonMeta{
		{Title: "Lesson One", Order: 1, DurationSeconds: 60},
		{Title: "Lesson Two", Order: 1, DurationSeconds: 60},
	}

	_, err := co.CreateCourseWithMedia(testCourse(), image, videos, metas)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	// All objects uploaded in this attempt are gone, including prior videos
	assert.Empty(t, store.remaining())

	var courses, lessons int64
	db.Model(&models.Course{}).Count(&courses)
	db.Model(&models.Lesson{}).Count(&lessons)
	assert.Zero(t, courses)
	assert.Zero(t, lessons)
}

func TestCreateCourseOversizeFailsFast(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	co := NewCoordinator(db, store, 256, 1<<20)

	image := fileHeader(t, "cover.jpg", "image/jpeg", 512)

	_, err := co.CreateCourseWithMedia(testCourse(), image, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
	assert.NotErrorIs(t, err, apperrors.ErrValidation)

	// Nothing was uploaded at all
	assert.Empty(t, store.uploads)
}

func TestCreateCourseRejectsUnsupportedTypes(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.exe", "application/octet-stream", 128)

	_, err := co.CreateCourseWithMedia(testCourse(), image, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, store.uploads)
}

func TestCompensationFailureDoesNotMaskCause(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{failDelete: true}
	co := NewCoordinator(db, store, 1<<20, 1<<20)

	image := fileHeader(t, "cover.jpg", "image/jpeg", 512)
	videos := []*multipart.FileHeader{fileHeader(t, "l1.mp4", "video/mp4", 1024)}

	_, err := co.CreateCourseWithMedia(testCourse(), image, videos, nil)
	require.Error(t, err)
	// Still the original validation error, not the delete failure
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
