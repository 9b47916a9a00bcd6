package media

import (
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"edumart/apperrors"
	"edumart/models"
	coursesvc "edumart/services/course"
	"edumart/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Allowed upload types. Anything else is rejected before a single byte
// reaches storage.
var (
	imageMimeTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	}
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	}
	videoMimeTypes = map[string]bool{
		"video/mp4":       true,
		"video/mpeg":      true,
		"video/quicktime": true,
		"video/webm":      true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".mpeg": true, ".mpg": true, ".mov": true, ".webm": true,
	}
)

// LessonMeta is the per-video lesson metadata sent with a course upload.
type LessonMeta struct {
	Title           string `json:"title"`
	Order           int    `json:"order"`
	DurationSeconds int    `json:"duration"`
}

// compensation is an undo action paired with a completed forward step.
type compensation struct {
	desc string
	undo func() error
}

// Coordinator orchestrates multi-file course uploads as a manual saga:
// forward actions (upload object, insert row) push compensations (delete
// object, delete row) that are drained in reverse order on any failure,
// so no orphaned media or partial rows survive.
type Coordinator struct {
	db            *gorm.DB
	store         storage.Client
	maxImageBytes int64
	maxVideoBytes int64
}

func NewCoordinator(db *gorm.DB, store storage.Client, maxImageBytes, maxVideoBytes int64) *Coordinator {
	return &Coordinator{
		db:            db,
		store:         store,
		maxImageBytes: maxImageBytes,
		maxVideoBytes: maxVideoBytes,
	}
}

// CreateCourseWithMedia uploads the cover image and lesson videos, then
// persists the course with its lessons. Zero lessons is a legal outcome.
func (co *Coordinator) CreateCourseWithMedia(course *models.Course, image *multipart.FileHeader, videos []*multipart.FileHeader, metas []LessonMeta) (*models.Course, error) {
	if image == nil {
		return nil, apperrors.NewValidation(map[string]string{"image": "Cover image is required!"})
	}

	// File-type and size gates run before any upload attempt
	if err := co.validateFiles(image, videos); err != nil {
		return nil, err
	}

	folder := "courses/" + uuid.NewString()
	var compensations []compensation

	fail := func(cause error) (*models.Course, error) {
		co.drain(compensations)
		return nil, cause
	}

	// Image first
	imageResult, err := co.store.Upload(image, folder, "image")
	if err != nil {
		return nil, fmt.Errorf("cover image: %w (%v)", apperrors.ErrUpload, err)
	}
	compensations = append(compensations, compensation{
		desc: "delete image " + imageResult.PublicID,
		undo: func() error { return co.store.Delete(imageResult.PublicID, "image") },
	})

	// Every video needs its metadata entry; a mismatch leaves no partial
	// course behind, including the image uploaded above.
	if len(videos) != len(metas) {
		return fail(apperrors.NewValidation(map[string]string{
			"lessons": fmt.Sprintf("Expected %d lesson entries for %d videos!", len(videos), len(metas)),
		}))
	}

	course.ImagePublicID = imageResult.PublicID
	course.ImageURL = imageResult.URL

	if err := co.db.Create(course).Error; err != nil {
		return fail(fmt.Errorf("failed to create course: %v", err))
	}
	courseID := course.ID
	compensations = append(compensations, compensation{
		desc: fmt.Sprintf("delete course %d and its lessons", courseID),
		undo: func() error {
			if err := co.db.Unscoped().Where("course_id = ?", courseID).Delete(&models.Lesson{}).Error; err != nil {
				return err
			}
			return co.db.Unscoped().Delete(&models.Course{}, courseID).Error
		},
	})

	for i, video := range videos {
		videoResult, err := co.store.Upload(video, folder, "video")
		if err != nil {
			return fail(fmt.Errorf("lesson video %d: %w (%v)", i+1, apperrors.ErrUpload, err))
		}
		publicID := videoResult.PublicID
		compensations = append(compensations, compensation{
			desc: "delete video " + publicID,
			undo: func() error { return co.store.Delete(publicID, "video") },
		})

		lesson := models.Lesson{
			CourseID:        course.ID,
			Title:           metas[i].Title,
			OrderIndex:      metas[i].Order,
			DurationSeconds: metas[i].DurationSeconds,
			VideoPublicID:   videoResult.PublicID,
			VideoURL:        videoResult.URL,
			VideoBytes:      videoResult.Bytes,
			VideoFormat:     videoResult.Format,
		}
		if err := co.db.Create(&lesson).Error; err != nil {
			if apperrors.IsDuplicate(err) {
				return fail(fmt.Errorf("lesson order %d: %w", lesson.OrderIndex, apperrors.ErrDuplicate))
			}
			return fail(fmt.Errorf("failed to create lesson %d: %v", i+1, err))
		}
	}

	if err := coursesvc.RecomputeTotals(co.db, course); err != nil {
		return fail(fmt.Errorf("failed to compute course totals: %v", err))
	}

	return course, nil
}

// UploadLessonVideo validates and uploads a single lesson video. The
// caller owns the compensation if the subsequent row insert fails.
func (co *Coordinator) UploadLessonVideo(video *multipart.FileHeader) (*storage.UploadResult, error) {
	if err := co.checkVideo(video); err != nil {
		return nil, err
	}
	result, err := co.store.Upload(video, "lessons", "video")
	if err != nil {
		return nil, fmt.Errorf("lesson video: %w (%v)", apperrors.ErrUpload, err)
	}
	return result, nil
}

// DeleteObject removes a stored object, logging failures. Used when a
// lesson row is removed after its media was already persisted.
func (co *Coordinator) DeleteObject(publicID, resourceType string) {
	if publicID == "" {
		return
	}
	if err := co.store.Delete(publicID, resourceType); err != nil {
		log.Printf("[MEDIA] Failed to delete %s object %s: %v", resourceType, publicID, err)
	}
}

// drain runs compensations in reverse order, strictly sequential.
// Compensation failures are logged but never mask the original error.
func (co *Coordinator) drain(compensations []compensation) {
	for i := len(compensations) - 1; i >= 0; i-- {
		if err := compensations[i].undo(); err != nil {
			log.Printf("[MEDIA] Compensation failed (%s): %v", compensations[i].desc, err)
		}
	}
}

func (co *Coordinator) validateFiles(image *multipart.FileHeader, videos []*multipart.FileHeader) error {
	if !allowedFile(image, imageMimeTypes, imageExtensions) {
		return apperrors.NewValidation(map[string]string{"image": "Unsupported image type!"})
	}
	if image.Size > co.maxImageBytes {
		return fmt.Errorf("cover image %s is %d bytes: %w", image.Filename, image.Size, apperrors.ErrFileTooLarge)
	}
	for i, video := range videos {
		if !allowedFile(video, videoMimeTypes, videoExtensions) {
			return apperrors.NewValidation(map[string]string{
				"videos": fmt.Sprintf("Unsupported video type for file %d!", i+1),
			})
		}
		if video.Size > co.maxVideoBytes {
			return fmt.Errorf("video %s is %d bytes: %w", video.Filename, video.Size, apperrors.ErrFileTooLarge)
		}
	}
	return nil
}

func (co *Coordinator) checkVideo(video *multipart.FileHeader) error {
	if video == nil {
		return apperrors.NewValidation(map[string]string{"video": "Video file is required!"})
	}
	if !allowedFile(video, videoMimeTypes, videoExtensions) {
		return apperrors.NewValidation(map[string]string{"video": "Unsupported video type!"})
	}
	if video.Size > co.maxVideoBytes {
		return fmt.Errorf("video %s is %d bytes: %w", video.Filename, video.Size, apperrors.ErrFileTooLarge)
	}
	return nil
}

func allowedFile(file *multipart.FileHeader, mimeTypes, extensions map[string]bool) bool {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0]))
	if mimeTypes[contentType] {
		return true
	}
	return extensions[strings.ToLower(filepath.Ext(file.Filename))]
}
