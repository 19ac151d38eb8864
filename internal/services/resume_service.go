package services

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"internmatch/internal/models"
	"internmatch/internal/repositories"
	"internmatch/internal/resume"
	"internmatch/internal/storage"
	"internmatch/pkg/rabbitmq"

	"github.com/google/uuid"
)

// ExtractPublisher enqueues resume-extraction jobs for async workers.
type ExtractPublisher interface {
	PublishResumeExtract(job rabbitmq.ExtractJob) error
}

// FieldExtractor turns a resume file into a draft. Implemented by the
// external OCR service client.
type FieldExtractor interface {
	Extract(ctx context.Context, filename, mime string, data []byte) (models.OCRDraft, error)
}

// ResumeService accepts resume uploads, stores them, and runs field
// extraction either inline or through the work queue. The extracted
// draft is only ever staged on the user; merging into the profile
// requires an explicit apply call.
type ResumeService struct {
	userRepo repositories.UserRepository
	store    storage.ObjectStore
	queue    ExtractPublisher // nil: extract inline
	ocr      FieldExtractor   // nil: local text extraction + heuristic parse
}

// NewResumeService creates a ResumeService. queue and ocr may be nil.
func NewResumeService(userRepo repositories.UserRepository, store storage.ObjectStore, queue ExtractPublisher, ocr FieldExtractor) *ResumeService {
	return &ResumeService{
		userRepo: userRepo,
		store:    store,
		queue:    queue,
		ocr:      ocr,
	}
}

// Upload stores the resume file, records it on the user, and triggers
// extraction. When a queue is configured the extraction runs
// asynchronously and Upload reports queued=true with a nil draft.
func (s *ResumeService) Upload(ctx context.Context, userID, filename, mime string, data []byte) (bool, *models.OCRDraft, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, nil, ErrUserNotFound
	}

	key := fmt.Sprintf("resumes/%s/%s%s", userID, uuid.New().String(), path.Ext(filename))
	if err := s.store.Put(ctx, key, mime, data); err != nil {
		return false, nil, fmt.Errorf("failed to store resume: %w", err)
	}

	user.ResumeFile = key
	if err := s.userRepo.Update(user); err != nil {
		return false, nil, fmt.Errorf("failed to update user: %w", err)
	}

	if s.queue != nil {
		job := rabbitmq.ExtractJob{UserID: userID, ObjectKey: key, Mime: mime, Filename: filename}
		if err := s.queue.PublishResumeExtract(job); err != nil {
			return false, nil, fmt.Errorf("failed to queue extraction: %w", err)
		}
		return true, nil, nil
	}

	draft, err := s.Extract(ctx, userID, key, mime, filename)
	if err != nil {
		return false, nil, err
	}
	return false, draft, nil
}

// Extract loads a stored resume, produces a draft and stages it on the
// user. Used both inline and from the queue consumer.
func (s *ResumeService) Extract(ctx context.Context, userID, objectKey, mime, filename string) (*models.OCRDraft, error) {
	data, err := s.store.Get(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load resume: %w", err)
	}

	var draft models.OCRDraft
	if s.ocr != nil {
		draft, err = s.ocr.Extract(ctx, filename, mime, data)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
	} else {
		text, err := resume.ExtractText(mime, data)
		if err != nil {
			return nil, fmt.Errorf("text extraction failed: %w", err)
		}
		draft = resume.ParseDraft(text)
	}

	draft.ExtractedAt = time.Now()
	draft.Source = "resume"

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user.OcrDraft = &draft
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to stage draft: %w", err)
	}

	log.Printf("Staged resume draft for user %s from %s", userID, objectKey)
	return &draft, nil
}
