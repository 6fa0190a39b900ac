package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

type repoFake struct {
	created        *domain.Document
	createErr      error
	doc            *domain.Document
	getErr         error
	statusChanges  []domain.DocumentStatus
	statusErrMsgs  []string
	updateErr      map[domain.DocumentStatus]error
	classification *domain.Classification
	saveClsErr     error
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.created = doc
	return f.createErr
}

func (f *repoFake) GetByID(_ context.Context, _ string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusChanges = append(f.statusChanges, status)
	f.statusErrMsgs = append(f.statusErrMsgs, errMessage)
	return f.updateErr[status]
}

func (f *repoFake) SaveClassification(_ context.Context, _ string, cls domain.Classification) error {
	f.classification = &cls
	return f.saveClsErr
}

type storageFake struct {
	savedKey string
	saved    []byte
	saveErr  error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedKey = key
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved = b
	return nil
}

func (f *storageFake) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(f.saved))), nil
}

type queueFake struct {
	publishedIDs []string
	publishErr   error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.publishedIDs = append(f.publishedIDs, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

func TestUploadStoresPersistsAndPublishes(t *testing.T) {
	repo := &repoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "Q3 report.pdf", "application/pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("document id not assigned")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if string(storage.saved) != "content" {
		t.Fatalf("body not stored: %q", storage.saved)
	}
	if !strings.HasPrefix(storage.savedKey, doc.ID+"_") {
		t.Fatalf("storage key must embed the document id: %q", storage.savedKey)
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatalf("document metadata not persisted")
	}
	if len(queue.publishedIDs) != 1 || queue.publishedIDs[0] != doc.ID {
		t.Fatalf("ingest event not published: %v", queue.publishedIDs)
	}
}

func TestUploadRejectsEmptyFilename(t *testing.T) {
	uc := NewIngestDocumentUseCase(&repoFake{}, &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), "  ", "text/plain", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadStorageFailureSkipsRepoAndQueue(t *testing.T) {
	repo := &repoFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, &storageFake{saveErr: errors.New("disk full")}, queue)

	if _, err := uc.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected storage error to surface")
	}
	if repo.created != nil {
		t.Fatalf("metadata must not be written after a storage failure")
	}
	if len(queue.publishedIDs) != 0 {
		t.Fatalf("no event must be published after a storage failure")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"annual report 2025.pdf", "annual_report_2025.pdf"},
		{"../../etc/passwd", "passwd"},
		{"отчёт.xlsx", "_____.xlsx"},
		{"plain.txt", "plain.txt"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
