package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/testutil"
	"study_assistant_backend/internal/util"
	"testing"
)

func newMaterialService(t *testing.T) (*MaterialService, *repository.MaterialRepository, *memStorage, *noopEnqueuer) {
	t.Helper()
	repo := repository.NewMaterialRepository(testutil.DB(t))
	storage := newMemStorage()
	enq := &noopEnqueuer{}
	return NewMaterialService(repo, storage, enq), repo, storage, enq
}

func upload(t *testing.T, s *MaterialService, owner uint) *UploadResult {
	t.Helper()
	pdf := buildPDF("Chapter one")
	res, err := s.Upload(context.Background(), UploadInput{
		OwnerID:  owner,
		Filename: "notes/chapter1.pdf",
		Subject:  " Math ",
		Size:     int64(len(pdf)),
		Reader:   bytes.NewReader(pdf),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return res
}

func TestUploadStoresAndEnqueues(t *testing.T) {
	s, repo, storage, enq := newMaterialService(t)

	res := upload(t, s, 3)
	m := res.Material
	if m.Title != "chapter1.pdf" || m.Subject != "Math" || !strings.HasSuffix(m.StorageKey, ".pdf") {
		t.Fatalf("unexpected material: %+v", m)
	}
	if _, ok := storage.objects[m.StorageKey]; !ok {
		t.Fatalf("file was not stored under %q", m.StorageKey)
	}
	if len(enq.calls) != 1 || enq.calls[0] != m.ID || res.Job == nil {
		t.Fatalf("analysis should be queued once, calls = %v", enq.calls)
	}
	if ok, _ := repo.HasAccess(3, m.ID); !ok {
		t.Fatalf("owner should have access")
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	s, _, storage, _ := newMaterialService(t)
	_, err := s.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Filename: "image.png",
		Reader:   strings.NewReader("\x89PNG\r\n\x1a\n0000000000"),
	})
	if !errors.Is(err, util.ErrInvalidFileType) {
		t.Fatalf("err = %v, want ErrInvalidFileType", err)
	}
	if len(storage.objects) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestAuthorize(t *testing.T) {
	s, _, _, _ := newMaterialService(t)
	m := upload(t, s, 1).Material

	if _, err := s.Authorize(2, model.Student, m.ID); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if _, err := s.Authorize(2, model.Admin, m.ID); err != nil {
		t.Fatalf("admin should bypass access checks: %v", err)
	}
	if _, err := s.Authorize(1, model.Student, 999); !errors.Is(err, util.ErrMaterialNotFound) {
		t.Fatalf("err = %v, want ErrMaterialNotFound", err)
	}
}

func TestDeleteAbortsOnStorageError(t *testing.T) {
	s, repo, storage, _ := newMaterialService(t)
	m := upload(t, s, 1).Material

	storage.deleteErr = errors.New("permission denied by bucket policy")
	err := s.Delete(context.Background(), 1, model.Student, m.ID)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if _, err := repo.FindByID(m.ID); err != nil {
		t.Fatalf("material should still exist: %v", err)
	}
}

func TestDeleteProceedsWhenObjectMissing(t *testing.T) {
	s, repo, storage, _ := newMaterialService(t)
	m := upload(t, s, 1).Material

	delete(storage.objects, m.StorageKey)
	if err := s.Delete(context.Background(), 1, model.Student, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(m.ID); err == nil {
		t.Fatalf("material should be gone")
	}
}

func TestUpdateMetadataRequiresAccess(t *testing.T) {
	s, _, _, _ := newMaterialService(t)
	m := upload(t, s, 1).Material

	if _, err := s.UpdateMetadata(2, model.Student, m.ID, "x", ""); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	updated, err := s.UpdateMetadata(1, model.Student, m.ID, " Renamed ", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Subject != "Math" {
		t.Fatalf("unexpected material: %+v", updated)
	}
}
