package repository

import (
	"errors"
	"study_assistant_backend/internal/testutil"
	"testing"

	"gorm.io/gorm"
)

func TestMaterialAccessAndDelete(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMaterialRepository(db)
	topics := NewTopicRepository(db)

	m := seedMaterial(t, db, 5, "a.pdf")
	seedMaterial(t, db, 6, "b.pdf")

	ok, err := repo.HasAccess(5, m.ID)
	if err != nil || !ok {
		t.Fatalf("owner should have access: %v", err)
	}
	mine, _ := repo.FindAccessible(5)
	if len(mine) != 1 || mine[0].ID != m.ID {
		t.Fatalf("unexpected accessible materials: %+v", mine)
	}

	if err := topics.ReplaceForMaterial(m.ID, topicSet("Variables")); err != nil {
		t.Fatalf("seed topics: %v", err)
	}
	if err := repo.Delete(m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.FindByID(m.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if n, _ := topics.CountByMaterial(m.ID); n != 0 {
		t.Fatalf("topics should be removed with the material")
	}
	if ok, _ := repo.HasAccess(5, m.ID); ok {
		t.Fatalf("access row should be removed")
	}
}

func TestUpdateMetadataKeepsBlankFields(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMaterialRepository(db)
	m := seedMaterial(t, db, 1, "a.pdf")

	if err := repo.UpdateMetadata(m.ID, "New title", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.FindByID(m.ID)
	if got.Title != "New title" || got.Subject != "python" {
		t.Fatalf("unexpected material: %+v", got)
	}
}
