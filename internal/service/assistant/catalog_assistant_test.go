package assistant

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"promptcoach/internal/models"
	"promptcoach/internal/storage"
)

func TestCatalogQueries(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	if err := storage.SeedCatalog(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewService(db)
	ctx := context.Background()

	modules, err := svc.ListModules(ctx, models.LanguageES)
	if err != nil {
		t.Fatalf("ListModules: %v", err)
	}
	if len(modules) != 2 {
		t.Fatalf("expected 2 spanish modules, got %d", len(modules))
	}
	if modules[0].Position != 1 || modules[1].Position != 2 {
		t.Fatalf("modules not ordered: %+v", modules)
	}
	for _, m := range modules {
		if m.Language != models.LanguageES {
			t.Fatalf("module of wrong language: %+v", m)
		}
	}

	lessons, err := svc.ListLessons(ctx, modules[0].ID)
	if err != nil {
		t.Fatalf("ListLessons: %v", err)
	}
	if len(lessons) != 3 || lessons[0].Content != "" {
		t.Fatalf("unexpected lessons: %+v", lessons)
	}
	lesson, err := svc.GetLesson(ctx, modules[0].ID, lessons[0].ID)
	if err != nil {
		t.Fatalf("GetLesson: %v", err)
	}
	if lesson.Content == "" {
		t.Fatalf("lesson content missing")
	}
	if _, err := svc.GetLesson(ctx, modules[1].ID, lessons[0].ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("lesson of another module returned: %v", err)
	}
	if _, err := svc.ListLessons(ctx, 9999); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows for unknown module, got %v", err)
	}

	resources, err := svc.ListResources(ctx, models.LanguageEN)
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 4 {
		t.Fatalf("expected 4 english resources, got %d", len(resources))
	}
	res, err := svc.GetResource(ctx, resources[0].ID)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if res.FileName == "" {
		t.Fatalf("resource without file name: %+v", res)
	}
	if _, err := svc.GetModule(ctx, 9999); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows, got %v", err)
	}
}
