package projectstore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "projects.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ConfirmCreatesEverything(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.Confirm(ctx, ConfirmInput{
		OwnerID:        "usr_1",
		ArtifactID:     "art_1",
		Title:          "팀 매칭 플랫폼",
		Summary:        "사이드 프로젝트 팀 빌딩",
		Mode:           "offline",
		Difficulty:     "hard",
		Capacity:       4,
		TechStackNames: []string{"Go", "React", " ", "Go"},
		PositionNeeds: []PositionNeedInput{
			{Position: "BACKEND", Headcount: 2},
			{Position: "DESIGN"},
			{Position: ""},
		},
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("project id empty")
	}
	if p.Mode != "OFFLINE" || p.Difficulty != "HARD" || p.Status != "PLANNING" {
		t.Fatalf("got mode=%q difficulty=%q status=%q", p.Mode, p.Difficulty, p.Status)
	}

	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatalf("project missing")
	}
	if len(got.TechStacks) != 2 {
		t.Fatalf("len(TechStacks)=%d, want 2 (deduped, blanks dropped)", len(got.TechStacks))
	}
	if len(got.PositionNeeds) != 2 {
		t.Fatalf("len(PositionNeeds)=%d, want 2 (blank dropped)", len(got.PositionNeeds))
	}
	if got.PositionNeeds[1].Headcount != 1 {
		t.Fatalf("Headcount=%d, want default 1", got.PositionNeeds[1].Headcount)
	}
	if len(got.KanbanColumns) != 3 {
		t.Fatalf("len(KanbanColumns)=%d, want 3", len(got.KanbanColumns))
	}
	for i, want := range []string{"TODO", "IN_PROGRESS", "DONE"} {
		if got.KanbanColumns[i].Title != want {
			t.Fatalf("KanbanColumns[%d]=%q, want %q", i, got.KanbanColumns[i].Title, want)
		}
	}
}

func TestStore_ConfirmDefaults(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.Confirm(ctx, ConfirmInput{OwnerID: "usr_1", Title: "t"})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Mode != "ONLINE" || p.Difficulty != "MEDIUM" || p.Capacity != 1 || p.OriginalLang != "ko" {
		t.Fatalf("got=%+v, want defaults", p)
	}
}

func TestStore_ConfirmRejectsMissingFields(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Confirm(ctx, ConfirmInput{Title: "t"}); err == nil {
		t.Fatalf("got nil error, want missing owner id")
	}
	if _, err := s.Confirm(ctx, ConfirmInput{OwnerID: "u"}); err == nil {
		t.Fatalf("got nil error, want missing title")
	}
}

func TestStore_SharedTechStacksAcrossProjects(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	p1, err := s.Confirm(ctx, ConfirmInput{OwnerID: "u", Title: "a", TechStackNames: []string{"Go"}})
	if err != nil {
		t.Fatalf("Confirm a: %v", err)
	}
	p2, err := s.Confirm(ctx, ConfirmInput{OwnerID: "u", Title: "b", TechStackNames: []string{"Go"}})
	if err != nil {
		t.Fatalf("Confirm b: %v", err)
	}
	if p1.TechStacks[0].ID != p2.TechStacks[0].ID {
		t.Fatalf("tech stack ids differ: %d vs %d, want shared row", p1.TechStacks[0].ID, p2.TechStacks[0].ID)
	}
}

func TestStore_ListNewestFirstAndClamp(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if _, err := s.Confirm(ctx, ConfirmInput{OwnerID: "u", Title: title}); err != nil {
			t.Fatalf("Confirm %s: %v", title, err)
		}
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list)=%d, want 2", len(list))
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List default: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all)=%d, want 3", len(all))
	}
	if all[0].CreatedAtUnixMs < all[1].CreatedAtUnixMs || all[1].CreatedAtUnixMs < all[2].CreatedAtUnixMs {
		t.Fatalf("list not newest-first")
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("got=%+v, want nil", missing)
	}
}
