package policy

import (
	"testing"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		event models.ChangeEvent
		want  []models.InvalidationTarget
	}{
		{
			name:  "post with slug",
			event: models.ChangeEvent{Type: "post", Slug: "hello"},
			want: []models.InvalidationTarget{
				models.Path("/blog/hello"),
				models.Path("/"),
				models.Tag("post"),
				models.Tag("post:hello"),
			},
		},
		{
			name:  "post without slug",
			event: models.ChangeEvent{Type: "post"},
			want: []models.InvalidationTarget{
				models.Path("/"),
				models.Tag("post"),
			},
		},
		{
			name:  "settings",
			event: models.ChangeEvent{Type: "settings"},
			want: []models.InvalidationTarget{
				models.LayoutPath("/"),
				models.Tag("settings"),
			},
		},
		{
			name:  "settings ignores slug",
			event: models.ChangeEvent{Type: "settings", Slug: "site"},
			want: []models.InvalidationTarget{
				models.LayoutPath("/"),
				models.Tag("settings"),
			},
		},
		{
			name:  "author",
			event: models.ChangeEvent{Type: "author", Slug: "jane"},
			want: []models.InvalidationTarget{
				models.Path("/"),
				models.Tag("post"),
			},
		},
		{
			name:  "category",
			event: models.ChangeEvent{Type: "category"},
			want: []models.InvalidationTarget{
				models.Path("/"),
				models.Tag("post"),
			},
		},
		{
			name:  "unknown type",
			event: models.ChangeEvent{Type: "links", Slug: "ignored"},
			want:  []models.InvalidationTarget{models.Tag("links")},
		},
		{
			name:  "type names are case sensitive",
			event: models.ChangeEvent{Type: "Post", Slug: "hello"},
			want:  []models.InvalidationTarget{models.Tag("Post")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.event)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_UnknownTypesNeverTouchPaths(t *testing.T) {
	for _, docType := range []string{"links", "page", "sanity.imageAsset", "x", "post.draft"} {
		targets := Resolve(models.ChangeEvent{Type: docType, Slug: "s"})

		if len(targets) != 1 {
			t.Fatalf("Resolve(%q) returned %d targets, want 1", docType, len(targets))
		}
		if targets[0] != models.Tag(docType) {
			t.Errorf("Resolve(%q) = %v, want tag %q", docType, targets[0], docType)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	events := []models.ChangeEvent{
		{Type: "post", Slug: "a"},
		{Type: "post"},
		{Type: "settings"},
		{Type: "author"},
		{Type: "unknown"},
	}

	for _, event := range events {
		first := Resolve(event)
		second := Resolve(event)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Resolve(%+v) not deterministic (-first +second):\n%s", event, diff)
		}
	}
}

func TestResolve_NoDuplicates(t *testing.T) {
	for _, docType := range KnownTypes() {
		targets := Resolve(models.ChangeEvent{Type: docType, Slug: "slug"})

		seen := make(map[models.InvalidationTarget]bool)
		for _, target := range targets {
			if seen[target] {
				t.Errorf("Resolve(%q) emitted duplicate target %v", docType, target)
			}
			seen[target] = true
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []models.InvalidationTarget{
		models.Tag("post"),
		models.Path("/"),
		models.Tag("post"),
		models.LayoutPath("/"),
		models.Path("/"),
	}
	want := []models.InvalidationTarget{
		models.Tag("post"),
		models.Path("/"),
		models.LayoutPath("/"),
	}

	if diff := cmp.Diff(want, dedupe(in)); diff != "" {
		t.Errorf("dedupe() mismatch (-want +got):\n%s", diff)
	}
}

func TestKnownTypes(t *testing.T) {
	want := []string{"author", "category", "post", "settings"}
	if diff := cmp.Diff(want, KnownTypes()); diff != "" {
		t.Errorf("KnownTypes() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsKnownType(t *testing.T) {
	for _, known := range KnownTypes() {
		if !IsKnownType(known) {
			t.Errorf("IsKnownType(%q) = false, want true", known)
		}
	}
	for _, unknown := range []string{"product", "", "Post"} {
		if IsKnownType(unknown) {
			t.Errorf("IsKnownType(%q) = true, want false", unknown)
		}
	}
}
