package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/model"
	"github.com/sakif/openwiki/internal/repository"
)

// newTestDB opens a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func saveTestArticle(t *testing.T, db *DB, userID, title string) *model.Article {
	t.Helper()
	article := &model.Article{
		UserID:  userID,
		Title:   title,
		Content: "content of " + title,
		PageID:  "42",
		WikiURL: "https://it.wikipedia.org/wiki/" + title,
	}
	if err := db.Save(context.Background(), article); err != nil {
		t.Fatalf("failed to save test article: %v", err)
	}
	return article
}

// =========================================================================
// SAVE / FIND TESTS
// =========================================================================

func TestSave(t *testing.T) {
	db := newTestDB(t)

	article := &model.Article{UserID: "4", Title: "Roma", Content: "Capitale d'Italia"}
	if err := db.Save(context.Background(), article); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if article.ID == "" {
		t.Error("Save() did not set article.ID")
	}
	if article.DateDownloaded == nil || article.DateDownloaded.IsZero() {
		t.Error("Save() did not set article.DateDownloaded")
	}
}

func TestSave_UniqueIDs(t *testing.T) {
	db := newTestDB(t)

	a := saveTestArticle(t, db, "4", "Roma")
	b := saveTestArticle(t, db, "4", "Roma")

	if a.ID == b.ID {
		t.Errorf("two saves produced the same id %q", a.ID)
	}
}

func TestSave_RejectsIncompleteArticle(t *testing.T) {
	tests := []struct {
		name    string
		article model.Article
	}{
		{"all empty", model.Article{}},
		{"no owner", model.Article{Title: "Roma", Content: "x"}},
		{"blank owner", model.Article{UserID: "  ", Title: "Roma", Content: "x"}},
		{"no title", model.Article{UserID: "4", Content: "x"}},
		{"no content", model.Article{UserID: "4", Title: "Roma"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()

			article := tt.article
			err := db.Save(ctx, &article)
			if !errors.Is(err, apperror.ErrPersistence) {
				t.Fatalf("Save() error = %v, want ErrPersistence", err)
			}
			if !errors.Is(err, repository.ErrIncompleteArticle) {
				t.Errorf("Save() error = %v, want ErrIncompleteArticle cause", err)
			}
			if article.ID != "" {
				t.Errorf("Save() assigned id %q to a rejected article", article.ID)
			}

			for _, owner := range []string{"", "  ", "4"} {
				got, err := db.FindByUserID(ctx, owner)
				if err != nil {
					t.Fatalf("FindByUserID(%q) error = %v", owner, err)
				}
				if len(got) != 0 {
					t.Errorf("FindByUserID(%q) returned %d rows, want 0", owner, len(got))
				}
			}
		})
	}
}

func TestSchema_RejectsIncompleteRows(t *testing.T) {
	db := newTestDB(t)

	_, err := db.conn.Exec(
		`INSERT INTO saved_articles (id, user_id, title, content) VALUES ('raw', '', '', '')`,
	)
	if err == nil {
		t.Fatal("insert of a row without owner, title and content succeeded")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	original := &model.Article{
		UserID:   "7",
		Title:    "Milano",
		Content:  "Città",
		ImageURL: "https://upload.wikimedia.org/milano.jpg",
		PageID:   "1234",
		WikiURL:  "https://it.wikipedia.org/wiki/Milano",
	}
	if err := db.Save(ctx, original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := db.FindByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	if got.UserID != original.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, original.UserID)
	}
	if got.Title != original.Title {
		t.Errorf("Title = %q, want %q", got.Title, original.Title)
	}
	if got.Content != original.Content {
		t.Errorf("Content = %q, want %q", got.Content, original.Content)
	}
	if got.ImageURL != original.ImageURL {
		t.Errorf("ImageURL = %q, want %q", got.ImageURL, original.ImageURL)
	}
	if got.PageID != original.PageID {
		t.Errorf("PageID = %q, want %q", got.PageID, original.PageID)
	}
	if got.WikiURL != original.WikiURL {
		t.Errorf("WikiURL = %q, want %q", got.WikiURL, original.WikiURL)
	}
	if got.DateDownloaded == nil {
		t.Fatal("DateDownloaded is nil")
	}
	if diff := got.DateDownloaded.Sub(*original.DateDownloaded); diff > time.Second || diff < -time.Second {
		t.Errorf("DateDownloaded = %v, want about %v", got.DateDownloaded, original.DateDownloaded)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
}

func TestFindByUserID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	saveTestArticle(t, db, "4", "Roma")
	saveTestArticle(t, db, "4", "Napoli")
	saveTestArticle(t, db, "9", "Torino")

	got, err := db.FindByUserID(ctx, "4")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindByUserID() returned %d articles, want 2", len(got))
	}
	for _, a := range got {
		if a.UserID != "4" {
			t.Errorf("FindByUserID(4) returned article owned by %q", a.UserID)
		}
	}
}

func TestFindByUserID_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	first := &model.Article{UserID: "4", Title: "Old", Content: "x", DateDownloaded: &older}
	second := &model.Article{UserID: "4", Title: "New", Content: "y", DateDownloaded: &newer}
	if err := db.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := db.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := db.FindByUserID(ctx, "4")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2", len(got))
	}
	if got[0].Title != "New" || got[1].Title != "Old" {
		t.Errorf("order = [%s %s], want [New Old]", got[0].Title, got[1].Title)
	}
}

func TestFindByUserID_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.FindByUserID(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	// Must be [] not null once encoded as JSON.
	if got == nil {
		t.Error("FindByUserID() returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("FindByUserID() returned %d articles, want 0", len(got))
	}
}

// =========================================================================
// OWNERSHIP TESTS
// =========================================================================

func TestDeleteArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	article := saveTestArticle(t, db, "4", "Roma")

	deleted, err := db.DeleteArticle(ctx, article.ID, "4")
	if err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
	if !deleted {
		t.Error("DeleteArticle() = false, want true")
	}

	_, err = db.FindByID(ctx, article.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete, FindByID() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteArticle_OtherUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	article := saveTestArticle(t, db, "4", "Roma")

	deleted, err := db.DeleteArticle(ctx, article.ID, "5")
	if err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
	if deleted {
		t.Error("DeleteArticle() by non-owner = true, want false")
	}

	if _, err := db.FindByID(ctx, article.ID); err != nil {
		t.Errorf("article should survive a non-owner delete, FindByID() error = %v", err)
	}
}

func TestDeleteArticle_Missing(t *testing.T) {
	db := newTestDB(t)

	deleted, err := db.DeleteArticle(context.Background(), "nonexistent", "4")
	if err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
	if deleted {
		t.Error("DeleteArticle() on missing id = true, want false")
	}
}

func TestDeleteArticle_Twice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	article := saveTestArticle(t, db, "4", "Roma")

	if deleted, _ := db.DeleteArticle(ctx, article.ID, "4"); !deleted {
		t.Fatal("first DeleteArticle() = false, want true")
	}
	deleted, err := db.DeleteArticle(ctx, article.ID, "4")
	if err != nil {
		t.Fatalf("second DeleteArticle() error = %v", err)
	}
	if deleted {
		t.Error("second DeleteArticle() = true, want false")
	}
}

func TestUpdateArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	article := saveTestArticle(t, db, "4", "Roma")
	savedAt := *article.DateDownloaded

	updated := &model.Article{
		ID:       article.ID,
		UserID:   "4",
		Title:    "Roma (città)",
		Content:  "new content",
		ImageURL: "https://upload.wikimedia.org/roma.jpg",
		PageID:   "99",
		WikiURL:  "https://it.wikipedia.org/wiki/Roma_(città)",
	}
	ok, err := db.UpdateArticle(ctx, updated)
	if err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}
	if !ok {
		t.Fatal("UpdateArticle() = false, want true")
	}

	got, err := db.FindByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "Roma (città)" {
		t.Errorf("Title = %q, want %q", got.Title, "Roma (città)")
	}
	if got.Content != "new content" {
		t.Errorf("Content = %q, want %q", got.Content, "new content")
	}
	if got.PageID != "99" {
		t.Errorf("PageID = %q, want %q", got.PageID, "99")
	}
	if got.UserID != "4" {
		t.Errorf("UserID = %q, want unchanged %q", got.UserID, "4")
	}
	if diff := got.DateDownloaded.Sub(savedAt); diff > time.Second || diff < -time.Second {
		t.Errorf("DateDownloaded changed from %v to %v", savedAt, got.DateDownloaded)
	}
}

func TestUpdateArticle_OtherUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	article := saveTestArticle(t, db, "4", "Roma")

	ok, err := db.UpdateArticle(ctx, &model.Article{
		ID:      article.ID,
		UserID:  "5",
		Title:   "hijacked",
		Content: "hijacked",
	})
	if err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}
	if ok {
		t.Error("UpdateArticle() by non-owner = true, want false")
	}

	got, err := db.FindByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "Roma" {
		t.Errorf("Title = %q, want unchanged %q", got.Title, "Roma")
	}
}

func TestUpdateArticle_RejectsEmptyTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	article := saveTestArticle(t, db, "4", "Roma")

	ok, err := db.UpdateArticle(ctx, &model.Article{
		ID: article.ID, UserID: "4", Title: "", Content: "y",
	})
	if !errors.Is(err, apperror.ErrPersistence) {
		t.Fatalf("UpdateArticle() error = %v, want ErrPersistence", err)
	}
	if ok {
		t.Error("UpdateArticle() = true, want false")
	}

	got, err := db.FindByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "Roma" {
		t.Errorf("Title = %q, want it unchanged", got.Title)
	}
}

func TestUpdateArticle_Missing(t *testing.T) {
	db := newTestDB(t)

	ok, err := db.UpdateArticle(context.Background(), &model.Article{
		ID: "nonexistent", UserID: "4", Title: "x", Content: "y",
	})
	if err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}
	if ok {
		t.Error("UpdateArticle() on missing id = true, want false")
	}
}

// =========================================================================
// FAILURE TESTS
// =========================================================================

func TestClosedDB_PersistenceError(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	db.Close()

	err = db.Save(context.Background(), &model.Article{UserID: "4", Title: "x", Content: "y"})
	if !errors.Is(err, apperror.ErrPersistence) {
		t.Errorf("Save() on closed db error = %v, want ErrPersistence", err)
	}

	if err := db.Ping(context.Background()); err == nil {
		t.Error("Ping() on closed db = nil, want error")
	}
}
