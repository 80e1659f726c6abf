//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/model"
	"github.com/sakif/openwiki/internal/repository"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	store     *ArticleStore
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("openwiki_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	store, err := Open(s.ctx, connStr)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.store.db.ExecContext(s.ctx, "DELETE FROM saved_articles")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) save(userID, title string, at time.Time) *model.Article {
	article := &model.Article{
		UserID:         userID,
		Title:          title,
		Content:        "content of " + title,
		WikiURL:        "https://it.wikipedia.org/wiki/" + title,
		DateDownloaded: &at,
	}
	s.Require().NoError(s.store.Save(s.ctx, article))
	return article
}

func (s *PostgresIntegrationSuite) TestSave_RejectsIncompleteArticle() {
	article := &model.Article{UserID: "", Title: "", Content: ""}

	err := s.store.Save(s.ctx, article)
	s.ErrorIs(err, apperror.ErrPersistence)
	s.ErrorIs(err, repository.ErrIncompleteArticle)
	s.Empty(article.ID)

	got, err := s.store.FindByUserID(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *PostgresIntegrationSuite) TestSchema_RejectsIncompleteRows() {
	_, err := s.store.db.ExecContext(s.ctx,
		`INSERT INTO saved_articles (id, user_id, title, content) VALUES ('raw', '', '', '')`,
	)
	s.Error(err)
}

func (s *PostgresIntegrationSuite) TestMigrate_Idempotent() {
	s.NoError(s.store.Migrate(s.ctx))
	s.NoError(s.store.Ping(s.ctx))
}

func (s *PostgresIntegrationSuite) TestSave_FindByID() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	saved := s.save("4", "Roma", now)
	s.NotEmpty(saved.ID)

	got, err := s.store.FindByID(s.ctx, saved.ID)
	s.Require().NoError(err)
	s.Equal("4", got.UserID)
	s.Equal("Roma", got.Title)
	s.Equal("https://it.wikipedia.org/wiki/Roma", got.WikiURL)
	s.Require().NotNil(got.DateDownloaded)
	s.True(now.Equal(*got.DateDownloaded))
}

func (s *PostgresIntegrationSuite) TestFindByID_NotFound() {
	_, err := s.store.FindByID(s.ctx, "missing")
	s.ErrorIs(err, apperror.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestFindByUserID_NewestFirst() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.save("4", "Old", base)
	s.save("4", "New", base.Add(time.Hour))
	s.save("9", "Other", base.Add(2*time.Hour))

	got, err := s.store.FindByUserID(s.ctx, "4")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("New", got[0].Title)
	s.Equal("Old", got[1].Title)
}

func (s *PostgresIntegrationSuite) TestFindByUserID_Empty() {
	got, err := s.store.FindByUserID(s.ctx, "nobody")
	s.NoError(err)
	s.NotNil(got)
	s.Empty(got)
}

func (s *PostgresIntegrationSuite) TestDeleteArticle_Ownership() {
	saved := s.save("4", "Roma", time.Now())

	deleted, err := s.store.DeleteArticle(s.ctx, saved.ID, "5")
	s.NoError(err)
	s.False(deleted)

	deleted, err = s.store.DeleteArticle(s.ctx, saved.ID, "4")
	s.NoError(err)
	s.True(deleted)

	deleted, err = s.store.DeleteArticle(s.ctx, saved.ID, "4")
	s.NoError(err)
	s.False(deleted)
}

func (s *PostgresIntegrationSuite) TestUpdateArticle_Ownership() {
	saved := s.save("4", "Roma", time.Now())

	ok, err := s.store.UpdateArticle(s.ctx, &model.Article{
		ID: saved.ID, UserID: "5", Title: "hijacked", Content: "x",
	})
	s.NoError(err)
	s.False(ok)

	ok, err = s.store.UpdateArticle(s.ctx, &model.Article{
		ID: saved.ID, UserID: "4", Title: "Roma (città)", Content: "nuovo", PageID: "77",
	})
	s.NoError(err)
	s.True(ok)

	got, err := s.store.FindByID(s.ctx, saved.ID)
	s.Require().NoError(err)
	s.Equal("Roma (città)", got.Title)
	s.Equal("nuovo", got.Content)
	s.Equal("77", got.PageID)
	s.Equal("4", got.UserID)
}
