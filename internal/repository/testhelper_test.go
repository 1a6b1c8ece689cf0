package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/jobsift/internal/database/migrations"
	"github.com/jmylchreest/jobsift/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// makeTestJob builds a canonical job with sane defaults for tests.
// urlHash must be unique per test database.
func makeTestJob(urlHash, company, title string, firstSeen time.Time) *models.CanonicalJob {
	return &models.CanonicalJob{
		URLHash:            urlHash,
		ContentFingerprint: "fp-" + urlHash,
		Source:             "greenhouse",
		SourceJobID:        "src-" + urlHash,
		Title:              title,
		Company:            company,
		CompanyNormalized:  company,
		URL:                "https://boards.example.com/" + urlHash,
		WorkMode:           models.WorkModeRemote,
		TitleBucket:        models.TitleBucketInclude,
		PostedAtConfidence: models.ConfidenceLow,
		FirstSeenAt:        firstSeen,
		LastSeenAt:         firstSeen,
		TimesSeen:          1,
		Status:             models.JobStatusActive,
		CreatedAt:          firstSeen,
		UpdatedAt:          firstSeen,
	}
}
