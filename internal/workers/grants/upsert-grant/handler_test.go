// internal/workers/grants/upsert-grant/handler_test.go
package upsertgrant

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	"github.com/step-security-bot/usdr-gost/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestRepository(t *testing.T, db *sql.DB) *Repository {
	return NewRepository(&Config{Timeout: time.Second}, db, logger.NewTestLogger(t))
}

func createTestGrant(id, title string) *models.Grant {
	ceiling := int64(5000)
	category := "Discretionary"
	return &models.Grant{
		GrantID:             id,
		GrantNumber:         "HHS-2024-001",
		AwardCeiling:        &ceiling,
		CostSharing:         models.CostSharingYes,
		Title:               title,
		CFDAList:            "93.569",
		OpenDate:            "2024-01-15",
		CloseDate:           "2100-01-01",
		OpportunityCategory: &category,
		EligibilityCodes:    "00 25",
		Status:              models.GrantStatusInbox,
		OpportunityStatus:   models.GrantOpportunityStatusPosted,
		Notes:               models.GrantNotesAutoInserted,
		SearchTerms:         models.GrantSearchTermsDefault,
		ReviewerName:        models.GrantReviewerNone,
		RawBody:             `{"OpportunityId":"` + id + `"}`,
	}
}

func expectedArgs(g *models.Grant) []driver.Value {
	return []driver.Value{
		g.GrantID,
		g.GrantNumber,
		nil, // agency_code
		*g.AwardCeiling,
		nil, // award_floor
		g.CostSharing,
		g.Title,
		g.CFDAList,
		g.OpenDate,
		g.CloseDate,
		*g.OpportunityCategory,
		nil, // description
		g.EligibilityCodes,
		g.Status,
		g.OpportunityStatus,
		g.Notes,
		g.SearchTerms,
		g.ReviewerName,
		g.RawBody,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestUpsertQuery_Shape(t *testing.T) {
	assert.Contains(t, upsertQuery, "INSERT INTO grants (grant_id, grant_number,")
	assert.Contains(t, upsertQuery, "VALUES ($1, $2,")
	assert.Contains(t, upsertQuery, "$19)")
	assert.Contains(t, upsertQuery, "ON CONFLICT (grant_id) DO UPDATE SET grant_number = EXCLUDED.grant_number")
	assert.Contains(t, upsertQuery, "raw_body = EXCLUDED.raw_body, updated_at = now()")
	assert.NotContains(t, upsertQuery, "grant_id = EXCLUDED.grant_id")
}

func TestRepository_Upsert_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	grant := createTestGrant("X1", "Grant A")
	mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
		WithArgs(expectedArgs(grant)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = createTestRepository(t, db).Upsert(context.Background(), grant)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Upsert_SameIDTwice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	first := createTestGrant("X1", "Grant A")
	second := createTestGrant("X1", "Grant A (amended)")

	mock.ExpectExec(`INSERT INTO grants .* ON CONFLICT \(grant_id\) DO UPDATE`).
		WithArgs(expectedArgs(first)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO grants .* ON CONFLICT \(grant_id\) DO UPDATE`).
		WithArgs(expectedArgs(second)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := createTestRepository(t, db)
	require.NoError(t, repo.Upsert(context.Background(), first))
	require.NoError(t, repo.Upsert(context.Background(), second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Error Handling Tests
// ==========================

func TestRepository_Upsert_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	driverErr := errors.New("pq: connection refused")
	mock.ExpectExec(`INSERT INTO grants`).WillReturnError(driverErr)

	err = createTestRepository(t, db).Upsert(context.Background(), createTestGrant("X1", "Grant A"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.ErrorIs(t, err, driverErr)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.True(t, stdErr.Retryable)
	assert.Equal(t, "X1", stdErr.Metadata["grantId"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Upsert_MissingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := createTestRepository(t, db)
	assert.ErrorIs(t, repo.Upsert(context.Background(), nil), apperrors.ErrPersistence)
	assert.ErrorIs(t, repo.Upsert(context.Background(), createTestGrant("", "x")), apperrors.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Upsert_CancelledContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO grants`).
		WillDelayFor(time.Second).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = createTestRepository(t, db).Upsert(ctx, createTestGrant("X1", "Grant A"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}
