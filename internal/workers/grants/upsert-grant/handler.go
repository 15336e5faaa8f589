// internal/workers/grants/upsert-grant/handler.go
package upsertgrant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	"github.com/step-security-bot/usdr-gost/internal/models"
)

const (
	TaskType = "upsert-grant"
)

// columns lists every grants column written by Upsert, in argument order.
// grant_id is the conflict key; the rest are replaced on conflict.
var columns = []string{
	"grant_id",
	"grant_number",
	"agency_code",
	"award_ceiling",
	"award_floor",
	"cost_sharing",
	"title",
	"cfda_list",
	"open_date",
	"close_date",
	"opportunity_category",
	"description",
	"eligibility_codes",
	"status",
	"opportunity_status",
	"notes",
	"search_terms",
	"reviewer_name",
	"raw_body",
}

var upsertQuery = buildUpsertQuery()

func buildUpsertQuery() string {
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col == "grant_id" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updates = append(updates, "updated_at = now()")

	return fmt.Sprintf(
		"INSERT INTO grants (%s) VALUES (%s) ON CONFLICT (grant_id) DO UPDATE SET %s",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

// Repository writes grants with a single native upsert statement. It is safe
// for concurrent use; writes to the same grant_id are serialized by
// PostgreSQL's conflict handling.
type Repository struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

func NewRepository(config *Config, db *sql.DB, log logger.Logger) *Repository {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Repository{
		db:      db,
		timeout: config.Timeout,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Upsert inserts grant or replaces every mutable column of the existing row
// and refreshes updated_at. Any driver failure is a PERSISTENCE_ERROR; no
// retry is attempted here.
func (r *Repository) Upsert(ctx context.Context, grant *models.Grant) error {
	if grant == nil || grant.GrantID == "" {
		return apperrors.NewPersistenceError("", fmt.Errorf("grant_id is required"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, err := r.db.ExecContext(ctx, upsertQuery,
		grant.GrantID,
		nullString(grant.GrantNumber),
		nullString(grant.AgencyCode),
		nullInt64(grant.AwardCeiling),
		nullInt64(grant.AwardFloor),
		grant.CostSharing,
		grant.Title,
		grant.CFDAList,
		grant.OpenDate,
		grant.CloseDate,
		nullStringPtr(grant.OpportunityCategory),
		nullString(grant.Description),
		grant.EligibilityCodes,
		grant.Status,
		grant.OpportunityStatus,
		grant.Notes,
		grant.SearchTerms,
		grant.ReviewerName,
		grant.RawBody,
	)
	if err != nil {
		return apperrors.NewPersistenceError(grant.GrantID, err)
	}

	r.logger.Debug("grant upserted", map[string]interface{}{
		"grantId": grant.GrantID,
	})
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
