// internal/workers/grants/normalize-grant/handler.go
package normalizegrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	"github.com/step-security-bot/usdr-gost/internal/common/validation"
	"github.com/step-security-bot/usdr-gost/internal/models"
)

const (
	TaskType = "normalize-grant"
)

var schema = validation.MustCompile(payloadSchema)

// Normalizer turns a queue message body into a store-ready grant. It has no
// side effects other than logging, so it is safe to retry.
type Normalizer struct {
	dates  *DateNormalizer
	logger logger.Logger
}

func NewNormalizer(config *Config, log logger.Logger) (*Normalizer, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	dates, err := NewDateNormalizer(config.DateFormats, log)
	if err != nil {
		return nil, err
	}
	return &Normalizer{dates: dates, logger: log}, nil
}

// Normalize parses body and maps it to a Grant. Payload problems return a
// PARSE_ERROR; unrecognized dates return a DATE_FORMAT_ERROR.
func (n *Normalizer) Normalize(body string) (*models.Grant, error) {
	payload, err := n.decode(body)
	if err != nil {
		return nil, err
	}

	grantID := idString(payload.OpportunityID)
	if grantID == "" {
		grantID = idString(payload.GrantID)
	}
	if grantID == "" {
		return nil, apperrors.NewParseError("payload has no OpportunityId or grant_id", nil)
	}

	openDate, err := n.dates.Normalize(deref(payload.PostDate))
	if err != nil {
		return nil, err
	}

	closeInput := deref(payload.CloseDate)
	if closeInput == "" {
		closeInput = DefaultCloseDate
	}
	closeDate, err := n.dates.Normalize(closeInput)
	if err != nil {
		return nil, err
	}

	grant := &models.Grant{
		GrantID:           grantID,
		GrantNumber:       deref(payload.OpportunityNumber),
		AgencyCode:        deref(payload.AgencyCode),
		AwardCeiling:      wholeNumber(payload.AwardCeiling),
		AwardFloor:        wholeNumber(payload.AwardFloor),
		CostSharing:       costSharing(payload.CostSharingOrMatchingRequirement),
		Title:             deref(payload.OpportunityTitle),
		CFDAList:          strings.Join(payload.CFDANumbers, ", "),
		OpenDate:          openDate,
		CloseDate:         closeDate,
		Description:       deref(payload.Description),
		EligibilityCodes:  strings.Join(payload.EligibleApplicants, " "),
		Status:            models.GrantStatusInbox,
		OpportunityStatus: models.GrantOpportunityStatusPosted,
		Notes:             models.GrantNotesAutoInserted,
		SearchTerms:       models.GrantSearchTermsDefault,
		ReviewerName:      models.GrantReviewerNone,
		RawBody:           body,
	}
	if category, ok := models.OpportunityCategories[deref(payload.OpportunityCategory)]; ok {
		grant.OpportunityCategory = &category
	}

	n.logger.Debug("grant normalized", map[string]interface{}{
		"grantId":   grant.GrantID,
		"openDate":  grant.OpenDate,
		"closeDate": grant.CloseDate,
	})
	return grant, nil
}

func (n *Normalizer) decode(body string) (*Payload, error) {
	// the schema loader and the decoder both stop after the first value
	if !json.Valid([]byte(body)) {
		return nil, apperrors.NewParseError("malformed JSON payload", nil)
	}

	result, err := schema.ValidateBytes([]byte(body))
	if err != nil {
		return nil, apperrors.NewParseError("malformed JSON payload", err)
	}
	if !result.Valid {
		return nil, apperrors.NewParseError(fmt.Sprintf("payload does not match schema: %s", result.Summary()), nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var payload Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, apperrors.NewParseError("decode payload", err)
	}
	return &payload, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// idString accepts string or integer identifiers. Zero values count as absent.
func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		if id.String() == "0" {
			return ""
		}
		return id.String()
	default:
		return ""
	}
}

// wholeNumber returns a positive whole number from a string or JSON number.
// Non-numeric, fractional, zero and negative values are absent. Unlike a
// leading-digits parse, "100.5" is absent rather than 100.
func wholeNumber(v interface{}) *int64 {
	var raw string
	switch n := v.(type) {
	case string:
		raw = strings.TrimSpace(n)
	case json.Number:
		raw = n.String()
	default:
		return nil
	}
	if raw == "" {
		return nil
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if i <= 0 {
			return nil
		}
		return &i
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return nil
	}
	i := int64(f)
	return &i
}

// costSharing applies loose truthiness: false, "", 0 and null mean "No".
func costSharing(v interface{}) string {
	switch b := v.(type) {
	case nil:
		return models.CostSharingNo
	case bool:
		if b {
			return models.CostSharingYes
		}
	case string:
		if b != "" {
			return models.CostSharingYes
		}
	case json.Number:
		if f, err := b.Float64(); err == nil && f != 0 {
			return models.CostSharingYes
		}
	default:
		return models.CostSharingYes
	}
	return models.CostSharingNo
}
