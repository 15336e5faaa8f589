// internal/workers/grants/mirror-grant/handler.go
package mirrorgrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	"github.com/step-security-bot/usdr-gost/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	TaskType = "mirror-grant"
)

var (
	ErrMirrorRequestFailed = errors.New("SEARCH_MIRROR_REQUEST_FAILED")
	ErrMirrorRejected      = errors.New("SEARCH_MIRROR_REJECTED")
)

// document is the searchable projection of a grant. raw_body is left out.
type document struct {
	GrantID             string  `json:"grant_id"`
	GrantNumber         string  `json:"grant_number,omitempty"`
	AgencyCode          string  `json:"agency_code,omitempty"`
	AwardCeiling        *int64  `json:"award_ceiling,omitempty"`
	AwardFloor          *int64  `json:"award_floor,omitempty"`
	CostSharing         string  `json:"cost_sharing"`
	Title               string  `json:"title"`
	CFDAList            string  `json:"cfda_list"`
	OpenDate            string  `json:"open_date"`
	CloseDate           string  `json:"close_date"`
	OpportunityCategory *string `json:"opportunity_category,omitempty"`
	Description         string  `json:"description,omitempty"`
	EligibilityCodes    string  `json:"eligibility_codes"`
	OpportunityStatus   string  `json:"opportunity_status"`
}

func toDocument(g *models.Grant) document {
	return document{
		GrantID:             g.GrantID,
		GrantNumber:         g.GrantNumber,
		AgencyCode:          g.AgencyCode,
		AwardCeiling:        g.AwardCeiling,
		AwardFloor:          g.AwardFloor,
		CostSharing:         g.CostSharing,
		Title:               g.Title,
		CFDAList:            g.CFDAList,
		OpenDate:            g.OpenDate,
		CloseDate:           g.CloseDate,
		OpportunityCategory: g.OpportunityCategory,
		Description:         g.Description,
		EligibilityCodes:    g.EligibilityCodes,
		OpportunityStatus:   g.OpportunityStatus,
	}
}

// Indexer copies persisted grants into a search index, keyed by grant_id so
// repeated writes replace the document.
type Indexer struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewIndexer(config *Config, client *elasticsearch.Client, log logger.Logger) *Indexer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Indexer{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (i *Indexer) Index(ctx context.Context, grant *models.Grant) error {
	body, err := json.Marshal(toDocument(grant))
	if err != nil {
		return fmt.Errorf("%w: marshal document: %v", ErrMirrorRequestFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.config.Timeout)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      i.config.Index,
		DocumentID: grant.GrantID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorRequestFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrMirrorRejected, res.String())
	}

	i.logger.Debug("grant mirrored to search index", map[string]interface{}{
		"grantId": grant.GrantID,
		"index":   i.config.Index,
	})
	return nil
}
