package models

// Grant is the canonical, store-ready representation of a grant opportunity.
// Pointer fields are nil when the source omitted or could not supply a value.
type Grant struct {
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
	Status              string  `json:"status"`
	OpportunityStatus   string  `json:"opportunity_status"`
	Notes               string  `json:"notes"`
	SearchTerms         string  `json:"search_terms"`
	ReviewerName        string  `json:"reviewer_name"`
	RawBody             string  `json:"raw_body"`
}

// Ingestion defaults applied to every freshly normalized grant.
const (
	GrantStatusInbox             = "inbox"
	GrantOpportunityStatusPosted = "posted"
	GrantNotesAutoInserted       = "auto-inserted by script"
	GrantSearchTermsDefault      = "[in title/desc]+"
	GrantReviewerNone            = "none"
)

// Cost sharing values.
const (
	CostSharingYes = "Yes"
	CostSharingNo  = "No"
)

// OpportunityCategories maps single-letter vendor codes to category names.
var OpportunityCategories = map[string]string{
	"C": "Continuation",
	"D": "Discretionary",
	"E": "Earmark",
	"M": "Mandatory",
	"O": "Other",
}
