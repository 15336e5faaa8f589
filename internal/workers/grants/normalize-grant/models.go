// internal/workers/grants/normalize-grant/models.go
package normalizegrant

// Payload is the vendor grant opportunity object carried in a queue message.
// Fields whose JSON type varies between producers are left as interface{}
// and decoded with UseNumber.
type Payload struct {
	OpportunityID                    interface{} `json:"OpportunityId"`
	GrantID                          interface{} `json:"grant_id"`
	OpportunityNumber                *string     `json:"OpportunityNumber"`
	AgencyCode                       *string     `json:"AgencyCode"`
	AwardCeiling                     interface{} `json:"AwardCeiling"`
	AwardFloor                       interface{} `json:"AwardFloor"`
	CostSharingOrMatchingRequirement interface{} `json:"CostSharingOrMatchingRequirement"`
	OpportunityTitle                 *string     `json:"OpportunityTitle"`
	CFDANumbers                      []string    `json:"CFDANumbers"`
	PostDate                         *string     `json:"PostDate"`
	CloseDate                        *string     `json:"CloseDate"`
	OpportunityCategory              *string     `json:"OpportunityCategory"`
	Description                      *string     `json:"Description"`
	EligibleApplicants               []string    `json:"EligibleApplicants"`
}

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "OpportunityId": {"type": ["string", "integer", "null"]},
    "grant_id": {"type": ["string", "integer", "null"]},
    "OpportunityNumber": {"type": ["string", "null"]},
    "AgencyCode": {"type": ["string", "null"]},
    "AwardCeiling": {"type": ["string", "number", "null"]},
    "AwardFloor": {"type": ["string", "number", "null"]},
    "OpportunityTitle": {"type": ["string", "null"]},
    "CFDANumbers": {"type": ["array", "null"], "items": {"type": "string"}},
    "PostDate": {"type": ["string", "null"]},
    "CloseDate": {"type": ["string", "null"]},
    "OpportunityCategory": {"type": ["string", "null"]},
    "Description": {"type": ["string", "null"]},
    "EligibleApplicants": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`
