package model

// EntityCUSIP is one row of the news-entity to CUSIP reference table.
type EntityCUSIP struct {
	EntityID string `json:"rp_entity_id"`
	CUSIP    string `json:"cusip"`
}

// CompanyName is one row of the CUSIP to company key reference table.
type CompanyName struct {
	CUSIP  string  `json:"cusip"`
	GVKEY  string  `json:"gvkey"`
	Ticker *string `json:"tic,omitempty"`
}

// Link maps a news entity to one linked security and company.
type Link struct {
	EntityID string  `json:"rp_entity_id"`
	CUSIP    string  `json:"cusip"`
	GVKEY    string  `json:"gvkey"`
	Ticker   *string `json:"tic,omitempty"`
}
