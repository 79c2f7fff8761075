package models

// CampaignDraft is the approved copy handed to the campaign platform.
type CampaignDraft struct {
	Segment Segment
	Month   string
	Subject string
	Body    string // plain text as approved
}

// CampaignRef identifies a campaign created on the platform. The campaign
// is only staged, never sent.
type CampaignRef struct {
	ID    string `json:"id"`
	WebID int64  `json:"web_id,omitempty"`
	Title string `json:"title"`
}
