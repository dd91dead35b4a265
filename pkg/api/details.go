package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DetailField names one of the structured payload slots on a Venture.
type DetailField string

const (
	FieldNicheIdea        DetailField = "niche_idea"
	FieldProductDetails   DetailField = "product_details"
	FieldMarketingDetails DetailField = "marketing_details"
	FieldSalesDetails     DetailField = "sales_details"
)

// DetailFields is the allow-list of writable detail fields.
var DetailFields = []DetailField{
	FieldNicheIdea,
	FieldProductDetails,
	FieldMarketingDetails,
	FieldSalesDetails,
}

// ParseDetailField validates s against the allow-list.
func ParseDetailField(s string) (DetailField, error) {
	for _, f := range DetailFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDetailField, s)
}

// NicheIdea is produced by the discovery stage.
type NicheIdea struct {
	ChosenTopic    string `json:"chosen_topic"`
	TargetAudience string `json:"target_audience"`
	Reasoning      string `json:"reasoning"`
}

// ProductDetails is produced by the production stage.
type ProductDetails struct {
	Title           string   `json:"title"`
	ArtifactPath    string   `json:"ebook_path"`
	Sections        []string `json:"sections"`
	OmittedSections []string `json:"omitted_sections,omitempty"`
}

// MarketingCopy is the landing page copy used by the deployment stage.
type MarketingCopy struct {
	Headline      string   `json:"headline"`
	Subheader     string   `json:"subheader"`
	CTAButtonText string   `json:"cta_button_text"`
	Features      []string `json:"features"`
}

// CopySource records whether marketing copy was generated or defaulted.
type CopySource string

const (
	CopyPrimary  CopySource = "primary"
	CopyFallback CopySource = "fallback"
)

// SalesDetails is produced by the deployment stage.
type SalesDetails struct {
	LandingPageURL string        `json:"landing_page_url"`
	PaymentLinkURL string        `json:"payment_link_url"`
	ProjectName    string        `json:"project_name"`
	Copy           MarketingCopy `json:"copy"`
	CopySource     CopySource    `json:"copy_source"`
}

// DecodeNicheIdea decodes and validates a stored niche_idea document.
func DecodeNicheIdea(raw json.RawMessage) (NicheIdea, error) {
	var n NicheIdea
	if err := decodeDetail(FieldNicheIdea, raw, &n); err != nil {
		return n, err
	}
	if strings.TrimSpace(n.ChosenTopic) == "" {
		return n, &PreconditionError{Field: FieldNicheIdea, Reason: ReasonCorrupt, Err: fmt.Errorf("chosen_topic is empty")}
	}
	return n, nil
}

// DecodeProductDetails decodes a stored product_details document.
func DecodeProductDetails(raw json.RawMessage) (ProductDetails, error) {
	var p ProductDetails
	err := decodeDetail(FieldProductDetails, raw, &p)
	return p, err
}

// DecodeSalesDetails decodes a stored sales_details document.
func DecodeSalesDetails(raw json.RawMessage) (SalesDetails, error) {
	var s SalesDetails
	err := decodeDetail(FieldSalesDetails, raw, &s)
	return s, err
}

func decodeDetail(f DetailField, raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &PreconditionError{Field: f, Reason: ReasonAbsent}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &PreconditionError{Field: f, Reason: ReasonCorrupt, Err: err}
	}
	return nil
}
