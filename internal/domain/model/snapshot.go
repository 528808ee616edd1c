package model

import "errors"

// ErrResultExists is returned on a second result write for the same job.
var ErrResultExists = errors.New("result already written")

// ErrResultNotReady is returned when a job's result has not been written yet.
var ErrResultNotReady = errors.New("result not ready")

// ContactInfo holds contact details extracted from a site.
type ContactInfo struct {
	PhoneNumber  *string `json:"phone_number,omitempty"`
	SupportEmail *string `json:"support_email,omitempty"`
	Address      *string `json:"address,omitempty"`
}

// SocialProfile is a single social network profile link.
type SocialProfile struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Feature is a named product capability.
type Feature struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// PricingPlan describes one pricing tier.
type PricingPlan struct {
	Plan        string   `json:"plan"`
	Amount      *string  `json:"amount,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	Period      *string  `json:"period,omitempty"`
	Description []string `json:"description,omitempty"`
	IsFree      *bool    `json:"is_free,omitempty"`
}

// MetaKeysInfo holds SEO metadata taken from the page head.
type MetaKeysInfo struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	H1          *string `json:"h1,omitempty"`
}

// ProductSnapshot is the structured extraction result for a scraped site.
// All fields are best-effort; absent data is omitted rather than zeroed.
type ProductSnapshot struct {
	ProductName *string `json:"product_name,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	Website     *string `json:"website,omitempty"`

	Description *string `json:"description,omitempty"`
	Overview    *string `json:"overview,omitempty"`

	FoundingYear *int    `json:"founding_year,omitempty"`
	HQLocation   *string `json:"hq_location,omitempty"`
	Industry     []string `json:"industry,omitempty"`

	Contact     *ContactInfo    `json:"contact,omitempty"`
	SocialLinks []SocialProfile `json:"social_links,omitempty"`

	Features     []Feature     `json:"features,omitempty"`
	PricingPlans []PricingPlan `json:"pricing_plans,omitempty"`

	LogoURL  *string       `json:"logo_url,omitempty"`
	MetaKeys *MetaKeysInfo `json:"meta_keys,omitempty"`
}
