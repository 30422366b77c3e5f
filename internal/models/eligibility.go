package models

// Eligibility is a snapshot of the four independent verification steps a
// bidder must complete before any bid is admitted. The steps are computed
// by an external verification service; this core only consumes them.
type Eligibility struct {
	BidderID         string `json:"bidder_id"`
	IdentityVerified bool   `json:"identity_verified"`
	ContactVerified  bool   `json:"contact_verified"`
	PaymentVerified  bool   `json:"payment_verified"`
	AddressVerified  bool   `json:"address_verified"`
}

// Complete reports whether all four verification steps are done.
func (e Eligibility) Complete() bool {
	return e.IdentityVerified && e.ContactVerified && e.PaymentVerified && e.AddressVerified
}
