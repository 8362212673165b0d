package realestate

// PropertyRecord is one listing as served by the realestate endpoint.
// JSON keys are the server's contract; do not rename them.
type PropertyRecord struct {
	ID        string  `json:"id"`
	ImgSrcURL string  `json:"img_src"`
	Type      string  `json:"type"` // "rent" or "buy"
	Price     float64 `json:"price"`
}

const typeRent = "rent"

func (p PropertyRecord) IsRental() bool { return p.Type == typeRent }

// DisplayType is the label the overview screen shows under each card.
func (p PropertyRecord) DisplayType() string {
	if p.IsRental() {
		return "For Rent"
	}
	return "For Sale"
}
