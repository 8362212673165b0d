package realestate

// Card is what the HTTP surface renders for one record.
type Card struct {
	ID          string  `json:"id"`
	ImgSrcURL   string  `json:"img_src"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	IsRental    bool    `json:"is_rental"`
	DisplayType string  `json:"display_type"`
}

func ToCard(p PropertyRecord) Card {
	return Card{
		ID:          p.ID,
		ImgSrcURL:   p.ImgSrcURL,
		Type:        p.Type,
		Price:       p.Price,
		IsRental:    p.IsRental(),
		DisplayType: p.DisplayType(),
	}
}

func ToCards(records []PropertyRecord) []Card {
	out := make([]Card, 0, len(records))
	for _, r := range records {
		out = append(out, ToCard(r))
	}
	return out
}
