package property

const Equal = "equal"

type ComparisonNotes struct {
	LargerProperty string `json:"largerProperty"`
	MoreExpensive  string `json:"moreExpensive"`
	MoreBedrooms   string `json:"moreBedrooms"`
	MoreBathrooms  string `json:"moreBathrooms"`
}

// Comparison holds b minus a for each numeric field, plus which side wins.
type Comparison struct {
	First              Record          `json:"property1"`
	Second             Record          `json:"property2"`
	PriceDifference    float64         `json:"priceDifference"`
	BedroomsDifference int             `json:"bedroomsDifference"`
	BathroomDifference int             `json:"bathroomsDifference"`
	SizeDifference     int             `json:"sizeDifference"`
	Notes              ComparisonNotes `json:"comparisonNotes"`
}

func Compare(a, b Record) Comparison {
	return Comparison{
		First:              a,
		Second:             b,
		PriceDifference:    b.Price - a.Price,
		BedroomsDifference: b.Bedrooms - a.Bedrooms,
		BathroomDifference: b.Bathrooms - a.Bathrooms,
		SizeDifference:     b.SizeSqft - a.SizeSqft,
		Notes: ComparisonNotes{
			LargerProperty: pick(a.ID, b.ID, float64(a.SizeSqft), float64(b.SizeSqft)),
			MoreExpensive:  pick(a.ID, b.ID, a.Price, b.Price),
			MoreBedrooms:   pick(a.ID, b.ID, float64(a.Bedrooms), float64(b.Bedrooms)),
			MoreBathrooms:  pick(a.ID, b.ID, float64(a.Bathrooms), float64(b.Bathrooms)),
		},
	}
}

func pick(idA, idB string, a, b float64) string {
	switch {
	case a == b:
		return Equal
	case a > b:
		return idA
	default:
		return idB
	}
}
