package model

// Courier is a parcel carrier the shop ships with.
type Courier struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var couriers = []Courier{
	{Code: "cj", Label: "CJ대한통운"},
	{Code: "hanjin", Label: "한진택배"},
	{Code: "lotte", Label: "롯데택배"},
	{Code: "post", Label: "우체국"},
	{Code: "gs", Label: "GS편의점택배"},
	{Code: "cu", Label: "CU편의점택배"},
}

const defaultCourierLabel = "택배"

func Couriers() []Courier {
	out := make([]Courier, len(couriers))
	copy(out, couriers)
	return out
}

// CourierLabel returns the display name for a carrier code, the code itself
// when unknown, or a generic label when empty.
func CourierLabel(code string) string {
	if code == "" {
		return defaultCourierLabel
	}
	for _, c := range couriers {
		if c.Code == code {
			return c.Label
		}
	}
	return code
}
