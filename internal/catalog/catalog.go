// Package catalog holds the fixed reward wheel.
package catalog

import (
	"math/rand/v2"
	"strings"
)

type Segment struct {
	Label      string `json:"label"`
	Domain     string `json:"domain"`
	Discount   int    `json:"discount"`
	CouponCode string `json:"couponCode"`
	Color      string `json:"color"`
}

var segments = []Segment{
	{Label: "10% OFF Chatbots", Domain: "Chatbots", Discount: 10, CouponCode: "ZTX-CBOT10", Color: "#2a2a40"},
	{Label: "15% OFF Chatbots", Domain: "Chatbots", Discount: 15, CouponCode: "ZTX-CBOT15", Color: "#3a3a55"},
	{Label: "10% OFF Websites", Domain: "Websites", Discount: 10, CouponCode: "ZTX-WEB10", Color: "#2a2a40"},
	{Label: "15% OFF Websites", Domain: "Websites", Discount: 15, CouponCode: "ZTX-WEB15", Color: "#3a3a55"},
	{Label: "10% OFF Apps", Domain: "Mobile Apps", Discount: 10, CouponCode: "ZTX-MAPP10", Color: "#2a2a40"},
	{Label: "15% OFF Apps", Domain: "Mobile Apps", Discount: 15, CouponCode: "ZTX-MAPP15", Color: "#3a3a55"},
	{Label: "10% OFF Custom", Domain: "Custom Software", Discount: 10, CouponCode: "ZTX-CUST10", Color: "#2a2a40"},
	{Label: "15% OFF Custom", Domain: "Custom Software", Discount: 15, CouponCode: "ZTX-CUST15", Color: "#3a3a55"},
}

// Segments returns a copy of the wheel in display order.
func Segments() []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}

// Pick returns a segment chosen uniformly at random, with its index on the
// wheel. A nil rng uses the global source.
func Pick(rng *rand.Rand) (int, Segment) {
	var i int
	if rng == nil {
		i = rand.IntN(len(segments))
	} else {
		i = rng.IntN(len(segments))
	}
	return i, segments[i]
}

// Lookup finds the segment matching a claimed reward. Coupon codes compare
// case-insensitively; domain and discount must match exactly.
func Lookup(domain string, discount int, couponCode string) (Segment, bool) {
	code := strings.TrimSpace(couponCode)
	for _, s := range segments {
		if strings.EqualFold(s.CouponCode, code) && s.Domain == domain && s.Discount == discount {
			return s, true
		}
	}
	return Segment{}, false
}
