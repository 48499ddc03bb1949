package pricing

import (
	"math"
	"strings"
)

// Road distances from Conakry in km, used when an order carries city names but
// no coordinates. Values follow the national road network, not straight lines.
var cityDistancesFromConakry = map[string]float64{
	"conakry":     12,
	"coyah":       50,
	"dubreka":     55,
	"forecariah":  100,
	"kindia":      135,
	"boffa":       160,
	"fria":        160,
	"telimele":    270,
	"mamou":       270,
	"boke":        300,
	"dalaba":      320,
	"pita":        360,
	"labe":        430,
	"dabola":      435,
	"faranah":     460,
	"kissidougou": 565,
	"kouroussa":   585,
	"dinguiraye":  600,
	"kankan":      650,
	"gueckedou":   670,
	"kerouane":    745,
	"mandiana":    770,
	"macenta":     780,
	"siguiri":     780,
	"beyla":       850,
	"nzerekore":   950,
	"lola":        990,
	"yomou":       1010,
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// CityDistanceKM returns the fallback distance between two known cities. The
// table is Conakry-centric; for two upcountry cities the difference of their
// Conakry legs serves as a floor.
func CityDistanceKM(fromCity, toCity string) (float64, bool) {
	from, okFrom := cityDistancesFromConakry[normalizeCity(fromCity)]
	to, okTo := cityDistancesFromConakry[normalizeCity(toCity)]
	if !okFrom || !okTo {
		return 0, false
	}
	distance := math.Abs(from - to)
	if distance == 0 {
		// Same city: assume a cross-town trip.
		return 10, true
	}
	return distance, true
}
