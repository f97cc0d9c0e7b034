package entity

// Report category constants. The classifier scores against exactly this set.
const (
	CategoryRoads          = "roads"
	CategoryWater          = "water"
	CategorySanitation     = "sanitation"
	CategoryElectricity    = "electricity"
	CategoryStreetlight    = "streetlight"
	CategoryDrainage       = "drainage"
	CategoryPublicProperty = "public_property"
	CategoryOther          = "other"
)

// Categories lists all report categories in scoring order.
var Categories = []string{
	CategoryRoads,
	CategoryWater,
	CategorySanitation,
	CategoryElectricity,
	CategoryStreetlight,
	CategoryDrainage,
	CategoryPublicProperty,
	CategoryOther,
}

// Severity constants.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Severities lists all severities in scoring order.
var Severities = []string{
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

// ValidCategory reports whether c is a known category label.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidSeverity reports whether s is a known severity label.
func ValidSeverity(s string) bool {
	for _, v := range Severities {
		if v == s {
			return true
		}
	}
	return false
}
