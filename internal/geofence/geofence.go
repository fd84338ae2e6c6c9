// Package geofence decides whether a reported coordinate lies inside the
// circular office area.
package geofence

import (
	"fmt"
	"math"
)

// EarthRadiusKM is the mean Earth radius used by Haversine.
const EarthRadiusKM = 6371.0

// Settings is the office coordinate and admission radius in kilometres.
type Settings struct {
	OfficeLatitude  float64
	OfficeLongitude float64
	RadiusKM        float64
}

type Validator struct {
	settings Settings
}

func NewValidator(settings Settings) *Validator {
	return &Validator{settings: settings}
}

// Validate reports whether (latitude, longitude) is within the radius,
// inclusive, and a message stating the distance. The message wording is
// shown to callers and written to the audit trail unchanged.
func (v *Validator) Validate(latitude, longitude float64) (bool, string) {
	distance := v.Distance(latitude, longitude)
	if distance <= v.settings.RadiusKM {
		return true, fmt.Sprintf("Within office premises (%.2f km from office)", distance)
	}
	return false, fmt.Sprintf("Outside office premises (%.2f km from office)", distance)
}

// Distance is the great-circle distance in km from the office.
func (v *Validator) Distance(latitude, longitude float64) float64 {
	return Haversine(latitude, longitude, v.settings.OfficeLatitude, v.settings.OfficeLongitude)
}

// Haversine returns the great-circle distance in km between two points
// given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}
