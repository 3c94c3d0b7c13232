// Package geo provides flat-earth coordinate math for agent placement and
// movement. Offsets treat one degree of latitude as a fixed meter span;
// fine at neighborhood scale, not geodesically exact.
package geo

import (
	"math"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"
)

const metersPerDegreeLat = 111320.0

// Offset shifts a coordinate by the given meter deltas (north, east).
func Offset(lat, lng, northM, eastM float64) (float64, float64) {
	newLat := lat + northM/metersPerDegreeLat
	// Longitude degrees shrink with latitude.
	lngScale := metersPerDegreeLat * math.Cos(lat*math.Pi/180)
	if lngScale < 1 {
		lngScale = 1
	}
	return newLat, lng + eastM/lngScale
}

// DistanceM approximates the distance in meters between two coordinates.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	dNorth := (lat2 - lat1) * metersPerDegreeLat
	dEast := (lng2 - lng1) * metersPerDegreeLat * math.Cos(lat1*math.Pi/180)
	return math.Hypot(dNorth, dEast)
}

// RandomWithin picks a uniformly distributed point inside a disk of
// radiusM meters around the center. uniform must return values in [0, 1).
func RandomWithin(centerLat, centerLng, radiusM float64, uniform func() float64) (float64, float64) {
	// sqrt keeps density uniform over the disk area.
	r := radiusM * math.Sqrt(uniform())
	theta := 2 * math.Pi * uniform()
	return Offset(centerLat, centerLng, r*math.Cos(theta), r*math.Sin(theta))
}

// Drift produces slowly varying movement headings from a noise field, so
// an agent's wandering looks like a walk instead of teleporting jitter.
type Drift struct {
	noise opensimplex.Noise
}

// NewDrift creates a drift field from a seed.
func NewDrift(seed int64) *Drift {
	return &Drift{noise: opensimplex.NewNormalized(seed)}
}

// Step moves the coordinate by roughly stepM meters in a heading sampled
// from the noise field. key separates agents so they do not move in
// lockstep; the heading changes smoothly over minutes.
func (d *Drift) Step(key float64, at time.Time, lat, lng, stepM float64) (float64, float64) {
	t := float64(at.Unix()) / 600.0 // heading evolves over ~10 minute scale
	heading := 2 * math.Pi * d.noise.Eval2(key, t)
	return Offset(lat, lng, stepM*math.Cos(heading), stepM*math.Sin(heading))
}
