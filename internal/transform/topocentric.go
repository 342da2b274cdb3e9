package transform

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer holds a ground observer's location in both geodetic and ECEF
// frames. ECEF is precomputed once at construction so it can be reused
// across the many samples of an event-detection scan. An ellipsoidal Earth
// model matters here: a spherical model is off by kilometers, which
// corrupts elevation exactly where pass boundaries lie.
type Observer struct {
	LatRad, LonRad, AltM float64 // geodetic (radians, meters above ellipsoid)
	ECEFx, ECEFy, ECEFz  float64 // precomputed ECEF (meters)
}

// LookAngles is the topocentric view of a satellite from an observer:
// where to look and how far away it is.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserver creates an Observer from geodetic coordinates. Latitude and
// longitude are in degrees, altitude in meters above the WGS-84 ellipsoid.
// Longitude is normalized to (-180, 180].
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lonDeg = NormalizeLonDeg(lonDeg)

	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEFx:  (N + altM) * cosLat * cosLon,
		ECEFy:  (N + altM) * cosLat * sinLon,
		ECEFz:  (N*(1-wgs84E2) + altM) * sinLat,
	}
}

// NormalizeLonDeg maps any longitude in degrees to (-180, 180].
func NormalizeLonDeg(lon float64) float64 {
	lon = math.Mod(lon, 360.0)
	if lon > 180.0 {
		lon -= 360.0
	} else if lon <= -180.0 {
		lon += 360.0
	}
	return lon
}

// Geodetic holds a geodetic position (degrees, meters above the ellipsoid).
type Geodetic struct {
	LatDeg, LonDeg, AltM float64
}

// ECEFToGeodetic converts ECEF coordinates (meters) to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth
// orbits.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	lon := math.Atan2(y, x)

	p := math.Sqrt(x*x + y*y)

	// Initial estimate.
	lat := math.Atan2(z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}

// LookAnglesFromECEF computes azimuth, elevation, and slant range from an
// observer to a satellite given in ECEF meters.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section
// 4.4. Azimuth: 0 = North, measured clockwise. Elevation: 0 = horizon,
// 90 = zenith.
func LookAnglesFromECEF(obs Observer, satX, satY, satZ float64) LookAngles {
	// Range vector in ECEF.
	rx := satX - obs.ECEFx
	ry := satY - obs.ECEFy
	rz := satZ - obs.ECEFz

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	// Rotate the ECEF range vector to SEZ.
	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	el := math.Asin(zenith / rangeMag)

	// In SEZ, North = -South, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * 180.0 / math.Pi,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeKm:      rangeMag / 1000.0,
	}
}

// Observe is the full topocentric transform: rotate a propagated TEME state
// into the Earth-fixed frame at the given instant and compute the observer's
// look angles. Pure function of its inputs.
func Observe(s StateTEME, obs Observer, t time.Time) LookAngles {
	ecef := TEMEToECEF(s, t)
	return LookAnglesFromECEF(obs, ecef.X, ecef.Y, ecef.Z)
}
