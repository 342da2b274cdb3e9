// Package transform provides the coordinate frame transformations behind
// pass prediction: TEME (the inertial frame SGP4 propagates in) to ECEF,
// ECEF to geodetic coordinates on the WGS-84 ellipsoid, and ECEF to
// observer-relative look angles.
//
// The TEME → ECEF rotation uses GMST only (TEME → PEF ≈ ECEF). Ignoring
// polar motion and the equation of equinoxes introduces at most ~50 m of
// position error, well below what matters for horizon-crossing detection.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// StateTEME is a satellite position and velocity in the TEME frame at one
// instant. Ephemeral: produced by a single propagation call and consumed
// immediately, never stored.
type StateTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// StateECEF is a satellite position and velocity in the ECEF frame.
type StateECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// TEMEToECEF transforms a TEME state to ECEF at the given UTC time.
// Input in km and km/s, output in meters and m/s.
func TEMEToECEF(s StateTEME, t time.Time) StateECEF {
	return TEMEToECEFWithGMST(s, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle
// (radians). Useful when several satellites share the same instant.
//
// Position: r_ECEF = R3(θ) * r_TEME
// Velocity: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
//
// where R3(θ) rotates about the Z-axis by GMST and ω = [0, 0, ω_earth].
func TEMEToECEFWithGMST(s StateTEME, gmst float64) StateECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := s.X*cosG + s.Y*sinG
	y := -s.X*sinG + s.Y*cosG
	z := s.Z

	vxRot := s.VX*cosG + s.VY*sinG
	vyRot := -s.VX*sinG + s.VY*cosG

	// ω × r_ECEF = [-ω*y, ω*x, 0]
	vx := vxRot + OmegaEarth*y
	vy := vyRot - OmegaEarth*x
	vz := s.VZ

	return StateECEF{
		X:  x * 1000.0,
		Y:  y * 1000.0,
		Z:  z * 1000.0,
		VX: vx * 1000.0,
		VY: vy * 1000.0,
		VZ: vz * 1000.0,
	}
}
