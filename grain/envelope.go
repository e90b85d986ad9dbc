package grain

import (
	"fmt"
	"math"
	"sort"
)

// Shape selects one of the analytic envelope families.
type Shape int

const (
	ShapeLinear Shape = iota
	ShapeExponential
	ShapeLogarithmic
	ShapeSigmoid
	ShapeCosine
	ShapeGaussian
	ShapeHanning
	ShapeTriangular

	numShapes
)

var shapeNames = [numShapes]string{
	"Linear",
	"Exponential",
	"Logarithmic",
	"Sigmoid",
	"Cosine",
	"Gaussian",
	"Hanning",
	"Triangular",
}

// String returns the shape's display name.
func (s Shape) String() string {
	if s < 0 || s >= numShapes {
		return fmt.Sprintf("Shape(%d)", int(s))
	}

	return shapeNames[s]
}

// Ramp describes how a control point is approached from its predecessor.
type Ramp int

const (
	// RampSet jumps to the value at the point's time.
	RampSet Ramp = iota
	// RampLinear interpolates linearly from the previous point.
	RampLinear
	// RampExponential interpolates geometrically from the previous
	// point, with a relative floor to keep the ratio well-defined.
	RampExponential
)

// ControlPoint is one automation point of a gain curve.
type ControlPoint struct {
	Time float64
	Gain float64
	Ramp Ramp
}

const (
	maxAttackFraction = 0.3
	maxDecayFraction  = 0.7

	// expFloorRatio keeps exponential segments away from zero-valued
	// endpoints, matching the audible floor of a -60 dB fade.
	expFloorRatio = 0.001

	logarithmicSteps = 10
	sigmoidSteps     = 15
	cosineSteps      = 12
	gaussianSamples  = 20
	hanningSamples   = 16

	sigmoidSlope = 12.0
)

// Envelope computes the gain-vs-time control points for one grain.
//
// The curve starts at gain 0 at startTime and is fully decayed by
// startTime+duration. Attack is clamped to 0.3*duration and decay to
// 0.7*duration; for the segmented shapes the plateau holds peak between
// the attack end and duration-attack-decay. Gaussian and Hanning ignore
// attack/decay and span the full duration.
func Envelope(shape Shape, startTime, duration, attack, decay, peak float64) ([]ControlPoint, error) {
	if shape < 0 || shape >= numShapes {
		return nil, fmt.Errorf("envelope shape must be in [0, %d]: %d", numShapes-1, int(shape))
	}

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("envelope duration must be > 0: %f", duration)
	}

	if math.IsNaN(startTime) || math.IsInf(startTime, 0) {
		return nil, fmt.Errorf("envelope start time must be finite: %f", startTime)
	}

	if attack < 0 || math.IsNaN(attack) || math.IsInf(attack, 0) {
		return nil, fmt.Errorf("envelope attack must be >= 0: %f", attack)
	}

	if decay < 0 || math.IsNaN(decay) || math.IsInf(decay, 0) {
		return nil, fmt.Errorf("envelope decay must be >= 0: %f", decay)
	}

	if peak < 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return nil, fmt.Errorf("envelope peak must be >= 0: %f", peak)
	}

	if attack > maxAttackFraction*duration {
		attack = maxAttackFraction * duration
	}

	if decay > maxDecayFraction*duration {
		decay = maxDecayFraction * duration
	}

	switch shape {
	case ShapeLinear, ShapeTriangular:
		return segmentedEnvelope(startTime, duration, attack, decay, peak, 1, identityRise, identityFall), nil
	case ShapeExponential:
		return exponentialEnvelope(startTime, duration, attack, decay, peak), nil
	case ShapeLogarithmic:
		return segmentedEnvelope(startTime, duration, attack, decay, peak, logarithmicSteps, logRise, logFall), nil
	case ShapeSigmoid:
		return segmentedEnvelope(startTime, duration, attack, decay, peak, sigmoidSteps, sigmoidRise, sigmoidFall), nil
	case ShapeCosine:
		return segmentedEnvelope(startTime, duration, attack, decay, peak, cosineSteps, cosineRise, cosineFall), nil
	case ShapeGaussian:
		return gaussianEnvelope(startTime, duration, peak), nil
	case ShapeHanning:
		return hanningEnvelope(startTime, duration, peak), nil
	}

	return nil, fmt.Errorf("envelope shape must be in [0, %d]: %d", numShapes-1, int(shape))
}

// segmentLayout places the attack, plateau, and decay boundaries. The
// decay ramp runs from duration-attack-decay to the end, never starting
// before the attack finishes.
func segmentLayout(startTime, duration, attack, decay float64) (attackEnd, decayStart, end float64) {
	attackEnd = startTime + attack

	decayStart = startTime + duration - attack - decay
	if decayStart < attackEnd {
		decayStart = attackEnd
	}

	return attackEnd, decayStart, startTime + duration
}

func segmentedEnvelope(startTime, duration, attack, decay, peak float64, steps int, rise, fall func(float64) float64) []ControlPoint {
	_, decayStart, end := segmentLayout(startTime, duration, attack, decay)

	points := make([]ControlPoint, 0, 2*steps+2)
	points = append(points, ControlPoint{Time: startTime, Gain: 0, Ramp: RampSet})

	if attack > 0 {
		for k := 1; k <= steps; k++ {
			u := float64(k) / float64(steps)
			points = appendPoint(points, ControlPoint{
				Time: startTime + attack*u,
				Gain: peak * rise(u),
				Ramp: RampLinear,
			})
		}
	} else {
		points = appendPoint(points, ControlPoint{Time: startTime, Gain: peak, Ramp: RampSet})
	}

	points = appendPoint(points, ControlPoint{Time: decayStart, Gain: peak, Ramp: RampLinear})

	if fallSpan := end - decayStart; fallSpan > 0 {
		for k := 1; k <= steps; k++ {
			u := float64(k) / float64(steps)
			points = appendPoint(points, ControlPoint{
				Time: decayStart + fallSpan*u,
				Gain: peak * fall(u),
				Ramp: RampLinear,
			})
		}
	}

	return points
}

func exponentialEnvelope(startTime, duration, attack, decay, peak float64) []ControlPoint {
	attackEnd, decayStart, end := segmentLayout(startTime, duration, attack, decay)

	points := []ControlPoint{{Time: startTime, Gain: 0, Ramp: RampSet}}
	points = appendPoint(points, ControlPoint{Time: attackEnd, Gain: peak, Ramp: RampExponential})
	points = appendPoint(points, ControlPoint{Time: decayStart, Gain: peak, Ramp: RampLinear})
	points = appendPoint(points, ControlPoint{Time: end, Gain: expFloorRatio * peak, Ramp: RampExponential})

	return points
}

func gaussianEnvelope(startTime, duration, peak float64) []ControlPoint {
	center := duration / 2
	sigma := duration / 6

	points := make([]ControlPoint, 0, gaussianSamples)

	for k := range gaussianSamples {
		t := duration * float64(k) / float64(gaussianSamples-1)

		gain := 0.0
		if k > 0 && k < gaussianSamples-1 {
			d := t - center
			gain = peak * math.Exp(-(d*d)/(2*sigma*sigma))
		}

		ramp := RampLinear
		if k == 0 {
			ramp = RampSet
		}

		points = append(points, ControlPoint{Time: startTime + t, Gain: gain, Ramp: ramp})
	}

	return points
}

func hanningEnvelope(startTime, duration, peak float64) []ControlPoint {
	points := make([]ControlPoint, 0, hanningSamples)

	for k := range hanningSamples {
		u := float64(k) / float64(hanningSamples-1)
		gain := peak * 0.5 * (1 - math.Cos(2*math.Pi*u))

		ramp := RampLinear
		if k == 0 {
			ramp = RampSet
		}

		points = append(points, ControlPoint{Time: startTime + duration*u, Gain: gain, Ramp: ramp})
	}

	return points
}

func appendPoint(points []ControlPoint, p ControlPoint) []ControlPoint {
	n := len(points)
	if n > 0 && points[n-1].Time == p.Time && points[n-1].Gain == p.Gain {
		return points
	}

	return append(points, p)
}

func identityRise(u float64) float64 { return u }
func identityFall(u float64) float64 { return 1 - u }

func logRise(u float64) float64 { return math.Log(1 + u*(math.E-1)) }
func logFall(u float64) float64 { return math.Log(1 + (1-u)*(math.E-1)) }

func logistic(u float64) float64 { return 1 / (1 + math.Exp(-sigmoidSlope*(u-0.5))) }

// sigmoidRise normalizes the logistic curve so the segment spans
// exactly 0..1 instead of the raw asymptote values.
func sigmoidRise(u float64) float64 {
	lo := logistic(0)
	hi := logistic(1)

	return (logistic(u) - lo) / (hi - lo)
}

func sigmoidFall(u float64) float64 { return sigmoidRise(1 - u) }

func cosineRise(u float64) float64 { return math.Sin(u * math.Pi / 2) }
func cosineFall(u float64) float64 { return math.Cos(u * math.Pi / 2) }

// SampleCurve evaluates a control-point curve at time t. Before the
// first point the curve reads as the first gain; after the last point it
// holds the last gain. An empty curve reads as unity.
func SampleCurve(points []ControlPoint, t float64) float64 {
	if len(points) == 0 {
		return 1
	}

	if t <= points[0].Time {
		return points[0].Gain
	}

	last := points[len(points)-1]
	if t >= last.Time {
		return last.Gain
	}

	// Index of the last point at or before t.
	i := sort.Search(len(points), func(j int) bool { return points[j].Time > t }) - 1

	from := points[i]
	to := points[i+1]

	span := to.Time - from.Time
	if span <= 0 {
		return to.Gain
	}

	u := (t - from.Time) / span

	switch to.Ramp {
	case RampSet:
		return from.Gain
	case RampExponential:
		return expInterp(from.Gain, to.Gain, u)
	default:
		return from.Gain + (to.Gain-from.Gain)*u
	}
}

// expInterp interpolates geometrically between v0 and v1, clamping both
// endpoints to a relative floor so a zero endpoint cannot poison the
// ratio.
func expInterp(v0, v1, u float64) float64 {
	ref := math.Max(math.Abs(v0), math.Abs(v1))
	if ref == 0 {
		return 0
	}

	floor := expFloorRatio * ref

	if v0 < floor {
		v0 = floor
	}

	if v1 < floor {
		v1 = floor
	}

	return v0 * math.Pow(v1/v0, u)
}
