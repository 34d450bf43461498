package shrinkball

import "fmt"

// deltaConverge is the radius-convergence tolerance, and iterationLimit
// bounds the number of shrink steps per side, per the algorithm's
// numeric notes. Both are fixed constants of the algorithm, not tunables.
const (
	deltaConverge  = 1e-5
	iterationLimit = 30
)

// Params holds the tunable parameters of the shrinking-ball algorithm.
// A plain struct with a matching constructor and range-checked Validate.
type Params struct {
	// InitialRadius upper-bounds every ball radius; it also doubles as
	// the sentinel value emitted for degenerate/unconverged sides.
	InitialRadius float32
	// DenoisePreserve is the small separation-angle cutoff (radians)
	// protecting sharp features from being absorbed too aggressively.
	DenoisePreserve float32
	// DenoisePlanar is the large-angle cutoff (radians) rejecting
	// near-tangent configurations early in the iteration.
	DenoisePlanar float32
	// NaNForInitR, if true, instructs downstream writers to substitute
	// NaN coordinates for any center whose radius equals InitialRadius.
	// The shrinking-ball core itself never produces NaN; this flag is
	// carried here only because it is documented alongside the other
	// algorithm parameters and consumed by the output translation step.
	NaNForInitR bool
}

// DefaultParams returns the parameter set this core was designed around.
func DefaultParams() Params {
	return Params{
		InitialRadius:   100,
		DenoisePreserve: deg2rad(20),
		DenoisePlanar:   deg2rad(32),
		NaNForInitR:     false,
	}
}

func deg2rad(deg float32) float32 { return deg * (3.14159265 / 180) }

// Validate reports a programmer error: non-positive InitialRadius or
// negative angle parameters. Degeneracies encountered during the
// iteration itself are never errors; they are represented in MedialResult.
func (p Params) Validate() error {
	if p.InitialRadius <= 0 {
		return fmt.Errorf("shrinkball: InitialRadius must be positive, got %v", p.InitialRadius)
	}
	if p.DenoisePreserve < 0 {
		return fmt.Errorf("shrinkball: DenoisePreserve must be non-negative, got %v", p.DenoisePreserve)
	}
	if p.DenoisePlanar < 0 {
		return fmt.Errorf("shrinkball: DenoisePlanar must be non-negative, got %v", p.DenoisePlanar)
	}
	return nil
}
