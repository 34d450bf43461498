// Package masbconfig loads partial JSON overrides for a masb run's tuning
// parameters as pointer fields with Apply* fallback accessors: fields
// omitted from the file fall back to the CLI flag defaults, so a config
// file only needs to name what it changes.
package masbconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// Overrides is the JSON-addressable subset of shrinkball.Params and the
// masb CLI flags that a config file may override. All fields are optional.
type Overrides struct {
	InitialRadius      *float64 `json:"initial_radius,omitempty"`
	DenoisePreserveDeg *float64 `json:"denoise_preserve_deg,omitempty"`
	DenoisePlanarDeg   *float64 `json:"denoise_planar_deg,omitempty"`
	NaNForInitR        *bool    `json:"nan_for_initr,omitempty"`
	NormalsK           *int     `json:"normals_k,omitempty"`
	Rearrange          *bool    `json:"rearrange,omitempty"`
}

// Load reads and validates a JSON overrides file. path must end in .json
// and be under maxConfigFileSize.
func Load(path string) (*Overrides, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("masbconfig: config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("masbconfig: stat %s: %w", cleanPath, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("masbconfig: config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("masbconfig: read %s: %w", cleanPath, err)
	}

	ov := &Overrides{}
	if err := json.Unmarshal(data, ov); err != nil {
		return nil, fmt.Errorf("masbconfig: parse %s: %w", cleanPath, err)
	}
	if err := ov.Validate(); err != nil {
		return nil, fmt.Errorf("masbconfig: invalid config: %w", err)
	}
	return ov, nil
}

// Validate checks that any set fields hold plausible values. It does not
// duplicate shrinkball.Params.Validate; that runs again once overrides are
// applied to the final Params value.
func (o *Overrides) Validate() error {
	if o.InitialRadius != nil && *o.InitialRadius <= 0 {
		return fmt.Errorf("initial_radius must be positive, got %v", *o.InitialRadius)
	}
	if o.DenoisePreserveDeg != nil && *o.DenoisePreserveDeg < 0 {
		return fmt.Errorf("denoise_preserve_deg must be non-negative, got %v", *o.DenoisePreserveDeg)
	}
	if o.DenoisePlanarDeg != nil && *o.DenoisePlanarDeg < 0 {
		return fmt.Errorf("denoise_planar_deg must be non-negative, got %v", *o.DenoisePlanarDeg)
	}
	if o.NormalsK != nil && *o.NormalsK <= 0 {
		return fmt.Errorf("normals_k must be positive, got %v", *o.NormalsK)
	}
	return nil
}

// ApplyInitialRadius returns the override if set, else fallback.
func (o *Overrides) ApplyInitialRadius(fallback float64) float64 {
	if o == nil || o.InitialRadius == nil {
		return fallback
	}
	return *o.InitialRadius
}

// ApplyDenoisePreserveDeg returns the override if set, else fallback.
func (o *Overrides) ApplyDenoisePreserveDeg(fallback float64) float64 {
	if o == nil || o.DenoisePreserveDeg == nil {
		return fallback
	}
	return *o.DenoisePreserveDeg
}

// ApplyDenoisePlanarDeg returns the override if set, else fallback.
func (o *Overrides) ApplyDenoisePlanarDeg(fallback float64) float64 {
	if o == nil || o.DenoisePlanarDeg == nil {
		return fallback
	}
	return *o.DenoisePlanarDeg
}

// ApplyNaNForInitR returns the override if set, else fallback.
func (o *Overrides) ApplyNaNForInitR(fallback bool) bool {
	if o == nil || o.NaNForInitR == nil {
		return fallback
	}
	return *o.NaNForInitR
}

// ApplyNormalsK returns the override if set, else fallback.
func (o *Overrides) ApplyNormalsK(fallback int) int {
	if o == nil || o.NormalsK == nil {
		return fallback
	}
	return *o.NormalsK
}

// ApplyRearrange returns the override if set, else fallback.
func (o *Overrides) ApplyRearrange(fallback bool) bool {
	if o == nil || o.Rearrange == nil {
		return fallback
	}
	return *o.Rearrange
}
