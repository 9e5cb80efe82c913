// Package config loads tuning parameters for the capture pipeline.
//
// All heuristic thresholds live here as named defaults rather than inline
// literals. Several of them (motion-pattern variances, density constant,
// quality weights) are pragmatic approximations carried over from field
// prototypes and have not been re-tuned; treat the defaults as starting
// points, not ground truth.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Storage budget policy names accepted in the tuning file.
const (
	StoragePolicyEvict = "evict"
	StoragePolicyHalt  = "halt"
)

// TuningConfig is the root configuration for capture tuning parameters.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Throttle admission params
	MinMovementMeters *float64 `json:"min_movement_meters,omitempty"`
	LightMinLux       *float64 `json:"light_min_lux,omitempty"`
	LightMaxLux       *float64 `json:"light_max_lux,omitempty"`

	// Adaptive frame interval (in frames at the 30 fps reference rate)
	FrameIntervalStart *int     `json:"frame_interval_start,omitempty"`
	FrameIntervalMin   *int     `json:"frame_interval_min,omitempty"`
	FrameIntervalMax   *int     `json:"frame_interval_max,omitempty"`
	QualityStep        *float64 `json:"quality_step,omitempty"`

	// Quality score weights
	WeightTracking   *float64 `json:"weight_tracking,omitempty"`
	WeightFeatures   *float64 `json:"weight_features,omitempty"`
	WeightLight      *float64 `json:"weight_light,omitempty"`
	FeatureCountNorm *int     `json:"feature_count_norm,omitempty"`

	// Storage budget
	StorageCeilingBytes *int64  `json:"storage_ceiling_bytes,omitempty"`
	StoragePolicy       *string `json:"storage_policy,omitempty"` // "evict" or "halt"
	BudgetCheckEvery    *int    `json:"budget_check_every,omitempty"`

	// Coverage estimation
	DensityConstant *float64 `json:"density_constant,omitempty"` // points per cubic metre at full coverage

	// Motion-pattern heuristics
	HistoryCapacity           *int     `json:"history_capacity,omitempty"`
	MotionWindow              *int     `json:"motion_window,omitempty"`
	RepetitionWindow          *int     `json:"repetition_window,omitempty"`
	CircularVarianceThreshold *float64 `json:"circular_variance_threshold,omitempty"`
	RepetitionStepThreshold   *float64 `json:"repetition_step_threshold,omitempty"`
	RepetitionSpreadThreshold *float64 `json:"repetition_spread_threshold,omitempty"`
	TiltMaxDegrees            *float64 `json:"tilt_max_degrees,omitempty"`

	// Guidance messenger
	MessageMinInterval *string  `json:"message_min_interval,omitempty"` // duration string like "5s"
	MessageDistanceMin *float64 `json:"message_distance_min,omitempty"` // normalized edit distance
}

// EmptyTuningConfig returns a TuningConfig with all fields unset, i.e. all
// defaults in force.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted from
// the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set fields carry usable values.
func (c *TuningConfig) Validate() error {
	if c.LightMinLux != nil && c.LightMaxLux != nil && *c.LightMinLux >= *c.LightMaxLux {
		return fmt.Errorf("light band is empty: min %f >= max %f", *c.LightMinLux, *c.LightMaxLux)
	}
	if c.MinMovementMeters != nil && *c.MinMovementMeters < 0 {
		return fmt.Errorf("min_movement_meters must be non-negative, got %f", *c.MinMovementMeters)
	}
	if c.StorageCeilingBytes != nil && *c.StorageCeilingBytes <= 0 {
		return fmt.Errorf("storage_ceiling_bytes must be positive, got %d", *c.StorageCeilingBytes)
	}
	if c.StoragePolicy != nil {
		switch *c.StoragePolicy {
		case StoragePolicyEvict, StoragePolicyHalt:
		default:
			return fmt.Errorf("storage_policy must be %q or %q, got %q",
				StoragePolicyEvict, StoragePolicyHalt, *c.StoragePolicy)
		}
	}
	if c.MessageDistanceMin != nil && (*c.MessageDistanceMin < 0 || *c.MessageDistanceMin > 1) {
		return fmt.Errorf("message_distance_min must be between 0 and 1, got %f", *c.MessageDistanceMin)
	}
	if c.MessageMinInterval != nil && *c.MessageMinInterval != "" {
		if _, err := time.ParseDuration(*c.MessageMinInterval); err != nil {
			return fmt.Errorf("invalid message_min_interval '%s': %w", *c.MessageMinInterval, err)
		}
	}
	if c.FrameIntervalMin != nil && c.FrameIntervalMax != nil && *c.FrameIntervalMin > *c.FrameIntervalMax {
		return fmt.Errorf("frame interval bounds inverted: min %d > max %d",
			*c.FrameIntervalMin, *c.FrameIntervalMax)
	}
	return nil
}

// GetMinMovementMeters returns the minimum camera displacement for admission.
func (c *TuningConfig) GetMinMovementMeters() float64 {
	if c.MinMovementMeters == nil {
		return 0.05
	}
	return *c.MinMovementMeters
}

// GetLightMinLux returns the lower bound of the acceptable light band.
func (c *TuningConfig) GetLightMinLux() float64 {
	if c.LightMinLux == nil {
		return 300
	}
	return *c.LightMinLux
}

// GetLightMaxLux returns the upper bound of the acceptable light band.
func (c *TuningConfig) GetLightMaxLux() float64 {
	if c.LightMaxLux == nil {
		return 2000
	}
	return *c.LightMaxLux
}

// GetFrameIntervalStart returns the starting adaptive frame interval.
func (c *TuningConfig) GetFrameIntervalStart() int {
	if c.FrameIntervalStart == nil {
		return 10
	}
	return *c.FrameIntervalStart
}

// GetFrameIntervalMin returns the lower clamp of the adaptive interval.
func (c *TuningConfig) GetFrameIntervalMin() int {
	if c.FrameIntervalMin == nil {
		return 5
	}
	return *c.FrameIntervalMin
}

// GetFrameIntervalMax returns the upper clamp of the adaptive interval.
func (c *TuningConfig) GetFrameIntervalMax() int {
	if c.FrameIntervalMax == nil {
		return 30
	}
	return *c.FrameIntervalMax
}

// GetQualityStep returns the quality delta that triggers interval adaptation.
func (c *TuningConfig) GetQualityStep() float64 {
	if c.QualityStep == nil {
		return 0.2
	}
	return *c.QualityStep
}

// GetWeightTracking returns the tracking-state weight of the quality score.
func (c *TuningConfig) GetWeightTracking() float64 {
	if c.WeightTracking == nil {
		return 0.4
	}
	return *c.WeightTracking
}

// GetWeightFeatures returns the feature-density weight of the quality score.
func (c *TuningConfig) GetWeightFeatures() float64 {
	if c.WeightFeatures == nil {
		return 0.3
	}
	return *c.WeightFeatures
}

// GetWeightLight returns the ambient-light weight of the quality score.
func (c *TuningConfig) GetWeightLight() float64 {
	if c.WeightLight == nil {
		return 0.3
	}
	return *c.WeightLight
}

// GetFeatureCountNorm returns the feature count treated as full density.
func (c *TuningConfig) GetFeatureCountNorm() int {
	if c.FeatureCountNorm == nil {
		return 200
	}
	return *c.FeatureCountNorm
}

// GetStorageCeilingBytes returns the sample storage budget.
// Earlier prototypes shipped with a 100 MB ceiling; 500 MB is the current
// default and the old value remains reachable through the tuning file.
func (c *TuningConfig) GetStorageCeilingBytes() int64 {
	if c.StorageCeilingBytes == nil {
		return 500 * 1024 * 1024
	}
	return *c.StorageCeilingBytes
}

// GetStoragePolicy returns the budget enforcement policy.
func (c *TuningConfig) GetStoragePolicy() string {
	if c.StoragePolicy == nil {
		return StoragePolicyEvict
	}
	return *c.StoragePolicy
}

// GetBudgetCheckEvery returns how many accepted samples elapse between
// budget checks.
func (c *TuningConfig) GetBudgetCheckEvery() int {
	if c.BudgetCheckEvery == nil {
		return 10
	}
	return *c.BudgetCheckEvery
}

// GetDensityConstant returns the observed-point density treated as 100%
// coverage, in points per cubic metre.
func (c *TuningConfig) GetDensityConstant() float64 {
	if c.DensityConstant == nil {
		return 2000
	}
	return *c.DensityConstant
}

// GetHistoryCapacity returns the camera-position history ring size.
func (c *TuningConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return 60
	}
	return *c.HistoryCapacity
}

// GetMotionWindow returns the position window for circular-motion detection.
func (c *TuningConfig) GetMotionWindow() int {
	if c.MotionWindow == nil {
		return 20
	}
	return *c.MotionWindow
}

// GetRepetitionWindow returns the position window for repetition detection.
func (c *TuningConfig) GetRepetitionWindow() int {
	if c.RepetitionWindow == nil {
		return 10
	}
	return *c.RepetitionWindow
}

// GetCircularVarianceThreshold returns the distance-to-centroid variance
// below which motion counts as circular.
func (c *TuningConfig) GetCircularVarianceThreshold() float64 {
	if c.CircularVarianceThreshold == nil {
		return 0.05
	}
	return *c.CircularVarianceThreshold
}

// GetRepetitionStepThreshold returns the last-step displacement below which
// the device counts as lingering.
func (c *TuningConfig) GetRepetitionStepThreshold() float64 {
	if c.RepetitionStepThreshold == nil {
		return 0.01
	}
	return *c.RepetitionStepThreshold
}

// GetRepetitionSpreadThreshold returns the positional spread below which the
// recent path counts as repeated.
func (c *TuningConfig) GetRepetitionSpreadThreshold() float64 {
	if c.RepetitionSpreadThreshold == nil {
		return 0.05
	}
	return *c.RepetitionSpreadThreshold
}

// GetTiltMaxDegrees returns the view tilt beyond which guidance suggests
// levelling the device.
func (c *TuningConfig) GetTiltMaxDegrees() float64 {
	if c.TiltMaxDegrees == nil {
		return 60
	}
	return *c.TiltMaxDegrees
}

// GetMessageMinInterval returns the minimum gap between non-critical
// guidance messages.
func (c *TuningConfig) GetMessageMinInterval() time.Duration {
	if c.MessageMinInterval == nil || *c.MessageMinInterval == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.MessageMinInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetMessageDistanceMin returns the minimum normalized edit distance for a
// non-critical message to count as materially different.
func (c *TuningConfig) GetMessageDistanceMin() float64 {
	if c.MessageDistanceMin == nil {
		return 0.7
	}
	return *c.MessageDistanceMin
}
