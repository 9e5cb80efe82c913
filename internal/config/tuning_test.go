package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetMinMovementMeters(); got != 0.05 {
		t.Errorf("GetMinMovementMeters = %f, want 0.05", got)
	}
	if got := cfg.GetLightMinLux(); got != 300 {
		t.Errorf("GetLightMinLux = %f, want 300", got)
	}
	if got := cfg.GetLightMaxLux(); got != 2000 {
		t.Errorf("GetLightMaxLux = %f, want 2000", got)
	}
	if got := cfg.GetFrameIntervalMin(); got != 5 {
		t.Errorf("GetFrameIntervalMin = %d, want 5", got)
	}
	if got := cfg.GetFrameIntervalMax(); got != 30 {
		t.Errorf("GetFrameIntervalMax = %d, want 30", got)
	}
	if got := cfg.GetStorageCeilingBytes(); got != 500*1024*1024 {
		t.Errorf("GetStorageCeilingBytes = %d, want 500MB", got)
	}
	if got := cfg.GetStoragePolicy(); got != StoragePolicyEvict {
		t.Errorf("GetStoragePolicy = %q, want evict", got)
	}
	if got := cfg.GetBudgetCheckEvery(); got != 10 {
		t.Errorf("GetBudgetCheckEvery = %d, want 10", got)
	}
	if got := cfg.GetMessageMinInterval(); got != 5*time.Second {
		t.Errorf("GetMessageMinInterval = %v, want 5s", got)
	}
	if got := cfg.GetMessageDistanceMin(); got != 0.7 {
		t.Errorf("GetMessageDistanceMin = %f, want 0.7", got)
	}
	if got := cfg.GetHistoryCapacity(); got != 60 {
		t.Errorf("GetHistoryCapacity = %d, want 60", got)
	}
}

func TestLoadTuningConfig_PartialOverride(t *testing.T) {
	path := writeTempConfig(t, `{
		"storage_ceiling_bytes": 104857600,
		"storage_policy": "halt",
		"message_min_interval": "2s"
	}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig: %v", err)
	}

	if got := cfg.GetStorageCeilingBytes(); got != 100*1024*1024 {
		t.Errorf("GetStorageCeilingBytes = %d, want 100MB", got)
	}
	if got := cfg.GetStoragePolicy(); got != StoragePolicyHalt {
		t.Errorf("GetStoragePolicy = %q, want halt", got)
	}
	if got := cfg.GetMessageMinInterval(); got != 2*time.Second {
		t.Errorf("GetMessageMinInterval = %v, want 2s", got)
	}
	// Unset fields keep their defaults.
	if got := cfg.GetMinMovementMeters(); got != 0.05 {
		t.Errorf("GetMinMovementMeters = %f, want default 0.05", got)
	}
}

func TestLoadTuningConfig_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad policy", `{"storage_policy": "panic"}`},
		{"empty light band", `{"light_min_lux": 2000, "light_max_lux": 300}`},
		{"negative ceiling", `{"storage_ceiling_bytes": -1}`},
		{"distance out of range", `{"message_distance_min": 1.5}`},
		{"bad interval", `{"message_min_interval": "soon"}`},
		{"inverted frame bounds", `{"frame_interval_min": 30, "frame_interval_max": 5}`},
		{"not json", `storage_policy: evict`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.content)
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("LoadTuningConfig accepted %s", tt.name)
			}
		})
	}
}

func TestLoadTuningConfig_RequiresJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("LoadTuningConfig accepted a non-.json path")
	}
}
