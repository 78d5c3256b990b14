package vision

import (
	"errors"
	"testing"
)

func TestRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		id   TargetID
		want float64
	}{
		{TargetScoutCamp1, 0.65},
		{TargetGoCave, 0.9},
		{TargetHelpIcon, 0.7},
		{TargetMarchPurple, 0.85},
		{TargetSend, DefaultThreshold},
	}
	for _, tt := range tests {
		if got := r.Target(tt.id); got.Threshold != tt.want || got.ID != tt.id {
			t.Errorf("Target(%s) = %+v, want threshold %v", tt.id, got, tt.want)
		}
	}
}

func TestRegistry_Overrides(t *testing.T) {
	r, err := NewRegistry(map[string]float64{"btn_send": 0.75})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := r.Target(TargetSend).Threshold; got != 0.75 {
		t.Errorf("override threshold = %v, want 0.75", got)
	}

	if _, err := NewRegistry(map[string]float64{"no_such_button": 0.5}); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("unknown target: err = %v, want ErrUnknownTarget", err)
	}
	if _, err := NewRegistry(map[string]float64{"btn_send": 1.5}); err == nil {
		t.Error("out of range threshold should be rejected")
	}
}

func TestRegistry_TargetsPreservesOrder(t *testing.T) {
	r, _ := NewRegistry(nil)
	got := r.Targets(TargetScoutCamp2, TargetScoutCamp1)
	if len(got) != 2 || got[0].ID != TargetScoutCamp2 || got[1].ID != TargetScoutCamp1 {
		t.Errorf("Targets order = %+v", got)
	}
}

func TestTargetID_File(t *testing.T) {
	if got := TargetGoCave.File(); got != "btn_go_cave.png" {
		t.Errorf("File() = %q", got)
	}
	if TargetID("bogus").Known() {
		t.Error("bogus target reported as known")
	}
	if n := len(AllTargets()); n != len(catalog) {
		t.Errorf("AllTargets() returned %d, want %d", n, len(catalog))
	}
}
