package behaviors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// VIPStateFile is the name of the persisted DailyVIP state.
const VIPStateFile = "daily_vip.yaml"

type vipState struct {
	LastRun time.Time `yaml:"last_run"`
}

// DailyVIP claims the VIP chest and daily reward once per calendar day.
type DailyVIP struct {
	base
	path    string
	lastRun time.Time
}

// NewDailyVIP creates the behavior, restoring the last run from stateDir.
// A missing or corrupt state file means it has not run yet.
func NewDailyVIP(d Deps, stateDir string) *DailyVIP {
	v := &DailyVIP{
		base: newBase(d, "Daily VIP Sequence", "DailyVIP", 50),
		path: filepath.Join(stateDir, VIPStateFile),
	}
	if err := v.load(); err != nil {
		v.log.Warn("could not read state, will run today", "path", v.path, "error", err)
	}
	return v
}

// LastRun returns when the sequence last completed.
func (v *DailyVIP) LastRun() time.Time {
	return v.lastRun
}

func (v *DailyVIP) ShouldRun(ctx context.Context) bool {
	return !sameDay(v.lastRun, v.now())
}

func (v *DailyVIP) Run(ctx context.Context) error {
	v.log.Info("Starting sequence...")
	if err := v.ensure(ctx, navigation.City); err != nil {
		return err
	}

	settle := 2500 * time.Millisecond
	res := v.seq.Run(ctx, []sequencer.Action{
		{Label: "VIP Icon", Targets: []vision.Target{v.target(vision.TargetVIPIcon)}, Settle: settle},
		{Label: "VIP Chest", Targets: []vision.Target{v.target(vision.TargetVIPChest)}, Settle: settle, Optional: true, DismissAfter: true},
		{Label: "Claim Button", Targets: []vision.Target{v.target(vision.TargetClaim)}, Settle: settle, Optional: true, DismissAfter: true},
		{Label: "Close VIP", Targets: []vision.Target{v.target(vision.TargetVIPIcon)}, Settle: settle, Optional: true},
	})
	if !res.OK() {
		return nil
	}

	v.lastRun = v.now()
	if err := v.save(); err != nil {
		return fmt.Errorf("save vip state: %w", err)
	}
	v.log.Info("Sequence complete. Saved to file.")
	return nil
}

func (v *DailyVIP) load() error {
	data, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var st vipState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return err
	}
	v.lastRun = st.LastRun
	return nil
}

func (v *DailyVIP) save() error {
	data, err := yaml.Marshal(vipState{LastRun: v.lastRun})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o755); err != nil {
		return err
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, v.path)
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
