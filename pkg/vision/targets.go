package vision

import (
	"fmt"
	"sort"
)

// TargetID names one template asset. The set is closed: behaviors refer to
// these constants and never to file paths.
type TargetID string

// Navigation anchors.
const (
	TargetMapButton  TargetID = "map"  // shown only in the City view
	TargetCityButton TargetID = "city" // shown only in the Map view
)

// Scout camp and exploration.
const (
	TargetScoutCamp1    TargetID = "scout_camp_1"
	TargetScoutCamp2    TargetID = "scout_camp_2"
	TargetSpyglass      TargetID = "spyglass"
	TargetExploreMenu   TargetID = "btn_explore_1"
	TargetExploreTarget TargetID = "btn_explore_2"
	TargetSend          TargetID = "btn_send"
	TargetCavesTab      TargetID = "tab_caves"
	TargetGoCave        TargetID = "btn_go_cave"
	TargetInvestigate   TargetID = "btn_investigate"
	TargetMarchPurple   TargetID = "icon_march_purple"
	TargetMarchBlue     TargetID = "icon_march_blue"
)

// Gathering.
const (
	TargetStatusGather TargetID = "icon_status_gather"
	TargetStatusMarch  TargetID = "icon_status_march"
	TargetSearchMap    TargetID = "btn_search_map"
	TargetFood         TargetID = "icon_food"
	TargetSearchCenter TargetID = "btn_search_center"
	TargetGather       TargetID = "btn_gather"
	TargetNewTroops    TargetID = "btn_new_troops"
	TargetMarch        TargetID = "btn_march"
)

// Alliance and VIP.
const (
	TargetHelpIcon TargetID = "help_icon"
	TargetVIPIcon  TargetID = "vip_icon"
	TargetVIPChest TargetID = "vip_chest"
	TargetClaim    TargetID = "reclamar_button"
)

// DefaultThreshold is used for targets without a tuned value.
const DefaultThreshold = 0.8

// catalog holds the tuned default threshold per target.
var catalog = map[TargetID]float64{
	TargetMapButton:     0.8,
	TargetCityButton:    0.8,
	TargetScoutCamp1:    0.65,
	TargetScoutCamp2:    0.65,
	TargetSpyglass:      0.8,
	TargetExploreMenu:   0.8,
	TargetExploreTarget: 0.8,
	TargetSend:          0.8,
	TargetCavesTab:      0.8,
	TargetGoCave:        0.9,
	TargetInvestigate:   0.8,
	TargetMarchPurple:   0.85,
	TargetMarchBlue:     0.85,
	TargetStatusGather:  0.85,
	TargetStatusMarch:   0.85,
	TargetSearchMap:     0.8,
	TargetFood:          0.8,
	TargetSearchCenter:  0.8,
	TargetGather:        0.8,
	TargetNewTroops:     0.8,
	TargetMarch:         0.8,
	TargetHelpIcon:      0.7, // the hands animate
	TargetVIPIcon:       0.8,
	TargetVIPChest:      0.8,
	TargetClaim:         0.8,
}

// File returns the asset file name for the target.
func (id TargetID) File() string {
	return string(id) + ".png"
}

// Known reports whether id is part of the catalog.
func (id TargetID) Known() bool {
	_, ok := catalog[id]
	return ok
}

// AllTargets returns every catalog identifier, sorted.
func AllTargets() []TargetID {
	ids := make([]TargetID, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registry resolves identifiers to Targets with configured thresholds.
// It is built once at startup and read-only afterwards.
type Registry struct {
	thresholds map[TargetID]float64
}

// NewRegistry builds a registry from the catalog defaults plus overrides
// keyed by target name. Unknown names and out-of-range values are rejected.
func NewRegistry(overrides map[string]float64) (*Registry, error) {
	r := &Registry{thresholds: make(map[TargetID]float64, len(catalog))}
	for id, th := range catalog {
		r.thresholds[id] = th
	}
	for name, th := range overrides {
		id := TargetID(name)
		if !id.Known() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
		}
		if th < 0 || th > 1 {
			return nil, fmt.Errorf("vision: threshold for %s must be in [0,1], got %v", name, th)
		}
		r.thresholds[id] = th
	}
	return r, nil
}

// Target returns the target for id. Unknown identifiers get DefaultThreshold
// and will never match because no asset is loaded for them.
func (r *Registry) Target(id TargetID) Target {
	if th, ok := r.thresholds[id]; ok {
		return Target{ID: id, Threshold: th}
	}
	return Target{ID: id, Threshold: DefaultThreshold}
}

// Targets resolves several identifiers, preserving order.
func (r *Registry) Targets(ids ...TargetID) []Target {
	out := make([]Target, len(ids))
	for i, id := range ids {
		out[i] = r.Target(id)
	}
	return out
}
