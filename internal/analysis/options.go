package analysis

import (
	"fmt"
	"strings"

	"muscat-water/internal/hierarchy"
)

// DCChildPolicy decides how L3 meters hanging off a direct connection are
// treated in the stage-2 balance.
type DCChildPolicy string

const (
	// DCChildrenExclude leaves L3-under-DC out of the stage-2 volume. The DC
	// meter itself is already counted as delivered in stage 1.
	DCChildrenExclude DCChildPolicy = "exclude"
	// DCChildrenPassThrough treats a DC meter with children as a bulk meter:
	// its volume joins the stage-2 baseline and its L3 children join the
	// stage-2 volume.
	DCChildrenPassThrough DCChildPolicy = "pass_through"
)

// ParseDCChildPolicy accepts the config spellings; empty means exclude.
func ParseDCChildPolicy(s string) (DCChildPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DCChildrenExclude):
		return DCChildrenExclude, nil
	case string(DCChildrenPassThrough), "passthrough", "pass-through":
		return DCChildrenPassThrough, nil
	}
	return "", fmt.Errorf("unknown dc child policy %q", s)
}

// Options tune the engine. The zero value is valid: default zone and type
// tables, no excluded accounts, DCChildrenExclude.
type Options struct {
	// ExcludedAccounts are dropped before any aggregation (known faulty meters).
	ExcludedAccounts []string
	DCChildPolicy    DCChildPolicy
	Zones            *hierarchy.ZoneTable
	Types            *hierarchy.TypeTable
}

func (o Options) withDefaults() Options {
	if o.DCChildPolicy == "" {
		o.DCChildPolicy = DCChildrenExclude
	}
	if o.Zones == nil {
		o.Zones = hierarchy.NewZoneTable(nil)
	}
	if o.Types == nil {
		o.Types = hierarchy.NewTypeTable(nil)
	}
	return o
}
