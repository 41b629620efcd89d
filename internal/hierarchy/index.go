package hierarchy

import (
	"sort"
	"strings"

	"muscat-water/internal/model"
)

// LabelKey is the join key used to match a parent reference against meter
// labels. The source data mixes case ("ZONE 3A (Bulk Zone 3A)" vs
// "ZONE 3A (BULK ZONE 3A)") and padding, so both are folded.
func LabelKey(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// LevelOf buckets unknown or empty levels as N/A.
func LevelOf(m model.MeterRecord) model.Level {
	switch m.Level {
	case model.LevelL1, model.LevelL2, model.LevelL3, model.LevelL4, model.LevelDC:
		return m.Level
	}
	return model.LevelNA
}

// IndexByLevel partitions meters by tier. Unclassified meters land in the N/A
// bucket so nothing drops out of totals.
func IndexByLevel(meters []model.MeterRecord) map[model.Level][]model.MeterRecord {
	out := make(map[model.Level][]model.MeterRecord, len(model.Levels))
	for _, m := range meters {
		lvl := LevelOf(m)
		out[lvl] = append(out[lvl], m)
	}
	return out
}

// IndexChildrenByParent groups meters under the parent they resolve to, keyed
// by the parent's trimmed label as written on the parent meter. Children match
// loosely (see LabelKey) even when their reference differs in case or spacing.
// Meters whose parent reference matches no label are not in the map;
// Resolver.Unresolved lists them.
func IndexChildrenByParent(meters []model.MeterRecord) map[string][]model.MeterRecord {
	r := NewResolver(meters)
	out := map[string][]model.MeterRecord{}
	for i, m := range meters {
		p := r.ParentOf(i)
		if p < 0 {
			continue
		}
		key := strings.TrimSpace(meters[p].Label)
		out[key] = append(out[key], m)
	}
	return out
}

// expectedParents lists, per child tier, the parent tiers to prefer when a
// label is shared by several meters.
var expectedParents = map[model.Level][]model.Level{
	model.LevelL2: {model.LevelL1},
	model.LevelDC: {model.LevelL1},
	model.LevelL3: {model.LevelL2, model.LevelDC, model.LevelL3},
	model.LevelL4: {model.LevelL3, model.LevelL4},
}

// Resolver links each meter to its parent once, by label. Indices refer to the
// slice passed to NewResolver.
type Resolver struct {
	meters   []model.MeterRecord
	byLabel  map[string][]int
	parent   []int
	children [][]int
}

// NewResolver indexes labels and resolves every parent reference.
func NewResolver(meters []model.MeterRecord) *Resolver {
	r := &Resolver{
		meters:   meters,
		byLabel:  make(map[string][]int, len(meters)),
		parent:   make([]int, len(meters)),
		children: make([][]int, len(meters)),
	}
	for i, m := range meters {
		k := LabelKey(m.Label)
		if k == "" {
			continue
		}
		r.byLabel[k] = append(r.byLabel[k], i)
	}
	for i, m := range meters {
		r.parent[i] = r.resolve(i, m)
		if p := r.parent[i]; p >= 0 {
			r.children[p] = append(r.children[p], i)
		}
	}
	return r
}

func (r *Resolver) resolve(i int, m model.MeterRecord) int {
	k := LabelKey(m.ParentMeter)
	if k == "" {
		return -1
	}
	cands := make([]int, 0, 1)
	for _, c := range r.byLabel[k] {
		if c != i {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return -1
	}
	if len(cands) == 1 {
		return cands[0]
	}
	for _, want := range expectedParents[LevelOf(m)] {
		for _, c := range cands {
			if LevelOf(r.meters[c]) == want {
				return c
			}
		}
	}
	return cands[0]
}

// ParentOf returns the index of meter i's parent, or -1.
func (r *Resolver) ParentOf(i int) int {
	if i < 0 || i >= len(r.parent) {
		return -1
	}
	return r.parent[i]
}

// ChildrenOf returns the indices of meters that resolve to meter i.
func (r *Resolver) ChildrenOf(i int) []int {
	if i < 0 || i >= len(r.children) {
		return nil
	}
	return r.children[i]
}

// Unresolved lists meters that should have a parent but do not: any tier
// below L1 whose reference is empty or matches no label. N/A meters without a
// reference are not counted; they were never placed in the tree.
func (r *Resolver) Unresolved() []int {
	var out []int
	for i, m := range r.meters {
		if r.parent[i] >= 0 {
			continue
		}
		lvl := LevelOf(m)
		if lvl == model.LevelL1 {
			continue
		}
		if lvl == model.LevelNA && !m.HasParent() {
			continue
		}
		out = append(out, i)
	}
	return out
}

// AmbiguousLabels lists labels carried by more than one meter, sorted.
func (r *Resolver) AmbiguousLabels() []string {
	var out []string
	for _, idx := range r.byLabel {
		if len(idx) > 1 {
			out = append(out, strings.TrimSpace(r.meters[idx[0]].Label))
		}
	}
	sort.Strings(out)
	return out
}
