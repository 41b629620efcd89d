package hierarchy

import (
	"sort"
	"strings"
	"unicode"
)

// UnknownZone is used for meters with no zone at all.
const UnknownZone = "Unknown"

// defaultZoneAliases lists every known spelling of each Muscat Bay zone.
// Spacing, underscores, parentheses, case and leading zeros are folded before
// lookup, so only spellings that differ in letters or digits need listing.
var defaultZoneAliases = map[string][]string{
	"Zone_01_(FM)":      {"Zone FM", "Zone 01 FM", "FM"},
	"Zone_03_(A)":       {"Zone 3A", "Zone 03A", "Zone 03(A)"},
	"Zone_03_(B)":       {"Zone 3B", "Zone 03B", "Zone 03(B)"},
	"Zone_05":           {"Zone 5"},
	"Zone_08":           {"Zone 8"},
	"Zone_VS":           {"Village Square", "Zone Village Square"},
	"Zone_SC":           {"Sales Center", "Zone Sales Center"},
	"Direct Connection": {"Direct Connections", "DC"},
	"Main Bulk":         {"Main_BULK", "Main Bulk (NAMA)"},
}

// ZoneTable canonicalizes zone names. The zero value is not usable; build one
// with NewZoneTable.
type ZoneTable struct {
	byKey map[string]string
}

// NewZoneTable builds the default table plus any extra canonical→variants
// entries. Extras win over defaults for the same spelling.
func NewZoneTable(extra map[string][]string) *ZoneTable {
	t := &ZoneTable{byKey: map[string]string{}}
	addAliases(t.byKey, defaultZoneAliases)
	addAliases(t.byKey, extra)
	return t
}

func addAliases(dst map[string]string, aliases map[string][]string) {
	canon := make([]string, 0, len(aliases))
	for c := range aliases {
		canon = append(canon, c)
	}
	sort.Strings(canon)
	for _, c := range canon {
		dst[foldKey(c)] = c
		for _, v := range aliases[c] {
			dst[foldKey(v)] = c
		}
	}
}

// Lookup returns the canonical zone name and whether raw was recognized.
// Unrecognized names come back trimmed but otherwise unchanged.
func (t *ZoneTable) Lookup(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return UnknownZone, false
	}
	if c, ok := t.byKey[foldKey(s)]; ok {
		return c, true
	}
	return s, false
}

// Normalize is Lookup without the recognized flag.
func (t *ZoneTable) Normalize(raw string) string {
	z, _ := t.Lookup(raw)
	return z
}

var defaultZones = NewZoneTable(nil)

// NormalizeZoneName canonicalizes raw using the built-in table.
func NormalizeZoneName(raw string) string {
	return defaultZones.Normalize(raw)
}

// DisplayZoneName turns "Zone_03_(A)" into "Zone 03 A" for tables and charts.
func DisplayZoneName(zone string) string {
	r := strings.NewReplacer("_", " ", "(", " ", ")", " ")
	return strings.Join(strings.Fields(r.Replace(zone)), " ")
}

// foldKey lowercases, drops everything that is not a letter or digit and
// strips leading zeros from digit runs: "Zone_03_(A)" and "zone 3a" both fold
// to "zone3a".
func foldKey(s string) string {
	var b strings.Builder
	inDigits := false
	pendingZero := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsDigit(r):
			if !inDigits && r == '0' {
				pendingZero = true
				continue
			}
			if !inDigits {
				inDigits = true
				pendingZero = false
			}
			b.WriteRune(r)
		case unicode.IsLetter(r):
			if pendingZero {
				b.WriteRune('0')
				pendingZero = false
			}
			inDigits = false
			b.WriteRune(r)
		default:
			if pendingZero {
				b.WriteRune('0')
				pendingZero = false
			}
			inDigits = false
		}
	}
	if pendingZero {
		b.WriteRune('0')
	}
	return b.String()
}
