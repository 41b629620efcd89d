package hierarchy

import "strings"

// UnknownType groups meters that carry no usage classification.
const UnknownType = "Unknown"

var defaultTypeAliases = map[string][]string{
	"Irrigation Services": {"IRR_Services", "IRR Servies", "Irrigation"},
	"Building Common":     {"Building_Common", "MB_Common", "MB Common", "Building"},
	"Main Bulk":           {"Main_BULK"},
	"Zone Bulk":           {"Zone_Bulk"},
	"Residential (Villa)": {"Residential Villa", "Villa"},
	"Residential (Apart)": {"Residential Apart", "Residential (Apartment)", "Apartment"},
	"Retail":              {"Commercial"},
	"D Building Bulk":     {"D_Building_Bulk", "Building Bulk"},
	"D Building Common":   {"D_Building_Common"},
}

// TypeTable canonicalizes usage-type labels so breakdowns do not split one
// type across spellings.
type TypeTable struct {
	byKey map[string]string
}

// NewTypeTable builds the default table plus extra canonical→variants entries.
func NewTypeTable(extra map[string][]string) *TypeTable {
	t := &TypeTable{byKey: map[string]string{}}
	addAliases(t.byKey, defaultTypeAliases)
	addAliases(t.byKey, extra)
	return t
}

// Normalize returns the canonical type, or raw with whitespace collapsed when
// it is not in the table.
func (t *TypeTable) Normalize(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return UnknownType
	}
	if c, ok := t.byKey[foldKey(s)]; ok {
		return c
	}
	return s
}

var defaultTypes = NewTypeTable(nil)

// NormalizeType canonicalizes raw using the built-in table.
func NormalizeType(raw string) string {
	return defaultTypes.Normalize(raw)
}
