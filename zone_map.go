package segment

import (
	"github.com/vesseldb/segment-go/format"
)

// parseZoneMap decodes the [min, max] bounds of a zone map into cells.
// A zone holding nulls gets a null min (null sorts low in the engine's
// ordering); a zone holding only nulls gets a null max too.
func parseZoneMap(typeInfo *TypeInfo, zm *format.ZoneMap) (min, max Cell, err error) {
	if zm.HasNotNull {
		minBytes, err := typeInfo.FromString(string(zm.Min))
		if err != nil {
			return min, max, err
		}
		maxBytes, err := typeInfo.FromString(string(zm.Max))
		if err != nil {
			return min, max, err
		}
		min = Cell{Bytes: minBytes}
		max = Cell{Bytes: maxBytes}
	}
	if zm.HasNull {
		min = NullCell()
		if !zm.HasNotNull {
			max = NullCell()
		}
	}
	return min, max, nil
}

// zoneMapMatchCondition applies the zone map match rule: an empty zone
// never matches, a pass-all zone or a nil condition always does, and
// otherwise the condition decides against the parsed bounds.
func zoneMapMatchCondition(zm *format.ZoneMap, min, max Cell, cond Condition) bool {
	if !zm.HasNotNull && !zm.HasNull {
		return false // no data in this zone
	}
	if cond == nil || zm.PassAll {
		return true
	}
	return cond.Eval(min, max)
}
