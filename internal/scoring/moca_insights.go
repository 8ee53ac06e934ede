package scoring

import (
	"fmt"
	"strings"
)

var zoneNotes = map[Zone]string{
	ZoneValueLeader: "Leaders in relative value. A clear **opportunity** to grow share or move prices up. " +
		"Delivered value and competitive price are highly **consistent**.",
	ZonePremium: "A **consistent** premium position: high value justifies a high price. " +
		"Little **opportunity** to raise price without improving value. Defend the differentiation.",
	ZoneEconomy: "Economy niche. Value is below expectation but so is price. " +
		"Fragile **consistency**, exposed unless the niche is clear. Could become a drag on the portfolio.",
	ZoneInconsistent: "An **inconsistent** strategy: the price is not backed by value. " +
		"High risk and low **opportunity**. Needs corrective action (raise value or cut price).",
	ZoneIndeterminate: "Not classified.",
}

// InsightKey is the insight topic for a zone, e.g. "1._value_leader".
func (z Zone) InsightKey() string {
	if z == ZoneIndeterminate {
		return "indeterminate"
	}
	head := strings.TrimSpace(strings.Split(string(z), "/")[0])
	return strings.ToLower(strings.ReplaceAll(head, " ", "_"))
}

func mocaInsights(records []ZoneRecord) Insights {
	if len(records) == 0 {
		return Insights{"general": "Not enough data to derive MOCA insights."}
	}

	members := make(map[Zone][]string)
	for _, r := range records {
		members[r.Zone] = append(members[r.Zone], r.Entity)
	}

	hints := Insights{}
	for _, zone := range Zones {
		names := members[zone]
		if len(names) == 0 {
			continue
		}
		hints[zone.InsightKey()] = fmt.Sprintf("**%s:** %s (%d). %s",
			zone, strings.Join(names, ", "), len(names), zoneNotes[zone])
	}

	hints["general_strategy"] = "The MOCA matrix measures strategic **consistency** (price/value alignment) and market **opportunity**. " +
		"'Value Leader' and 'Premium' are the most consistent zones, and 'Value Leader' holds the largest price or share opportunity. " +
		"'Inconsistent' and 'Economy' call for a strategy review."
	hints["fair_value_line"] = "The fair value line is the typical price/value relationship across all entities. " +
		"Sitting above it is favorable. Sitting below it signals inconsistency or an economy position."
	return hints
}
