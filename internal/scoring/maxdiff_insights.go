package scoring

import (
	"fmt"
	"strings"
)

// Gap thresholds, in utility points, between the first and second attribute.
const (
	dominanceGap = 15
	closeGap     = 5
)

func maxDiffInsights(ranked []UtilityRecord, tiers []TierRecord) Insights {
	if len(ranked) == 0 {
		return Insights{"general": "Not enough data to derive insights."}
	}

	hints := Insights{}
	first, last := ranked[0], ranked[len(ranked)-1]
	hints["top_driver"] = fmt.Sprintf("The key attribute is **'%s'** (score: %.1f).", first.Attribute, first.Score)
	hints["low_impact"] = fmt.Sprintf("'%s' (score: %.1f) is the least valued attribute.", last.Attribute, last.Score)

	if len(ranked) > 1 {
		second := ranked[1]
		gap := first.Score - second.Score
		switch {
		case gap > dominanceGap:
			hints["dominance_gap"] = fmt.Sprintf("Significant gap (%.1f points) between '%s' and '%s'.",
				gap, first.Attribute, second.Attribute)
		case gap < closeGap:
			hints["close_contenders"] = fmt.Sprintf("Small difference (%.1f points) between '%s' and '%s'.",
				gap, first.Attribute, second.Attribute)
		}
	}

	top := first.Score
	var critical, minor []string
	for _, u := range ranked {
		if u.Score >= top*0.66 {
			critical = append(critical, u.Attribute)
		}
		if u.Score < top*0.33 {
			minor = append(minor, u.Attribute)
		}
	}
	hints["tiers"] = fmt.Sprintf("Tiers: **Critical:** %s. **Less relevant:** %s.",
		strings.Join(critical, ", "), strings.Join(minor, ", "))

	var topConsensus, bottomConsensus []string
	for _, t := range tiers {
		if t.TopPct == 100 {
			topConsensus = append(topConsensus, t.Attribute)
		}
		if t.BottomPct == 100 {
			bottomConsensus = append(bottomConsensus, t.Attribute)
		}
	}
	if len(topConsensus) > 0 {
		hints["top_consensus"] = "Top consensus: " + strings.Join(topConsensus, ", ") + "."
	}
	if len(bottomConsensus) > 0 {
		hints["bottom_consensus"] = "Bottom consensus: " + strings.Join(bottomConsensus, ", ") + "."
	}

	hints["general_pricing"] = "**Pricing:** Tier 1 attributes justify a premium. Tier 3 attributes belong in the base offer."
	return hints
}
