package scoring

func comStratInsights(records []QuadrantRecord, pvmBuilt, pvmAttempted bool) Insights {
	if len(records) == 0 {
		return Insights{"general": "No valid competitive data to derive insights from."}
	}

	members := make(map[Quadrant][]string)
	for _, r := range records {
		members[r.Quadrant] = append(members[r.Quadrant], r.Attribute)
	}

	hints := Insights{
		"key_strengths": "**Key Strengths (high importance, advantage >= 0):** " +
			listOrNone(members[QuadrantKeyStrength]) + " -> CAPITALIZE.",
		"key_weaknesses": "**Key Weaknesses (high importance, advantage < 0):** " +
			listOrNone(members[QuadrantKeyWeakness]) + " -> PRIORITY IMPROVEMENT.",
		"secondary_strengths": "**Secondary Strengths (low importance, advantage >= 0):** " +
			listOrNone(members[QuadrantSecondaryStrength]) + " -> KEEP EFFICIENT.",
		"low_priority": "**Low Priority (low importance, advantage < 0):** " +
			listOrNone(members[QuadrantLowPriority]) + " -> AVOID OVERINVESTING.",
	}

	switch {
	case pvmBuilt:
		hints["price_value_summary"] = "**Price-Value Map:** shows perceived value (importance) against the price/cost metric of each attribute. " +
			"Exploit the 'Opportunity' corner (high value, low price) and manage attributes in the 'Danger' corner (low value, high price)."
	case pvmAttempted:
		hints["price_value_summary"] = "**Price-Value Map:** could not be built (no valid rows after filtering, or the price column could not be used)."
	default:
		hints["price_value_summary"] = "**Price-Value Map:** not generated (no price metric specified)."
	}

	hints["general_strategy"] = "**Overall strategy:** focus resources on fixing **Key Weaknesses**. Defend and communicate **Key Strengths**. " +
		"Review whether **Secondary Strengths** pay for themselves and minimize effort on **Low Priority** attributes."
	return hints
}
