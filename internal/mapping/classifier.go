package mapping

// Classify partitions candidates into the four confidence groups by cascade:
// score >= high, then >= medium, then >= low, else requires_manual.
// Unmatched candidates (no target accepted) always land in requires_manual
// regardless of raw score. The partition is total: every candidate appears
// in exactly one group.
func Classify(candidates []Candidate, th Thresholds) *Result {
	result := &Result{
		HighConfidence:   make(map[string]Mapping),
		MediumConfidence: make(map[string]Mapping),
		LowConfidence:    make(map[string]Mapping),
		RequiresManual:   []string{},
	}

	for _, c := range candidates {
		if !c.Matched || c.Target == "" {
			result.RequiresManual = append(result.RequiresManual, c.Source)
			continue
		}
		m := Mapping{Target: c.Target, Confidence: c.Score}
		switch {
		case c.Score >= th.High:
			result.HighConfidence[c.Source] = m
		case c.Score >= th.Medium:
			result.MediumConfidence[c.Source] = m
		case c.Score >= th.Low:
			result.LowConfidence[c.Source] = m
		default:
			result.RequiresManual = append(result.RequiresManual, c.Source)
		}
	}
	return result
}
