package memory

import "regexp"

// Order numbers look like "#1234567" or "NP20240123". The scan is a
// heuristic: it is lossy by design and must never block message recording.
var orderNumberPattern = regexp.MustCompile(`(?:#|NP)\d{4,10}`)

// ExtractOrderNumbers scans raw text for order-number patterns. Results keep
// first-occurrence order and contain no duplicates.
func ExtractOrderNumbers(text string) []string {
	matches := orderNumberPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// appendOrderNumbers merges newly extracted order numbers into the session's
// bounded, insertion-ordered log, skipping already-recorded values.
func appendOrderNumbers(existing, extracted []string, cap int) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		seen[n] = struct{}{}
	}

	for _, n := range extracted {
		if _, dup := seen[n]; dup {
			continue
		}
		if len(existing) >= cap {
			break
		}
		seen[n] = struct{}{}
		existing = append(existing, n)
	}
	return existing
}
