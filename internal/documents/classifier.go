package documents

import "strings"

// Keyword sets for type classification. Matching is case-insensitive over
// the filename and any available text content.
var typeKeywords = map[Type][]string{
	TypeInvoice:  {"invoice", "bill", "amount due", "payment due", "remittance"},
	TypeContract: {"agreement", "contract", "terms and conditions", "party", "effective date"},
	TypeTicket:   {"ticket", "issue", "support", "incident", "resolution"},
}

// Classify assigns a document type from keyword matches in the filename and
// text. The confidence is the matched fraction of the winning type's keyword
// set. When nothing matches, the result is TypeUnknown with zero confidence.
// Ties resolve in the order invoice, contract, ticket.
func Classify(filename, text string) (Type, float64) {
	haystack := strings.ToLower(filename + " " + text)

	best := TypeUnknown
	bestHits := 0
	bestConfidence := 0.0

	for _, t := range []Type{TypeInvoice, TypeContract, TypeTicket} {
		keywords := typeKeywords[t]
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = t
			bestHits = hits
			bestConfidence = float64(hits) / float64(len(keywords))
		}
	}

	return best, bestConfidence
}
