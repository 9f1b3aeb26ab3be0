package ledgerhttp

import (
	"strconv"
	"strings"

	"tradesentry/internal/domain"
)

// ParseTicketList extracts position ids from the raw body of the ledger's
// ticket listing. The scanner is deliberately tolerant: it takes the first
// [...] pair found in the text, splits the inside on commas, and keeps only
// the digit runs of each element. Anything else (whitespace, quotes, text
// outside the brackets, non-numeric elements) is skipped. A body with no
// bracket pair yields an empty set.
func ParseTicketList(body string) map[domain.PositionID]struct{} {
	tickets := make(map[domain.PositionID]struct{})

	open := strings.IndexByte(body, '[')
	if open < 0 {
		return tickets
	}
	end := strings.IndexByte(body[open:], ']')
	if end < 0 {
		return tickets
	}
	inner := body[open+1 : open+end]

	for _, elem := range strings.Split(inner, ",") {
		var digits strings.Builder
		for _, r := range elem {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		if digits.Len() == 0 {
			continue
		}
		id, err := strconv.ParseInt(digits.String(), 10, 64)
		if err != nil {
			continue // digit run too long to be a ticket
		}
		tickets[domain.PositionID(id)] = struct{}{}
	}
	return tickets
}
