package billing

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// NumberSource exposes the stored document numbers of one numbering
// scope: a (company, document kind, financial year) triple.
type NumberSource interface {
	DocumentNumbers(ctx context.Context, companyID string, kind DocumentKind, financialYear string) ([]string, error)
}

// NumberGenerator suggests the next sequential document number for a
// scope. It is a read-then-suggest generator with no reservation: two
// concurrent creations in the same scope can be offered the same number,
// and the save workflow compensates with a duplicate check at save time.
// The counter restarts at "1" for every new financial year per company
// per document kind.
type NumberGenerator struct {
	source NumberSource
	group  singleflight.Group
}

// NewNumberGenerator constructs a NumberGenerator.
func NewNumberGenerator(source NumberSource) *NumberGenerator {
	return &NumberGenerator{source: source}
}

// NextNumber returns the suggested document number for the scope: one
// past the numeric maximum of the stored numbers, or "1" when the scope
// is empty or holds no numeric values. Concurrent identical requests are
// collapsed into a single read; this deduplicates work, it does not
// reserve the number.
func (g *NumberGenerator) NextNumber(ctx context.Context, companyID string, kind DocumentKind, financialYear string) (string, error) {
	key := fmt.Sprintf("%s|%s|%s", companyID, kind, financialYear)
	v, err, _ := g.group.Do(key, func() (any, error) {
		numbers, err := g.source.DocumentNumbers(ctx, companyID, kind, financialYear)
		if err != nil {
			return "", err
		}
		return nextAfter(numbers), nil
	})
	if err != nil {
		return "", fmt.Errorf("billing: next number for %s: %w", key, err)
	}
	return v.(string), nil
}

// nextAfter computes the successor of the numeric maximum. Comparison is
// numeric, not lexicographic; non-numeric values are skipped.
func nextAfter(numbers []string) string {
	max, found := int64(0), false
	for _, raw := range numbers {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if !found || n > max {
			max, found = n, true
		}
	}
	if !found {
		return "1"
	}
	return strconv.FormatInt(max+1, 10)
}
