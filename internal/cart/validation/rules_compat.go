package validation

import (
	"context"
	"fmt"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
)

// checkCompatibility enforces pairwise exclusion and required-companion
// rules across the whole cart. An exclusion error names both offending
// lines; a missing companion names the line that demands it.
func (e *Engine) checkCompatibility(ctx context.Context, lines []line, res *Result) error {
	byProduct := make(map[uint]*line, len(lines))
	ids := make([]uint, 0, len(lines))
	for i := range lines {
		if lines[i].product == nil {
			continue
		}
		pid := lines[i].product.ID
		if _, seen := byProduct[pid]; !seen {
			ids = append(ids, pid)
		}
		byProduct[pid] = &lines[i]
	}
	if len(ids) == 0 {
		return nil
	}

	rules, err := e.catalog.Rules(ctx, ids)
	if err != nil {
		return err
	}

	type pair struct{ a, b uint }
	reported := make(map[pair]bool)
	for _, rule := range rules {
		owner, inCart := byProduct[rule.ProductID]
		if !inCart {
			continue
		}
		related, relatedInCart := byProduct[rule.RelatedProductID]

		switch rule.Type {
		case domain.RuleExcludes:
			if !relatedInCart {
				continue
			}
			// A excludes B and B excludes A are the same finding.
			key := pair{a: rule.ProductID, b: rule.RelatedProductID}
			if key.a > key.b {
				key.a, key.b = key.b, key.a
			}
			if reported[key] {
				continue
			}
			reported[key] = true
			res.addPairError(CodeIncompatibleProducts,
				fmt.Sprintf("products %q and %q cannot be purchased together",
					owner.product.Name, related.product.Name),
				owner.item.ID, related.item.ID)
		case domain.RuleRequires:
			if relatedInCart {
				continue
			}
			res.addItemError(CodeMissingRequired,
				fmt.Sprintf("product %q requires product %d in the same order",
					owner.product.Name, rule.RelatedProductID),
				owner.item.ID)
		}
	}
	return nil
}
