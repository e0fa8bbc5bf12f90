package embedding

import (
	"fmt"
	"strings"

	"github.com/hyperengineering/affinity/internal/types"
)

const (
	maxPreferenceTextLen    = 5000
	maxReviewCommentLen     = 200
	maxPurchaseTerms        = 20
	maxViewTerms            = 10
	minPositiveReviewRating = 4
)

// ProductText renders one product as embedding input.
func ProductText(p types.Product) string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.CategoryName != "" {
		fmt.Fprintf(&b, ". Category: %s", p.CategoryName)
	}
	fmt.Fprintf(&b, ". Price: %.2f.", p.Price)
	if p.IsNew {
		b.WriteString(" New arrival.")
	}
	if p.OnSale {
		b.WriteString(" On sale.")
	}
	return b.String()
}

// PreferenceText renders a user's taste as embedding input. Purchased
// product names appear twice so purchases weigh more than views, and only
// positive review comments contribute. The result is truncated to keep the
// embedding request bounded.
func PreferenceText(purchased, viewed []types.Product, reviews []types.Review) string {
	var parts []string

	for i, p := range purchased {
		if i >= maxPurchaseTerms {
			break
		}
		parts = append(parts, p.Name, p.Name)
	}
	for i, p := range viewed {
		if i >= maxViewTerms {
			break
		}
		parts = append(parts, p.Name)
	}
	for _, r := range reviews {
		if r.Rating < minPositiveReviewRating || r.Comment == "" {
			continue
		}
		comment := r.Comment
		if len(comment) > maxReviewCommentLen {
			comment = comment[:maxReviewCommentLen]
		}
		parts = append(parts, comment)
	}

	text := strings.Join(parts, " ")
	if len(text) > maxPreferenceTextLen {
		text = text[:maxPreferenceTextLen]
	}
	return text
}
