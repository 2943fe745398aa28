package validators

import (
	"context"
	"fmt"

	"github.com/openhealth-claims/heron/internal/domain"
)

// ageBand restricts a keyword-matched category to an age range.
// Min/Max are inclusive; -1 means unbounded on that side.
type ageBand struct {
	name     string
	keywords []string
	min      int
	max      int
}

var ageBands = []ageBand{
	{name: "maternity", keywords: maternityKeywords, min: 18, max: 45},
	{name: "pediatric", keywords: pediatricKeywords, min: -1, max: 17},
	{name: "geriatric", keywords: geriatricKeywords, min: 65, max: -1},
}

// AgeRestriction checks the claimed category against three disjoint age
// bands. A member with no recorded birth date always fails a matched band.
type AgeRestriction struct{}

func (AgeRestriction) Name() string { return "age_restriction" }

func (AgeRestriction) Validate(ctx context.Context, in *Input) (*domain.Rejection, error) {
	serviceDate := in.Claim.EffectiveServiceDate()
	age, hasAge := in.Member.AgeAt(serviceDate)

	for _, band := range ageBands {
		if !matchesAny(in.Claim.CategoryName, band.keywords) {
			continue
		}

		if !hasAge {
			return &domain.Rejection{
				Code:    domain.RejectAgeRestricted,
				Message: band.name + " services are age restricted and the member has no recorded birth date",
				Context: map[string]any{"band": band.name},
			}, nil
		}

		if (band.min >= 0 && age < band.min) || (band.max >= 0 && age > band.max) {
			return &domain.Rejection{
				Code:    domain.RejectAgeRestricted,
				Message: fmt.Sprintf("member age %d is outside the %s band %s", age, band.name, bandRange(band)),
				Context: map[string]any{
					"band":      band.name,
					"memberAge": age,
					"minAge":    band.min,
					"maxAge":    band.max,
				},
			}, nil
		}

		return nil, nil
	}

	return nil, nil
}

func bandRange(b ageBand) string {
	switch {
	case b.min >= 0 && b.max >= 0:
		return fmt.Sprintf("%d-%d", b.min, b.max)
	case b.min >= 0:
		return fmt.Sprintf("%d+", b.min)
	default:
		return fmt.Sprintf("under %d", b.max+1)
	}
}
