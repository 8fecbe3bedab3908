// Package resolve turns free-text street addresses into the appraiser's
// canonical folio identifiers.
package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/propwatch/appraisal-cli/pkg/appraiser"
)

// ErrNoMatch reports that the address search returned no candidate whose
// house number matches the input.
var ErrNoMatch = eris.New("resolve: no matching candidate")

// Resolver looks up folios through the appraiser's address search.
type Resolver struct {
	source appraiser.Client
}

// NewResolver creates a Resolver backed by the given record source.
func NewResolver(source appraiser.Client) *Resolver {
	return &Resolver{source: source}
}

// Resolve normalizes the address, queries the source, and selects the first
// candidate whose leading house number equals the input's. The candidate
// scan disambiguates searches that match several nearby properties.
func (r *Resolver) Resolve(ctx context.Context, address string) (string, error) {
	want, ok := HouseNumber(address)
	if !ok {
		return "", eris.Wrapf(ErrNoMatch, "no house number in %q", address)
	}

	res, err := r.source.SearchByAddress(ctx, NormalizeAddress(address))
	if err != nil {
		return "", err
	}

	for _, cand := range res.MinimumPropertyInfos {
		got, ok := HouseNumber(cand.SiteAddress)
		if ok && got == want {
			return cand.Strap, nil
		}
	}
	return "", eris.Wrapf(ErrNoMatch, "address %q", address)
}
