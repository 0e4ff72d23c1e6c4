package stats

import "github.com/tankkwon/delivery-app/internal/core"

// PlatformShare is one platform's slice of a record subset.
type PlatformShare struct {
	Platform core.Platform `json:"platform"`
	Amount   int64         `json:"amount"`
	// Percent of the subset total, rounded half away from zero; 0 when the
	// subset total is 0.
	Percent int64 `json:"percent"`
}

// PlatformRatio returns one share per platform in core.Platforms order.
// Records with an unknown platform count toward the total only.
func PlatformRatio(records []core.Record) []PlatformShare {
	byPlatform := make(map[core.Platform]int64, len(core.Platforms))
	var total int64
	for _, r := range records {
		byPlatform[r.Platform] += r.Amount
		total += r.Amount
	}
	shares := make([]PlatformShare, 0, len(core.Platforms))
	for _, p := range core.Platforms {
		amount := byPlatform[p]
		shares = append(shares, PlatformShare{
			Platform: p,
			Amount:   amount,
			Percent:  core.DivRound(amount*100, total),
		})
	}
	return shares
}
