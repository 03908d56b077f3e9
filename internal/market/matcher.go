package market

import (
	"github.com/talgya/bazaar/internal/entropy"
	"github.com/talgya/bazaar/internal/trade"
)

// Pair is one matched (buyer, seller, item) triple ready to negotiate.
type Pair struct {
	Buyer  trade.BuyerState
	Seller trade.SellerState
	Item   trade.Item
}

// Matcher pairs buyers with sellers and items for one tick. Implementations
// must be pure given their inputs: the same populations and stream state
// always yield the same pairing. New strategies (preference-based,
// auction-style) plug in here.
type Matcher interface {
	Match(buyers []trade.BuyerState, sellers []trade.SellerState, items []trade.Item, rng *entropy.Stream) []Pair
}

// RandomMatcher pairs uniformly at random without replacement. It produces
// min(|buyers|, |sellers|, |items|) triples; every buyer, seller, and item
// appears in at most one. The unmatched remainder simply sits out the tick.
type RandomMatcher struct{}

func (RandomMatcher) Match(
	buyers []trade.BuyerState,
	sellers []trade.SellerState,
	items []trade.Item,
	rng *entropy.Stream,
) []Pair {
	n := min(len(buyers), len(sellers), len(items))
	if n == 0 {
		return nil
	}

	b := make([]trade.BuyerState, len(buyers))
	copy(b, buyers)
	s := make([]trade.SellerState, len(sellers))
	copy(s, sellers)
	it := make([]trade.Item, len(items))
	copy(it, items)

	rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
	rng.Shuffle(len(it), func(i, j int) { it[i], it[j] = it[j], it[i] })

	pairs := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, Pair{Buyer: b[i], Seller: s[i], Item: it[i]})
	}
	return pairs
}
