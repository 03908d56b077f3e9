// Package market orchestrates ticks: population generation, shocks,
// matching, and session execution.
package market

import (
	"fmt"
	"math"

	"github.com/talgya/bazaar/internal/config"
	"github.com/talgya/bazaar/internal/entropy"
	"github.com/talgya/bazaar/internal/trade"
)

var itemNames = []string{
	"Widget", "Gadget", "Doohickey", "Thingamajig", "Gizmo",
	"Contraption", "Apparatus", "Device", "Module", "Component",
}

// Catalog is the fixed set of tradeable item types, generated once per run
// from a seeded stream. Sessions reference catalog items, never copy-own them.
type Catalog struct {
	items []trade.Item
}

// NewCatalog samples numTypes reference prices from rng. In fixed scenario
// mode, fixedRefPrices (when non-empty) pins reference prices instead,
// cycling through the list.
func NewCatalog(rng *entropy.Stream, cfg config.Market, fixedRefPrices []float64) *Catalog {
	c := &Catalog{items: make([]trade.Item, 0, cfg.NumItemTypes)}
	for i := 0; i < cfg.NumItemTypes; i++ {
		var ref float64
		if len(fixedRefPrices) > 0 {
			ref = fixedRefPrices[i%len(fixedRefPrices)]
		} else {
			ref = round2(rng.Uniform(cfg.ItemRefPriceMin, cfg.ItemRefPriceMax))
		}
		c.items = append(c.items, trade.Item{
			ID:             fmt.Sprintf("item_%03d", i),
			Name:           fmt.Sprintf("%s %c", itemNames[i%len(itemNames)], 'A'+rune(i%26)),
			ReferencePrice: ref,
		})
	}
	return c
}

// Items returns a copy of the catalog.
func (c *Catalog) Items() []trade.Item {
	out := make([]trade.Item, len(c.items))
	copy(out, c.items)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
