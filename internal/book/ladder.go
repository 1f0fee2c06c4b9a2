package book

import "github.com/tidwall/btree"

// ladder is an ordered price -> PriceLevel mapping. Bid and ask ladders
// differ only in the comparator passed at construction (spec.md §9:
// "a single generic container parameterised by comparator, not... two
// bespoke classes"), collapsing the teacher's separate BuyBook/SellBook
// heap types (internal/book/buy_book.go, internal/book/sell_book.go)
// into one implementation backed by github.com/tidwall/btree, the same
// library the teacher's engine package already used for this purpose
// (internal/engine/orderbook.go's PriceLevels = btree.BTreeG[*PriceLevel]).
type ladder struct {
	tree *btree.BTreeG[*PriceLevel]
}

// newLadder builds a ladder whose iteration order (best first) is
// defined by less: less(a, b) must report whether price a is strictly
// better than price b for this side.
func newLadder(less func(a, b int64) bool) *ladder {
	return &ladder{
		tree: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return less(a.price, b.price)
		}),
	}
}

// newBidLadder orders descending: the highest price is best.
func newBidLadder() *ladder {
	return newLadder(func(a, b int64) bool { return a > b })
}

// newAskLadder orders ascending: the lowest price is best.
func newAskLadder() *ladder {
	return newLadder(func(a, b int64) bool { return a < b })
}

// best returns the top-of-book level, if any.
func (l *ladder) best() (*PriceLevel, bool) {
	return l.tree.Min()
}

// levelFor returns the level at price, creating an empty one if absent.
func (l *ladder) levelFor(price int64) *PriceLevel {
	if lvl, ok := l.tree.Get(&PriceLevel{price: price}); ok {
		return lvl
	}
	lvl := newPriceLevel(price)
	l.tree.Set(lvl)
	return lvl
}

// lookup returns the level at price without creating one.
func (l *ladder) lookup(price int64) (*PriceLevel, bool) {
	return l.tree.Get(&PriceLevel{price: price})
}

// erase removes the level at price. Precondition: the level is empty.
func (l *ladder) erase(price int64) {
	l.tree.Delete(&PriceLevel{price: price})
}

// iterFromBest walks levels from best to worst, stopping early if fn
// returns false. Used by invariant checking and by the
// BidQuantities/AskQuantities listings; the matcher reads best() instead.
func (l *ladder) iterFromBest(fn func(lvl *PriceLevel) bool) {
	l.tree.Scan(fn)
}

func (l *ladder) len() int { return l.tree.Len() }
