package analytics

import (
	"sort"
	"time"

	"github.com/MouadFiali/gke-cloud-project/models"
)

// window accumulates counters between two flushes. It is not safe for
// concurrent use; the Aggregator guards it.
type window struct {
	start time.Time

	views   int64
	adds    int64
	empties int64

	totalItemsAdded int64
	products        map[string]int64
	productOrder    []string // first-seen order, used to break ties
	users           map[string]struct{}
}

func newWindow(start time.Time) *window {
	return &window{
		start:    start,
		products: make(map[string]int64),
		users:    make(map[string]struct{}),
	}
}

func (w *window) idle() bool {
	return w.views == 0 && w.adds == 0 && w.empties == 0
}

func (w *window) view(userID string) {
	w.views++
	w.users[userID] = struct{}{}
}

func (w *window) add(userID, productID string, quantity int64) {
	w.adds++
	w.users[userID] = struct{}{}
	w.totalItemsAdded += quantity
	w.addProduct(productID, quantity)
}

func (w *window) empty(userID string) {
	w.empties++
	w.users[userID] = struct{}{}
}

func (w *window) addProduct(productID string, quantity int64) {
	if _, seen := w.products[productID]; !seen {
		w.productOrder = append(w.productOrder, productID)
	}
	w.products[productID] += quantity
}

// absorb folds newer into w. Products first seen in w keep their precedence.
func (w *window) absorb(newer *window) {
	w.views += newer.views
	w.adds += newer.adds
	w.empties += newer.empties
	w.totalItemsAdded += newer.totalItemsAdded
	for _, id := range newer.productOrder {
		w.addProduct(id, newer.products[id])
	}
	for u := range newer.users {
		w.users[u] = struct{}{}
	}
}

// topProducts ranks products by cumulative quantity, descending, ties broken
// by first-seen order.
func (w *window) topProducts(n int) []models.ProductCount {
	ranked := make([]models.ProductCount, 0, len(w.productOrder))
	for _, id := range w.productOrder {
		ranked = append(ranked, models.ProductCount{ProductID: id, Quantity: w.products[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Quantity > ranked[j].Quantity
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (w *window) report(end time.Time, topN int) models.SummaryReport {
	return models.SummaryReport{
		WindowStart:     w.start.UTC(),
		WindowEnd:       end.UTC(),
		ViewCount:       w.views,
		AddCount:        w.adds,
		EmptyCount:      w.empties,
		UniqueUsers:     len(w.users),
		TotalItemsAdded: w.totalItemsAdded,
		TopProducts:     w.topProducts(topN),
	}
}

// WindowSnapshot is a point-in-time copy of the live window.
type WindowSnapshot struct {
	Start            time.Time
	ViewCount        int64
	AddCount         int64
	EmptyCount       int64
	UniqueUsers      int
	TotalItemsAdded  int64
	ProductAdditions map[string]int64
}

func (w *window) snapshot() WindowSnapshot {
	products := make(map[string]int64, len(w.products))
	for id, q := range w.products {
		products[id] = q
	}
	return WindowSnapshot{
		Start:            w.start,
		ViewCount:        w.views,
		AddCount:         w.adds,
		EmptyCount:       w.empties,
		UniqueUsers:      len(w.users),
		TotalItemsAdded:  w.totalItemsAdded,
		ProductAdditions: products,
	}
}
