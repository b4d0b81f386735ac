package aggregator

import (
	"sort"
	"time"

	"github.com/nordsat/world-mosaic/internal/domain"
)

// Accumulator gathers the tiles announced for one (time slot, product)
// pair. The deadline is fixed when the first tile arrives and does not
// move as later tiles come in.
type Accumulator struct {
	Paths    []string
	Received int
	Deadline time.Time
}

// DueSlot is an accumulator ready for compositing, either because all
// expected tiles arrived or because its deadline passed.
type DueSlot struct {
	Time     time.Time
	Product  string
	Paths    []string
	Received int
	TimedOut bool
}

// SlotTable tracks accumulators keyed by nominal time and product name.
// It is not safe for concurrent use; the runner owns it from a single
// goroutine.
type SlotTable struct {
	slots map[time.Time]map[string]*Accumulator
}

// NewSlotTable returns an empty table.
func NewSlotTable() *SlotTable {
	return &SlotTable{slots: make(map[time.Time]map[string]*Accumulator)}
}

// Add records one tile notification, creating the accumulator with the
// given deadline on first arrival. Duplicate notifications count again;
// deduplication belongs to the upstream production chain.
func (t *SlotTable) Add(evt domain.TileEvent, deadline time.Time) *Accumulator {
	slot := evt.NominalTime.UTC()
	products, ok := t.slots[slot]
	if !ok {
		products = make(map[string]*Accumulator)
		t.slots[slot] = products
	}
	acc, ok := products[evt.ProductName]
	if !ok {
		acc = &Accumulator{Deadline: deadline}
		products[evt.ProductName] = acc
	}
	acc.Paths = append(acc.Paths, evt.URI)
	acc.Received++
	return acc
}

// Due returns the slots ready for compositing at the given instant,
// ordered by time then product so processing order is stable. Returned
// slots stay in the table until removed.
func (t *SlotTable) Due(now time.Time, expected int) []DueSlot {
	var due []DueSlot
	for slot, products := range t.slots {
		for product, acc := range products {
			complete := acc.Received >= expected
			if !complete && !now.After(acc.Deadline) {
				continue
			}
			due = append(due, DueSlot{
				Time:     slot,
				Product:  product,
				Paths:    acc.Paths,
				Received: acc.Received,
				TimedOut: !complete,
			})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].Time.Equal(due[j].Time) {
			return due[i].Time.Before(due[j].Time)
		}
		return due[i].Product < due[j].Product
	})
	return due
}

// Remove drops one accumulator. The parent time slot stays behind,
// possibly empty, until Sweep runs.
func (t *SlotTable) Remove(slot time.Time, product string) {
	if products, ok := t.slots[slot]; ok {
		delete(products, product)
	}
}

// Sweep deletes time slots with no accumulators left and reports how
// many it removed.
func (t *SlotTable) Sweep() int {
	removed := 0
	for slot, products := range t.slots {
		if len(products) == 0 {
			delete(t.slots, slot)
			removed++
		}
	}
	return removed
}

// Len counts the accumulators currently held.
func (t *SlotTable) Len() int {
	n := 0
	for _, products := range t.slots {
		n += len(products)
	}
	return n
}
