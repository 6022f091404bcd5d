package types

import "github.com/elliotchance/orderedmap/v2"

// ColumnValue is one column assignment in a staged update.
type ColumnValue struct {
	Column string
	Value  string
}

// RecordUpdate groups the column assignments for one record.
type RecordUpdate struct {
	ID      int64
	Columns []ColumnValue
}

// Batch accumulates the store mutations staged during the first pass of a
// run. Updates keep the order in which records were first staged.
type Batch struct {
	updates *orderedmap.OrderedMap[int64, []ColumnValue]
	deletes []int64
	deleted map[int64]struct{}

	// Vacuum asks the store to reclaim space after the batch commits.
	Vacuum bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{
		updates: orderedmap.NewOrderedMap[int64, []ColumnValue](),
		deleted: make(map[int64]struct{}),
	}
}

// Update stages column=value for the record. A later value for the same
// column replaces the earlier one. Updates to a record already staged for
// deletion are ignored.
func (b *Batch) Update(id int64, column, value string) {
	if _, gone := b.deleted[id]; gone {
		return
	}
	cols, _ := b.updates.Get(id)
	for i := range cols {
		if cols[i].Column == column {
			cols[i].Value = value
			b.updates.Set(id, cols)
			return
		}
	}
	b.updates.Set(id, append(cols, ColumnValue{Column: column, Value: value}))
}

// Delete stages removal of the record and drops any pending update for it.
func (b *Batch) Delete(id int64) {
	if _, gone := b.deleted[id]; gone {
		return
	}
	b.updates.Delete(id)
	b.deleted[id] = struct{}{}
	b.deletes = append(b.deletes, id)
}

// Updates returns the staged updates in staging order.
func (b *Batch) Updates() []RecordUpdate {
	out := make([]RecordUpdate, 0, b.updates.Len())
	for el := b.updates.Front(); el != nil; el = el.Next() {
		cols := make([]ColumnValue, len(el.Value))
		copy(cols, el.Value)
		out = append(out, RecordUpdate{ID: el.Key, Columns: cols})
	}
	return out
}

// Deletes returns the staged record deletions in staging order.
func (b *Batch) Deletes() []int64 {
	out := make([]int64, len(b.deletes))
	copy(out, b.deletes)
	return out
}

// Len is the number of staged mutations: one per column assignment plus one
// per deleted record.
func (b *Batch) Len() int {
	n := len(b.deletes)
	for el := b.updates.Front(); el != nil; el = el.Next() {
		n += len(el.Value)
	}
	return n
}

// Empty reports whether nothing has been staged.
func (b *Batch) Empty() bool {
	return b.updates.Len() == 0 && len(b.deletes) == 0
}
