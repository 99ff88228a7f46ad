package schema

import (
	"sort"
	"strconv"
	"strings"
)

// fieldSetBuilder accumulates (field, subselection) entries and interns the
// resulting tree once, deduplicating and sorting by field id so Union
// reduces to a linear merge of two sorted slices.
type fieldSetBuilder struct {
	schema *Schema
	on     TypeID
}

func (s *Schema) newFieldSetBuilder(on TypeID) *fieldSetBuilder {
	return &fieldSetBuilder{schema: s, on: on}
}

// internFieldSet interns a (possibly unsorted, possibly duplicate-laden)
// list of entries into a canonical, deduplicated, sorted FieldSetID. Entries
// for the same field are merged: their subselections are unioned. Two calls
// with the same (on, entries) content — however they got built — return the
// same id, the interning invariant spec.md §3.1 requires ("equal values
// share the same id") and the one UnionFieldSets' commutativity depends on.
func (s *Schema) internFieldSet(on TypeID, entries []fieldSetEntry) FieldSetID {
	if len(entries) == 0 {
		return 0
	}
	byField := make(map[FieldID]FieldSetID, len(entries))
	order := make([]FieldID, 0, len(entries))
	for _, e := range entries {
		if existing, ok := byField[e.field]; ok {
			byField[e.field] = s.unionFieldSets(existing, e.sub)
			continue
		}
		byField[e.field] = e.sub
		order = append(order, e.field)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	merged := make([]fieldSetEntry, len(order))
	for i, f := range order {
		merged[i] = fieldSetEntry{field: f, sub: byField[f]}
	}

	key := fieldSetKey(on, merged)
	if id, ok := s.setByKey[key]; ok {
		return id
	}
	s.sets = append(s.sets, fieldSetRecord{on: on, entries: merged})
	id := FieldSetID(len(s.sets) - 1)
	s.setByKey[key] = id
	return id
}

// fieldSetKey builds the canonical byte-form proxy key a (sorted,
// deduplicated) entry list interns under. Sub-selections are already
// interned FieldSetIDs by the time they reach here, so the key only needs
// to capture (field, sub-id) pairs — no recursive content walk.
func fieldSetKey(on TypeID, entries []fieldSetEntry) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(on), 10))
	for _, e := range entries {
		b.WriteByte(';')
		b.WriteString(strconv.FormatUint(uint64(e.field), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(e.sub), 10))
	}
	return b.String()
}

// UnionFieldSets computes union(a, b): fields present in either set, with
// subselections merged recursively when both sides select the same field
// with a subselection. This is the public entry point for §4.3's
// @requires/@provides widening and §4.7's directive field-dependency
// accumulation.
func (s *Schema) UnionFieldSets(a, b FieldSetID) FieldSetID { return s.unionFieldSets(a, b) }

func (s *Schema) unionFieldSets(a, b FieldSetID) FieldSetID {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a == b {
		return a
	}
	aw, bw := s.FieldSet(a), s.FieldSet(b)
	ae, be := aw.Entries(), bw.Entries()
	i, j := 0, 0
	var merged []fieldSetEntry
	for i < len(ae) || j < len(be) {
		switch {
		case j >= len(be) || (i < len(ae) && ae[i].Field < be[j].Field):
			merged = append(merged, fieldSetEntry{field: ae[i].Field, sub: ae[i].Sub})
			i++
		case i >= len(ae) || (j < len(be) && be[j].Field < ae[i].Field):
			merged = append(merged, fieldSetEntry{field: be[j].Field, sub: be[j].Sub})
			j++
		default:
			merged = append(merged, fieldSetEntry{field: ae[i].Field, sub: s.unionFieldSets(ae[i].Sub, be[j].Sub)})
			i++
			j++
		}
	}
	return s.internFieldSet(aw.On(), merged)
}

// Contains reports whether fieldSetContains(superset, field-path) holds for
// a flat top-level field id — used by the solution-space builder to check
// whether a @provides field-set covers a requested field directly.
func (w FieldSetWalker) Contains(field FieldID) (FieldSetWalker, bool) {
	for _, e := range w.Entries() {
		if e.Field == field {
			return e.SubSet(), true
		}
	}
	return FieldSetWalker{}, false
}
