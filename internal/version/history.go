package version

// History is the newest-first log of records for one platform.
// It is only ever prepended to and truncated at the tail.
type History struct {
	records []Record
	cap     int
}

// NewHistory builds a history from newest-first records. Invalid records are
// dropped and the result is truncated to retention (DefaultRetention when < 1).
func NewHistory(retention int, records ...Record) History {
	h := History{cap: normRetention(retention)}
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		if len(h.records) == h.cap {
			break
		}
		h.records = append(h.records, r)
	}
	return h
}

func normRetention(n int) int {
	if n < 1 {
		return DefaultRetention
	}
	return n
}

// Cap returns the retention limit.
func (h History) Cap() int { return normRetention(h.cap) }

// Len returns the number of records.
func (h History) Len() int { return len(h.records) }

// Latest returns the head record, or false when the history is empty.
func (h History) Latest() (Record, bool) {
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[0], true
}

// Records returns a copy of the records, newest first.
func (h History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Prepend returns a new history with rec at the head and the oldest entries
// evicted beyond the cap. An invalid rec leaves the history unchanged.
func (h History) Prepend(rec Record) History {
	if !rec.Valid() {
		return h
	}
	c := h.Cap()
	n := len(h.records) + 1
	if n > c {
		n = c
	}
	out := make([]Record, 0, n)
	out = append(out, rec)
	for _, r := range h.records {
		if len(out) == n {
			break
		}
		out = append(out, r)
	}
	return History{records: out, cap: c}
}
