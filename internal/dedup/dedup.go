package dedup

import (
	"iter"

	"vidingest/internal/faults"
	"vidingest/internal/media"
)

// Outcome describes what Add did with a record.
type Outcome int

const (
	// Added means the record became a new canonical entry.
	Added Outcome = iota
	// Duplicate means the record was folded into an existing entry.
	Duplicate
	// Conflict means the record shares a sample hash with an entry whose full
	// hash differs; it was kept as its own entry.
	Conflict
	// Known means the same host and path was already indexed.
	Known
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Duplicate:
		return "duplicate"
	case Conflict:
		return "conflict"
	case Known:
		return "known"
	default:
		return "unknown"
	}
}

// Deduplicator indexes records by sample hash. It is not safe for concurrent
// use; callers merging from several goroutines hold their own lock.
type Deduplicator struct {
	bySample  map[string][]int
	seen      map[string]int
	entries   []media.UniqueVideoEntry
	discarded int
	conflicts []faults.DuplicateConflict
}

// New returns an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{
		bySample: make(map[string][]int),
		seen:     make(map[string]int),
	}
}

// Collapse deduplicates every record of seq.
func Collapse(seq iter.Seq[media.VideoRecord]) *Deduplicator {
	d := New()
	for rec := range seq {
		d.Add(rec)
	}
	return d
}

// Add indexes rec. The first record discovered for a hash stays canonical.
func (d *Deduplicator) Add(rec media.VideoRecord) Outcome {
	outcome, _ := d.add(rec)
	return outcome
}

func (d *Deduplicator) add(rec media.VideoRecord) (Outcome, int) {
	loc := rec.Location()
	if idx, ok := d.seen[loc]; ok && d.entries[idx].Hash() == rec.SampleHash {
		return Known, idx
	}

	candidates := d.bySample[rec.SampleHash]
	for _, idx := range candidates {
		entry := &d.entries[idx]
		if fullHashesDiffer(entry.Record, rec) {
			continue
		}
		entry.Duplicates = append(entry.Duplicates, rec)
		d.seen[loc] = idx
		d.discarded++
		return Duplicate, idx
	}

	idx := len(d.entries)
	d.entries = append(d.entries, media.UniqueVideoEntry{Record: rec})
	d.bySample[rec.SampleHash] = append(candidates, idx)
	d.seen[loc] = idx
	if len(candidates) == 0 {
		return Added, idx
	}

	first := d.entries[candidates[0]].Record
	d.conflicts = append(d.conflicts, faults.DuplicateConflict{
		SampleHash:    rec.SampleHash,
		FirstPath:     first.Path,
		FirstHost:     first.Host,
		FirstFullHash: first.FullHash,
		OtherPath:     rec.Path,
		OtherHost:     rec.Host,
		OtherFullHash: rec.FullHash,
	})
	return Conflict, idx
}

// MergeEntry folds an entry produced by another Deduplicator, keeping its
// duplicates for audit. The duplicates count as discarded here.
func (d *Deduplicator) MergeEntry(entry media.UniqueVideoEntry) Outcome {
	outcome, idx := d.add(entry.Record)
	for _, dup := range entry.Duplicates {
		loc := dup.Location()
		if _, ok := d.seen[loc]; ok {
			continue
		}
		d.entries[idx].Duplicates = append(d.entries[idx].Duplicates, dup)
		d.seen[loc] = idx
		d.discarded++
	}
	return outcome
}

// Entries returns the unique entries in first-seen order.
func (d *Deduplicator) Entries() []media.UniqueVideoEntry {
	out := make([]media.UniqueVideoEntry, len(d.entries))
	for i, entry := range d.entries {
		entry.Duplicates = append([]media.VideoRecord(nil), entry.Duplicates...)
		out[i] = entry
	}
	return out
}

// Len returns the number of unique entries.
func (d *Deduplicator) Len() int { return len(d.entries) }

// Discarded returns how many records were folded into an existing entry.
func (d *Deduplicator) Discarded() int { return d.discarded }

// Conflicts returns sample-hash collisions whose full hashes disagree.
func (d *Deduplicator) Conflicts() []faults.DuplicateConflict {
	return append([]faults.DuplicateConflict(nil), d.conflicts...)
}

func fullHashesDiffer(a, b media.VideoRecord) bool {
	return a.FullHash != "" && b.FullHash != "" && a.FullHash != b.FullHash
}
