// Package dedup collapses video records that share content into unique
// entries.
//
// Records are grouped by sample hash and the first record seen becomes the
// canonical one. When two records share a sample hash but both carry full
// hashes that differ, both are kept and the pair is reported as a conflict.
package dedup
