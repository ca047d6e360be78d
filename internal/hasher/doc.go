// Package hasher computes the content identities used for deduplication.
//
// The sample hash covers the file size plus a fixed-length prefix and suffix,
// which is cheap enough to run over every discovered file and is stable across
// hosts given identical bytes. The full hash covers the whole content and is
// only computed on demand: for post-copy verification and collision checks.
package hasher
