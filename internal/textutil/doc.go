// Package textutil sanitizes names for use as path segments in managed
// storage. Names are NFC-normalized and case-folded with golang.org/x/text so
// the same subject or file name produces the same directory on every host.
package textutil
