// Package ogg reads and writes Ogg pages well enough to rewrite the header
// packets of a Vorbis or Opus stream.
//
// Invariants:
// - Pages read from disk are checksum-verified.
// - Rewriting headers leaves audio page bodies and granule positions untouched;
//   only sequence numbers and checksums change.
// - Only single logical streams are rewritten.
//
// Usage:
//
//	pages, _ := ogg.ReadPages(f)
//	pages, _ = ogg.RewriteHeaders(pages, 3, func(p [][]byte) ([][]byte, error) {
//		p[1] = newComment
//		return p, nil
//	})
//	_ = ogg.WritePages(out, pages)
package ogg
