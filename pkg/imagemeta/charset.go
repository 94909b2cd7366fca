// Package imagemeta embeds provenance metadata into archived screenshots:
// EXIF tags for date and authorship, and IPTC IIM records for the post's
// text, source URL and byline. The JPEG image data is never re-encoded;
// only metadata segments are rewritten.
package imagemeta

// latin1 narrows a string to ISO-8859-1 bytes. IPTC IIM consumers on the
// photo frame only understand Latin-1, so runes outside it (emoji, CJK) are
// silently dropped rather than replaced with substitution characters.
func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r <= 0xFF {
			out = append(out, byte(r))
		}
	}
	return out
}
