// Package docx assembles the final survey document: it opens a .docx
// template, appends one image block per fetched asset after the appendix
// section, overlays the signature image at the signer anchor, and
// serializes a new artifact.
//
// The template is never mutated in place. Assemble reads the template
// bytes, edits an in-memory copy of word/document.xml plus the relationship
// and content-type parts, and writes a fresh container in which every
// untouched part is carried over byte-for-byte. New zip entries use a fixed
// modification time, so identical inputs produce byte-identical output.
package docx
