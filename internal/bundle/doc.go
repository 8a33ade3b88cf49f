// Package bundle turns uploaded bytes into an ordered, immutable set of named
// text entries ready for chunking.
//
// Two input shapes are recognised: a zip archive (one entry per regular file,
// in archive order) and a plain text blob (a single entry). Bytes are decoded
// lossily as UTF-8, so a bundle can always be built from any input.
//
// [FromDir] and [WriteArchive] support the CLI side: selecting local files
// with include/exclude globs and packing them into the archive that is later
// uploaded for analysis.
package bundle
