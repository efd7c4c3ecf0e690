// Package dicomblob packs several single-frame DICOM files into one blob and
// turns a stored blob back into an ordered image stack.
//
// A blob is a sequence of records, each a 4 byte big-endian unsigned length
// followed by that many payload bytes. There is no header, footer or padding.
//
//	+--------+-----------+--------+-----------+
//	| len(4) | payload 0 | len(4) | payload 1 | ...
//	+--------+-----------+--------+-----------+
//
// Validity of the payloads is only checked when unpacking: a record whose
// payload lacks the DICM magic at offset 128 is dropped, a record whose
// declared length overruns the blob fails the whole unpack.
package dicomblob
