// Package filesystem lists documents in a local folder and watches it for
// changes.
//
// Files are identified by their absolute path, so a moved file is seen as
// a deletion plus a creation. Hidden files and directories (leading dot)
// are ignored. The local filesystem offers no native checksum, so callers
// hash the extracted text instead.
package filesystem
