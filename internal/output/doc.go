// Package output provides the destinations rendered themes are written to:
// a [FileWriter] that overwrites the target file in place, and a
// [StdoutWriter] used when the output path is "-".
package output
