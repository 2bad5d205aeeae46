// Package jsonfile stores the frame index and the relevance cache as JSON
// files in the cache directory.
//
// The index is split into index_NNN.json chunks of domain.IndexChunkSize
// entries. Each chunk is written to a temp file and renamed into place, and
// a .index.lock file serialises writers across processes.
package jsonfile
