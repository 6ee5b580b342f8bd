// Package filestore provides a reusable library for storing user files with
// pluggable metadata repository and blob storage backends.
//
// It exposes a single Service interface that orchestrates uploads, listings,
// renames, deletions and streamed downloads. Implementations of repositories
// (memory, Postgres) and blob stores (memory, filesystem, S3) are provided
// under subpackages.
//
// Consistency
//
// A file is made of one blob and one metadata record. The blob is written
// first; if the metadata record cannot be saved the blob is removed before
// the upload returns, so a record without bytes is never observable. Blob
// keys are derived solely from the file's external id (see objectkey).
//
// Access
//
// Only the owner may rename or delete a file. PUBLIC files can be downloaded
// by anyone, PRIVATE files only by their owner.
package filestore
