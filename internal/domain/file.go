package domain

import "time"

// File is an uploaded asset. (org, app, file_path, version) is unique;
// (org, app, file_path, tag) is unique when tag is non-null (§3).
type File struct {
	ID        int64
	Org       string
	App       string
	FilePath  string
	Version   int
	Tag       *string
	URL       string
	Checksum  string
	Size      int64
	Metadata  map[string]any
	CreatedAt time.Time
}

// FileRef is a resolved pointer to exactly one File, as embedded in a
// Package's file list or a release's important/lazy/resources arrays.
type FileRef struct {
	FilePath string
	Version  int
}
