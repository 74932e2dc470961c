// Package manifest builds and publishes the Redshift COPY manifest files
// that tell the bulk loader exactly which S3 objects to ingest.
package manifest

import (
	"fmt"

	"github.com/talerngpong/cloud-datawarehouse/internal/discovery"
)

// Entry is a single manifest line. Every entry is mandatory: a missing
// object fails the COPY instead of being skipped.
type Entry struct {
	URL       string `json:"url"`
	Mandatory bool   `json:"mandatory"`
}

// Manifest is the document consumed by the warehouse bulk loader.
type Manifest struct {
	Entries []Entry `json:"entries"`
}

// Build converts discovered objects into a manifest, preserving order.
func Build(objects []discovery.Object) Manifest {
	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, Entry{
			URL:       fmt.Sprintf("s3://%s/%s", obj.Bucket, obj.Key),
			Mandatory: true,
		})
	}
	return Manifest{Entries: entries}
}
