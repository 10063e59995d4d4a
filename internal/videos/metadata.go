package videos

import "context"

// Metadata captures the subset of link details WatchClub displays.
type Metadata struct {
	Title     string
	Thumbnail string
}

// Provider returns metadata for the supplied video URL.
type Provider interface {
	Lookup(ctx context.Context, url string) (Metadata, error)
}
