package domain

import "fmt"

// ContentType identifies a category of fetched content, each with its own processor.
type ContentType string

const (
	ContentTypeBookmarks   ContentType = "bookmarks"
	ContentTypeCuratedFeed ContentType = "curated_feed"
	ContentTypeLists       ContentType = "lists"
)

// AllContentTypes returns every supported content type in scheduling order.
func AllContentTypes() []ContentType {
	return []ContentType{ContentTypeBookmarks, ContentTypeCuratedFeed, ContentTypeLists}
}

// ParseContentType validates a raw content type string.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentTypeBookmarks, ContentTypeCuratedFeed, ContentTypeLists:
		return ContentType(s), nil
	}
	return "", fmt.Errorf("unknown content type: %q", s)
}
