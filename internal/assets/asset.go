package assets

import (
	"errors"
	"fmt"
)

// ErrMissingTemplate reports a record with no downloadable print template.
// The template is mandatory; this error is fatal for the run.
var ErrMissingTemplate = errors.New("assets: record has no template document")

// Kind classifies a fetched asset by the retrieval category that produced it.
type Kind string

const (
	KindTemplate      Kind = "template-document"
	KindPropertyPhoto Kind = "property-photo"
	KindListingPhoto  Kind = "listing-photo"
	KindTitleDeedScan Kind = "title-deed-scan"
)

// CategoryOrder fixes the order in which image categories are appended to
// the document: property, then listing, then title-deed.
var CategoryOrder = []Kind{KindPropertyPhoto, KindListingPhoto, KindTitleDeedScan}

var kindSet = func() map[Kind]struct{} {
	set := make(map[Kind]struct{}, len(CategoryOrder)+1)
	set[KindTemplate] = struct{}{}
	for _, kind := range CategoryOrder {
		set[kind] = struct{}{}
	}
	return set
}()

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	kind := Kind(value)
	_, ok := kindSet[kind]
	return kind, ok
}

// Asset is one fetched file: its content, its kind, and its position within
// the source category.
type Asset struct {
	Kind             Kind
	SourceOrderIndex int
	Name             string
	Content          []byte
}

// NewAsset validates the kind and builds an Asset. Unknown kinds are
// rejected; every asset must be classifiable from its retrieval context.
func NewAsset(kind Kind, index int, name string, content []byte) (Asset, error) {
	if _, ok := kindSet[kind]; !ok {
		return Asset{}, fmt.Errorf("assets: unknown kind %q", kind)
	}
	return Asset{Kind: kind, SourceOrderIndex: index, Name: name, Content: content}, nil
}

// Bundle is the complete fetch result for a record: the template plus the
// image assets in final append order (category order, then source order).
type Bundle struct {
	Template Asset
	Images   []Asset
}

// CountByKind returns how many images of the given kind the bundle holds.
func (b *Bundle) CountByKind(kind Kind) int {
	count := 0
	for _, asset := range b.Images {
		if asset.Kind == kind {
			count++
		}
	}
	return count
}
