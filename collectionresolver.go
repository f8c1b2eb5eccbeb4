package gonimbusx

import "context"

// CollectionResolver maps a (scope, collection) name pair to the numeric
// collection id used to qualify keys on the wire, along with the manifest
// revision the mapping came from.
type CollectionResolver interface {
	ResolveCollectionID(ctx context.Context, scopeName, collectionName string) (collectionID uint32, manifestRev uint64, err error)
	InvalidateCollectionID(ctx context.Context, scopeName, collectionName string, invalidatingManifestRev uint64)
}
