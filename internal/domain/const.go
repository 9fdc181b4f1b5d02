package domain

const (
	// ReplyNotifDepth bounds how far up the ancestor chain reply
	// notifications travel.
	ReplyNotifDepth = 5

	// MaxHierarchyDepth bounds every thread walk. Cyclic or pathological
	// reply chains terminate here rather than erroring.
	MaxHierarchyDepth = 80

	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Viewer context key for request-scoped identity, set by the identity
// middleware and read by the view pipelines.
const ViewerCtxKey = "mrd-viewer"

// ViewerHeader carries the requesting actor's id on read endpoints.
const ViewerHeader = "mrd-viewer-id"
