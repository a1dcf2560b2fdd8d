package forktree

import "errors"

// ErrDuplicateNode is returned when inserting a block that is already
// present in the tree. It indicates a replayed or conflicting signal
// upstream and is never silently merged.
var ErrDuplicateNode = errors.New("duplicate node in fork tree")

// ErrInvalidAncestry is returned when the ancestry oracle contradicts the
// block-number ordering of nodes already in the tree.
var ErrInvalidAncestry = errors.New("invalid ancestry relation")

var errMalformedEncoding = errors.New("malformed fork tree encoding")
