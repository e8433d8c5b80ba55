package mailstore

import "errors"

var (
	// ErrFolderExists is returned when CreateFolder targets a name that
	// already exists.
	ErrFolderExists = errors.New("mailstore: folder already exists")

	// ErrCannotDeleteInbox is returned when DeleteFolder targets INBOX.
	ErrCannotDeleteInbox = errors.New("mailstore: cannot delete INBOX")

	// ErrInferiorHierarchy is returned when DeleteFolder targets a folder
	// that still has children in the hierarchy.
	ErrInferiorHierarchy = errors.New("mailstore: folder has inferior hierarchical names")

	// ErrFoldersUnsupported is returned when the underlying msgstore
	// backend does not implement per-folder message operations.
	ErrFoldersUnsupported = errors.New("mailstore: underlying store does not support per-folder operations")
)
