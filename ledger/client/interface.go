package client

import (
	"context"
	"encoding/json"
	"io"

	"logshare/ledger/types"
)

// Invoker is the backend-agnostic contract surface. Operations are the
// named business functions of the shared log contract; input keys travel
// verbatim to the contract.
type Invoker interface {
	// Invoke submits a state-changing contract operation.
	Invoke(ctx context.Context, op string, input map[string]any) (*types.TxReceipt, error)

	// Query executes a read-only contract operation and returns the raw
	// result untouched.
	Query(ctx context.Context, op string, input map[string]any) (json.RawMessage, error)

	// Close releases the client.
	Close() error
}

// BlobStore covers the two-phase binary attachment lifecycle: a blob is
// uploaded first (private to the node) and must then be published before
// its id is addressable by peers.
type BlobStore interface {
	UploadBlob(ctx context.Context, filename string, r io.Reader) (*types.DataItem, error)
	PublishBlob(ctx context.Context, id string) error
	GetData(ctx context.Context, id string) (*types.DataItem, error)

	// DownloadBlob streams the published bytes. The caller must close the
	// returned reader.
	DownloadBlob(ctx context.Context, id string) (io.ReadCloser, error)
}

// Messenger is the node's broadcast/private messaging bus.
type Messenger interface {
	SendBroadcast(ctx context.Context, msg *types.MessageIn) (*types.MessageReceipt, error)
	SendPrivate(ctx context.Context, msg *types.MessageIn) (*types.MessageReceipt, error)

	// ListMessages returns messages of the given type ("broadcast" or
	// "private") visible to this node, raw.
	ListMessages(ctx context.Context, msgType string) (json.RawMessage, error)
}

// Node is the full middleware surface of one organization's node.
type Node interface {
	Invoker
	BlobStore
	Messenger

	// Status returns the node's identity/status document.
	Status(ctx context.Context) (json.RawMessage, error)
}
