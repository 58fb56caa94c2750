// Package firefly speaks the REST API of a FireFly-style middleware node.
// There is no Go SDK for the node, so the surface the gateway needs
// (contract APIs, data blobs, messaging, status) is implemented directly.
package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"logshare/ledger/types"
)

// Client is a request-scoped handle on one organization's node. Handles are
// cheap: they share the factory's http.Client (which is safe for concurrent
// use) and hold no other state.
type Client struct {
	endpoint  string // node base URL, no trailing slash
	namespace string
	api       string // contract API name
	hc        *http.Client
	logger    *log.Logger
}

// New creates a client for the node at endpoint, scoped to the given
// namespace and contract API.
func New(endpoint, namespace, api string, hc *http.Client, logger *log.Logger) *Client {
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		namespace: namespace,
		api:       api,
		hc:        hc,
		logger:    logger,
	}
}

// nsURL builds a namespaced API path.
func (c *Client) nsURL(parts ...string) string {
	return c.endpoint + "/api/v1/namespaces/" + url.PathEscape(c.namespace) + "/" + strings.Join(parts, "/")
}

// Invoke submits a contract operation and waits for confirmation.
func (c *Client) Invoke(ctx context.Context, op string, input map[string]any) (*types.TxReceipt, error) {
	if input == nil {
		input = map[string]any{}
	}
	body := map[string]any{"input": input}
	u := c.nsURL("apis", url.PathEscape(c.api), "invoke", url.PathEscape(op)) + "?confirm=true"

	raw, err := c.postJSON(ctx, u, body)
	if err != nil {
		return nil, err
	}

	var receipt struct {
		ID          string `json:"id"`
		Tx          string `json:"tx"`
		BlockNumber uint64 `json:"blockNumber"`
	}
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode invoke response for '%s': %w", op, err)
	}
	txID := receipt.Tx
	if txID == "" {
		txID = receipt.ID
	}
	return &types.TxReceipt{
		TransactionID: txID,
		BlockHeight:   receipt.BlockNumber,
		Output:        raw,
	}, nil
}

// Query executes a read-only contract operation and returns the raw result.
func (c *Client) Query(ctx context.Context, op string, input map[string]any) (json.RawMessage, error) {
	if input == nil {
		input = map[string]any{}
	}
	body := map[string]any{"input": input}
	u := c.nsURL("apis", url.PathEscape(c.api), "query", url.PathEscape(op))
	return c.postJSON(ctx, u, body)
}

// UploadBlob stores the bytes as a new data item on the node. The returned
// item's ID is not addressable by peers until PublishBlob succeeds.
func (c *Client) UploadBlob(ctx context.Context, filename string, r io.Reader) (*types.DataItem, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("failed to read attachment bytes: %w", err)
	}
	if err := mw.WriteField("autometa", "true"); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nsURL("data"), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var item types.DataItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if item.ID == "" {
		return nil, &types.UpstreamError{Message: "upload returned no data id"}
	}
	return &item, nil
}

// PublishBlob makes a previously uploaded blob addressable by peers.
func (c *Client) PublishBlob(ctx context.Context, id string) error {
	u := c.nsURL("data", url.PathEscape(id), "blob", "publish")
	_, err := c.postJSON(ctx, u, map[string]any{})
	return err
}

// GetData fetches the data item record for id (metadata, not the bytes).
func (c *Client) GetData(ctx context.Context, id string) (*types.DataItem, error) {
	raw, err := c.getJSON(ctx, c.nsURL("data", url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	var item types.DataItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode data item %s: %w", id, err)
	}
	return &item, nil
}

// DownloadBlob streams the published blob bytes. The caller owns the reader.
func (c *Client) DownloadBlob(ctx context.Context, id string) (io.ReadCloser, error) {
	u := c.nsURL("data", url.PathEscape(id), "blob")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, upstreamFromResponse(resp)
	}
	return resp.Body, nil
}

// SendBroadcast submits a message visible to every organization.
func (c *Client) SendBroadcast(ctx context.Context, msg *types.MessageIn) (*types.MessageReceipt, error) {
	return c.sendMessage(ctx, c.nsURL("messages", "broadcast"), msg)
}

// SendPrivate submits a message visible only to the sender and the
// recipients named in msg.Group.
func (c *Client) SendPrivate(ctx context.Context, msg *types.MessageIn) (*types.MessageReceipt, error) {
	return c.sendMessage(ctx, c.nsURL("messages", "private"), msg)
}

func (c *Client) sendMessage(ctx context.Context, u string, msg *types.MessageIn) (*types.MessageReceipt, error) {
	raw, err := c.postJSON(ctx, u, msg)
	if err != nil {
		return nil, err
	}
	var receipt types.MessageReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode message receipt: %w", err)
	}
	return &receipt, nil
}

// ListMessages returns messages of the given type visible to this node.
func (c *Client) ListMessages(ctx context.Context, msgType string) (json.RawMessage, error) {
	u := c.nsURL("messages") + "?type=" + url.QueryEscape(msgType)
	return c.getJSON(ctx, u)
}

// Status returns the node identity/status document. The document carries
// the organization's DID, which callers use to address private messages.
func (c *Client) Status(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, c.endpoint+"/api/v1/status")
}

// Close is a no-op; the underlying http.Client is owned by the factory.
func (c *Client) Close() error { return nil }

func (c *Client) postJSON(ctx context.Context, u string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) getJSON(ctx context.Context, u string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("failed to read node response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp.StatusCode, body)
	}
	return json.RawMessage(body), nil
}

// upstreamError prefers the structured error field in the node's response
// body, then the raw body, then the status text.
func upstreamError(status int, body []byte) *types.UpstreamError {
	var errBody struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
		return &types.UpstreamError{Status: status, Message: errBody.Error}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) < 512 {
		return &types.UpstreamError{Status: status, Message: msg}
	}
	return &types.UpstreamError{Status: status, Message: http.StatusText(status)}
}

func upstreamFromResponse(resp *http.Response) *types.UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return upstreamError(resp.StatusCode, body)
}
