package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"logshare/config"
	"logshare/gateway/core"
	"logshare/internal/orgs"
	"logshare/ledger/client"
	"logshare/ledger/types"
)

// fakeNode is a canned middleware node for routing-level tests. The
// service-level behavior is covered in the core package.
type fakeNode struct {
	queryResult json.RawMessage
	dataItems   map[string]*types.DataItem
	blobBytes   []byte
}

func (n *fakeNode) Invoke(_ context.Context, _ string, _ map[string]any) (*types.TxReceipt, error) {
	return &types.TxReceipt{TransactionID: "tx-9"}, nil
}

func (n *fakeNode) Query(_ context.Context, _ string, _ map[string]any) (json.RawMessage, error) {
	return n.queryResult, nil
}

func (n *fakeNode) Close() error { return nil }

func (n *fakeNode) UploadBlob(_ context.Context, filename string, r io.Reader) (*types.DataItem, error) {
	io.Copy(io.Discard, r)
	return &types.DataItem{ID: "blob-1", Blob: &types.Blob{Name: filename}}, nil
}

func (n *fakeNode) PublishBlob(_ context.Context, _ string) error { return nil }

func (n *fakeNode) GetData(_ context.Context, id string) (*types.DataItem, error) {
	item, ok := n.dataItems[id]
	if !ok {
		return nil, &types.UpstreamError{Status: 404, Message: "FF10143: data not found"}
	}
	return item, nil
}

func (n *fakeNode) DownloadBlob(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(n.blobBytes)), nil
}

func (n *fakeNode) SendBroadcast(_ context.Context, msg *types.MessageIn) (*types.MessageReceipt, error) {
	return &types.MessageReceipt{ID: "msg-1", Header: msg.Header}, nil
}

func (n *fakeNode) SendPrivate(_ context.Context, msg *types.MessageIn) (*types.MessageReceipt, error) {
	return &types.MessageReceipt{ID: "msg-2", Header: msg.Header}, nil
}

func (n *fakeNode) ListMessages(_ context.Context, _ string) (json.RawMessage, error) {
	return json.RawMessage(`[{"header":{"tag":"new_log_created"}}]`), nil
}

func (n *fakeNode) Status(_ context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"org":{"did":"did:firefly:org/org1"}}`), nil
}

type fakeClients struct{ node *fakeNode }

func (c *fakeClients) Node(_, _, _ string) client.Node               { return c.node }
func (c *fakeClients) ContractInvoker(_, _, _ string) client.Invoker { return c.node }

func newTestRouter(node *fakeNode) http.Handler {
	cfg := &config.OrgsConfig{
		ContractAPI: "securitylog",
		Orgs: []config.OrgEntry{
			{ID: "ORG1MSP", Endpoint: "http://localhost:5000"},
			{ID: "ORG2MSP", Endpoint: "http://localhost:5001"},
		},
	}
	cfg.SetDefaults()

	logger := log.New(io.Discard, "", 0)
	svc := core.NewService(&fakeClients{node: node}, nil, logger)
	h := NewHandler(svc, orgs.NewResolver(cfg), logger, 1<<20)
	return NewRouter(h, "/health")
}

func doRequest(t *testing.T, router http.Handler, method, path, org string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if org != "" {
		req.Header.Set("x-org", org)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOrgHeaderRequired(t *testing.T) {
	router := newTestRouter(&fakeNode{queryResult: json.RawMessage(`[]`)})

	rec := doRequest(t, router, http.MethodPost, "/query/GetAllLogs", "", strings.NewReader(`{}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing header status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/query/GetAllLogs", "ORG9MSP", strings.NewReader(`{}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown org status = %d, want 400", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Error("error body missing detail message")
	}
}

func TestHealthNeedsNoOrg(t *testing.T) {
	router := newTestRouter(&fakeNode{})
	rec := doRequest(t, router, http.MethodGet, "/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestQueryPassthrough(t *testing.T) {
	raw := `[{"id":"1","severity":"low"}]`
	router := newTestRouter(&fakeNode{queryResult: json.RawMessage(raw)})

	rec := doRequest(t, router, http.MethodPost, "/query/GetAllLogs", "org1msp", strings.NewReader(`{}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != raw {
		t.Errorf("body = %s, want upstream result relayed untouched", rec.Body.String())
	}
}

func TestQueryUnknownOperation(t *testing.T) {
	router := newTestRouter(&fakeNode{})
	rec := doRequest(t, router, http.MethodPost, "/query/DropAllLogs", "ORG1MSP", strings.NewReader(`{}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryInvalidJSONBody(t *testing.T) {
	router := newTestRouter(&fakeNode{})
	rec := doRequest(t, router, http.MethodPost, "/query/GetAllLogs", "ORG1MSP", strings.NewReader(`{not json`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAddLogMultipart(t *testing.T) {
	node := &fakeNode{}
	router := newTestRouter(node)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("attackType", "Port Scan")
	mw.WriteField("sourceIP", "192.0.2.7")
	mw.WriteField("severity", "medium")
	mw.WriteField("description", "nmap sweep")
	fw, _ := mw.CreateFormFile("attachment", "scan.log")
	fw.Write([]byte("scan output"))
	mw.Close()

	rec := doRequest(t, router, http.MethodPost, "/invoke/AddLog", "ORG1MSP", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var receipt types.TxReceipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("receipt decode: %v", err)
	}
	if receipt.TransactionID != "tx-9" {
		t.Errorf("tx = %q, want tx-9", receipt.TransactionID)
	}
}

func TestAddLogValidationError(t *testing.T) {
	router := newTestRouter(&fakeNode{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("attackType", "Port Scan")
	mw.WriteField("sourceIP", "192.0.2.7")
	mw.Close()

	rec := doRequest(t, router, http.MethodPost, "/invoke/AddLog", "ORG1MSP", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAddAttachmentRequiresFile(t *testing.T) {
	router := newTestRouter(&fakeNode{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("logId", "log-1")
	mw.Close()

	rec := doRequest(t, router, http.MethodPost, "/invoke/AddAttachmentToLog", "ORG1MSP", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadStreamsBlob(t *testing.T) {
	node := &fakeNode{
		blobBytes: []byte("raw attachment bytes"),
		dataItems: map[string]*types.DataItem{
			"blob-7": {ID: "blob-7", Blob: &types.Blob{Name: "evidence.pcap"}},
		},
	}
	router := newTestRouter(node)

	rec := doRequest(t, router, http.MethodGet, "/data/download/blob-7", "ORG1MSP", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="evidence.pcap"`) {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Header().Get("Content-Type") != "application/octet-stream" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "raw attachment bytes" {
		t.Errorf("body = %q, want exact blob bytes", rec.Body.String())
	}
}

func TestDownloadUnknownBlob(t *testing.T) {
	router := newTestRouter(&fakeNode{dataItems: map[string]*types.DataItem{}})
	rec := doRequest(t, router, http.MethodGet, "/data/download/nope", "ORG1MSP", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	raw := `[
		{"id":"1","severity":"high","attackType":"DDoS","unixTime":1000,"attachmentHash":"b1"},
		{"id":"2","severity":"high","attackType":"DDoS","unixTime":2000},
		{"id":"3","severity":"low","attackType":"Phishing","unixTime":9000}
	]`
	router := newTestRouter(&fakeNode{queryResult: json.RawMessage(raw)})

	body := strings.NewReader(`{"startUnix":500,"endUnix":2000,"bucketSeconds":1000}`)
	rec := doRequest(t, router, http.MethodPost, "/query/Dashboard", "ORG1MSP", body, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var dash struct {
		Total           int            `json:"total"`
		SeverityCounts  map[string]int `json:"severityCounts"`
		WithAttachments int            `json:"withAttachments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatalf("dashboard decode: %v", err)
	}
	if dash.Total != 2 {
		t.Errorf("total = %d, want 2 (range filter is inclusive at end)", dash.Total)
	}
	if dash.SeverityCounts["high"] != 2 || dash.SeverityCounts["low"] != 0 {
		t.Errorf("severityCounts = %v", dash.SeverityCounts)
	}
	if dash.WithAttachments != 1 {
		t.Errorf("withAttachments = %d, want 1", dash.WithAttachments)
	}
}

func TestBroadcastAndPrivateRoutes(t *testing.T) {
	router := newTestRouter(&fakeNode{})

	rec := doRequest(t, router, http.MethodPost, "/node/BroadcastMessage", "ORG1MSP",
		strings.NewReader(`{"topics":"alerts","tag":"ioc","message":{"x":1}}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("broadcast status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/node/PrivateMessage", "ORG1MSP",
		strings.NewReader(`{"tag":"ioc","log":{"x":1}}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("private without did status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/node/PrivateMessage", "ORG1MSP",
		strings.NewReader(`{"did":"did:firefly:org/org2","log":{"x":1}}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("private status = %d, want 200", rec.Code)
	}
}

func TestNodeStatusAndMessages(t *testing.T) {
	router := newTestRouter(&fakeNode{})

	rec := doRequest(t, router, http.MethodGet, "/node/Status", "ORG1MSP", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status route = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "did:firefly:org/org1") {
		t.Errorf("status body = %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/node/GetBroadcastMessage", "ORG1MSP", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("messages route = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&fakeNode{})
	rec := doRequest(t, router, http.MethodOptions, "/query/GetAllLogs", "", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight missing CORS origin header")
	}
}
