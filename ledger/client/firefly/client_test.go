package firefly

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"logshare/ledger/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := log.New(io.Discard, "", 0)
	return New(srv.URL, "default", "securitylog", srv.Client(), logger)
}

func TestInvokePathAndBody(t *testing.T) {
	var gotPath, gotQuery string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id":"op-1","tx":"tx-42","blockNumber":7}`))
	})

	receipt, err := c.Invoke(context.Background(), "CreateLogWithAttachment", map[string]any{"severity": "high"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}

	wantPath := "/api/v1/namespaces/default/apis/securitylog/invoke/CreateLogWithAttachment"
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	if gotQuery != "confirm=true" {
		t.Errorf("query = %q, want confirm=true", gotQuery)
	}
	input, ok := gotBody["input"].(map[string]any)
	if !ok || input["severity"] != "high" {
		t.Errorf("request body = %v, want params under 'input'", gotBody)
	}
	if receipt.TransactionID != "tx-42" || receipt.BlockHeight != 7 {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestInvokeFallsBackToOperationID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"op-9"}`))
	})

	receipt, err := c.Invoke(context.Background(), "DeleteLog", nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if receipt.TransactionID != "op-9" {
		t.Errorf("tx = %q, want operation id fallback", receipt.TransactionID)
	}
}

func TestQueryPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[{"id":"1"}]`))
	})

	raw, err := c.Query(context.Background(), "GetAllLogs", nil)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if gotPath != "/api/v1/namespaces/default/apis/securitylog/query/GetAllLogs" {
		t.Errorf("path = %q", gotPath)
	}
	if string(raw) != `[{"id":"1"}]` {
		t.Errorf("raw = %s", raw)
	}
}

func TestUploadBlobMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/namespaces/default/data" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not a multipart request: %v", err)
		}
		if r.FormValue("autometa") != "true" {
			t.Error("autometa field missing")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "capture.pcap" {
			t.Errorf("filename = %q", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "packet bytes" {
			t.Errorf("content = %q", content)
		}
		w.Write([]byte(`{"id":"data-1","blob":{"name":"capture.pcap","size":12}}`))
	})

	item, err := c.UploadBlob(context.Background(), "capture.pcap", strings.NewReader("packet bytes"))
	if err != nil {
		t.Fatalf("UploadBlob returned error: %v", err)
	}
	if item.ID != "data-1" || item.Blob == nil || item.Blob.Name != "capture.pcap" {
		t.Errorf("item = %+v", item)
	}
}

func TestUploadBlobRejectsMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := c.UploadBlob(context.Background(), "f", strings.NewReader("x")); err == nil {
		t.Fatal("UploadBlob accepted a response with no data id")
	}
}

func TestPublishBlobPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	})
	if err := c.PublishBlob(context.Background(), "data-1"); err != nil {
		t.Fatalf("PublishBlob returned error: %v", err)
	}
	if gotPath != "/api/v1/namespaces/default/data/data-1/blob/publish" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestUpstreamErrorExtraction(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"structured error field", 409, `{"error":"FF10109: key conflict"}`, "FF10109: key conflict"},
		{"plain text body", 500, "node exploded", "node exploded"},
		{"empty body", 404, "", "Not Found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := c.Query(context.Background(), "GetAllLogs", nil)
			var ue *types.UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("error = %v, want UpstreamError", err)
			}
			if ue.Status != tc.status {
				t.Errorf("status = %d, want %d", ue.Status, tc.status)
			}
			if ue.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", ue.Message, tc.wantMsg)
			}
		})
	}
}

func TestNotFoundDetection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"FF10143: not found"}`))
	})

	_, err := c.GetData(context.Background(), "missing")
	if !types.IsUpstreamNotFound(err) {
		t.Errorf("error = %v, want upstream not-found", err)
	}
}

func TestStatusIsNotNamespaced(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"org":{"did":"did:firefly:org/org1"}}`))
	})

	raw, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if gotPath != "/api/v1/status" {
		t.Errorf("path = %q, want /api/v1/status", gotPath)
	}
	if !strings.Contains(string(raw), "did:firefly:org/org1") {
		t.Errorf("raw = %s", raw)
	}
}

func TestListMessagesTypeParam(t *testing.T) {
	var gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.URL.Query().Get("type")
		w.Write([]byte(`[]`))
	})

	if _, err := c.ListMessages(context.Background(), "private"); err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if gotType != "private" {
		t.Errorf("type param = %q, want private", gotType)
	}
}

func TestSendPrivatePathAndEnvelope(t *testing.T) {
	var gotPath string
	var gotMsg types.MessageIn
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotMsg)
		w.Write([]byte(`{"id":"msg-1","state":"ready"}`))
	})

	msg := &types.MessageIn{
		Header: types.MessageHeader{Tag: "incident"},
		Data:   []types.MessageData{{Value: json.RawMessage(`{"x":1}`)}},
		Group:  &types.MessageGroup{Members: []types.GroupMember{{Identity: "did:firefly:org/org2"}}},
	}
	receipt, err := c.SendPrivate(context.Background(), msg)
	if err != nil {
		t.Fatalf("SendPrivate returned error: %v", err)
	}
	if gotPath != "/api/v1/namespaces/default/messages/private" {
		t.Errorf("path = %q", gotPath)
	}
	if gotMsg.Group == nil || len(gotMsg.Group.Members) != 1 {
		t.Errorf("group not relayed: %+v", gotMsg.Group)
	}
	if receipt.ID != "msg-1" {
		t.Errorf("receipt = %+v", receipt)
	}
}
