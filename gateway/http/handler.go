package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"logshare/gateway/core"
	"logshare/internal/orgs"
	"logshare/ledger/types"
	"logshare/readmodel"
)

// orgHeader names the required organization header on every route.
const orgHeader = "x-org"

type contextKey string

const targetKey contextKey = "orgTarget"

// Handler encapsulates the logic for handling gateway HTTP requests
type Handler struct {
	svc          *core.Service
	resolver     *orgs.Resolver
	logger       *log.Logger
	maxBodyBytes int64
}

// NewHandler creates a new Handler
func NewHandler(svc *core.Service, resolver *orgs.Resolver, logger *log.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 * 1024 * 1024
	}
	return &Handler{svc: svc, resolver: resolver, logger: logger, maxBodyBytes: maxBodyBytes}
}

// withOrg resolves the x-org header before any handler body runs. A
// missing or unrecognized organization is a client error; there is no
// fallback node.
func (h *Handler) withOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := h.resolver.Resolve(r.Header.Get(orgHeader))
		if err != nil {
			h.respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), targetKey, target)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func targetFrom(ctx context.Context) orgs.Target {
	t, _ := ctx.Value(targetKey).(orgs.Target)
	return t
}

// AddLog handles POST /invoke/AddLog (multipart form, optional attachment)
func (h *Handler) AddLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		h.respondError(w, "Bad Request: invalid multipart form", http.StatusBadRequest)
		return
	}

	in := &core.CreateLogInput{
		AttackType:  r.FormValue("attackType"),
		SourceIP:    r.FormValue("sourceIP"),
		Severity:    r.FormValue("severity"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("attachment")
	switch {
	case err == nil:
		defer file.Close()
		in.Attachment = &core.Attachment{Filename: header.Filename, Content: file}
	case errors.Is(err, http.ErrMissingFile):
		// No attachment; attachmentHash will be submitted empty.
	default:
		h.respondError(w, "Bad Request: unreadable attachment", http.StatusBadRequest)
		return
	}

	receipt, err := h.svc.CreateLog(r.Context(), targetFrom(r.Context()), in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, receipt, http.StatusCreated)
}

// UpdateLog handles POST /invoke/UpdateLog
func (h *Handler) UpdateLog(w http.ResponseWriter, r *http.Request) {
	h.invokeJSON(w, r, h.svc.UpdateLog)
}

// DeleteLog handles POST /invoke/DeleteLog
func (h *Handler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	h.invokeJSON(w, r, h.svc.DeleteLog)
}

// PurgeLogsByTime handles POST /invoke/PurgeLogsByTime
func (h *Handler) PurgeLogsByTime(w http.ResponseWriter, r *http.Request) {
	h.invokeJSON(w, r, h.svc.PurgeLogsByTime)
}

// invokeJSON is the shared shape of the JSON-body mutation routes.
func (h *Handler) invokeJSON(w http.ResponseWriter, r *http.Request, call func(context.Context, orgs.Target, map[string]any) (*types.TxReceipt, error)) {
	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	receipt, err := call(r.Context(), targetFrom(r.Context()), body)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, receipt, http.StatusOK)
}

// AddAttachmentToLog handles POST /invoke/AddAttachmentToLog (multipart,
// file required)
func (h *Handler) AddAttachmentToLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		h.respondError(w, "Bad Request: invalid multipart form", http.StatusBadRequest)
		return
	}

	logID := r.FormValue("logId")
	file, header, err := r.FormFile("attachment")
	if err != nil {
		h.respondError(w, "logId and an attachment file are required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var att *core.Attachment
	if header != nil {
		att = &core.Attachment{Filename: header.Filename, Content: file}
	}
	receipt, err := h.svc.AddAttachment(r.Context(), targetFrom(r.Context()), logID, att)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, receipt, http.StatusOK)
}

// Query handles POST /query/{name} for every passthrough read operation
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Query(r.Context(), targetFrom(r.Context()), chi.URLParam(r, "name"), body)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondRaw(w, result, http.StatusOK)
}

// Dashboard handles POST /query/Dashboard: the aggregate view the admin
// dashboard renders, derived from the org's full record set.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var params struct {
		StartUnix     int64 `json:"startUnix"`
		EndUnix       int64 `json:"endUnix"`
		BucketSeconds int64 `json:"bucketSeconds"`
	}
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			h.respondError(w, "Bad Request: invalid JSON format", http.StatusBadRequest)
			return
		}
	}

	logs, err := h.svc.Logs(r.Context(), targetFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if params.StartUnix != 0 || params.EndUnix != 0 {
		logs = readmodel.FilterByTimeRange(logs, params.StartUnix, params.EndUnix)
	}
	width := time.Hour
	if params.BucketSeconds > 0 {
		width = time.Duration(params.BucketSeconds) * time.Second
	}
	h.respondJSON(w, readmodel.Build(logs, width), http.StatusOK)
}

// Download handles GET /data/download/{id}: streams the blob bytes with
// the stored filename.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filename, stream, err := h.svc.Download(r.Context(), targetFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, stream); err != nil {
		// Headers are gone; all we can do is note the broken stream.
		h.logger.Printf("Download of blob %s interrupted: %v", id, err)
	}
}

// NodeStatus handles GET /node/Status
func (h *Handler) NodeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.NodeStatus(r.Context(), targetFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondRaw(w, status, http.StatusOK)
}

// BroadcastMessage handles POST /node/BroadcastMessage
func (h *Handler) BroadcastMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topics  string          `json:"topics"`
		Tag     string          `json:"tag"`
		Message json.RawMessage `json:"message"`
	}
	if !h.decodeInto(w, r, &req) {
		return
	}
	receipt, err := h.svc.Broadcast(r.Context(), targetFrom(r.Context()), req.Topics, req.Tag, req.Message)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, receipt, http.StatusOK)
}

// PrivateMessage handles POST /node/PrivateMessage
func (h *Handler) PrivateMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DID    string          `json:"did"`
		Tag    string          `json:"tag"`
		Topics string          `json:"topics"`
		Log    json.RawMessage `json:"log"`
	}
	if !h.decodeInto(w, r, &req) {
		return
	}
	receipt, err := h.svc.Private(r.Context(), targetFrom(r.Context()), req.DID, req.Topics, req.Tag, req.Log)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, receipt, http.StatusOK)
}

// GetBroadcastMessage handles GET /node/GetBroadcastMessage
func (h *Handler) GetBroadcastMessage(w http.ResponseWriter, r *http.Request) {
	h.listMessages(w, r, "broadcast")
}

// GetPrivateMessage handles GET /node/GetPrivateMessage
func (h *Handler) GetPrivateMessage(w http.ResponseWriter, r *http.Request) {
	h.listMessages(w, r, "private")
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request, msgType string) {
	msgs, err := h.svc.Messages(r.Context(), targetFrom(r.Context()), msgType)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondRaw(w, msgs, http.StatusOK)
}

// GetMsgData handles GET /node/GetMsgData?id=...
func (h *Handler) GetMsgData(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.MsgData(r.Context(), targetFrom(r.Context()), r.URL.Query().Get("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, item, http.StatusOK)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"service":   "log-gateway",
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// readBody reads and bounds the raw request body.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, "Request body too large or unreadable", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return raw, true
}

// decodeBody parses a JSON object body; an empty body is an empty object.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return nil, false
	}
	body := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			h.respondError(w, "Bad Request: invalid JSON format", http.StatusBadRequest)
			return nil, false
		}
	}
	return body, true
}

func (h *Handler) decodeInto(w http.ResponseWriter, r *http.Request, dst any) bool {
	raw, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		h.respondError(w, "Bad Request: invalid JSON format", http.StatusBadRequest)
		return false
	}
	return true
}

// respondServiceError maps service errors onto the HTTP taxonomy:
// validation 400, missing blob 404, everything else 500 with the best
// available upstream message.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		h.respondError(w, err.Error(), http.StatusBadRequest)
	case core.IsNotFound(err):
		h.respondError(w, err.Error(), http.StatusNotFound)
	default:
		h.respondError(w, upstreamMessage(err), http.StatusInternalServerError)
	}
}

// upstreamMessage prefers the structured upstream error detail, then the
// exception message, then a fixed fallback.
func upstreamMessage(err error) string {
	var ue *types.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return "unknown error"
}

// respondJSON sends JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON response: %v", err)
		// Cannot send error to client at this point
	}
}

// respondRaw relays an upstream JSON document untouched.
func (h *Handler) respondRaw(w http.ResponseWriter, raw json.RawMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if _, err := w.Write(raw); err != nil {
		h.logger.Printf("Failed to write response: %v", err)
	}
}

// respondError sends error response
func (h *Handler) respondError(w http.ResponseWriter, message string, statusCode int) {
	errorResp := map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"message": http.StatusText(statusCode),
	}

	h.respondJSON(w, errorResp, statusCode)
}
