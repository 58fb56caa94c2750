package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"logshare/internal/messaging/producer"
	"logshare/internal/models"
	"logshare/internal/orgs"
	"logshare/ledger/client"
	"logshare/ledger/types"
)

// Contract operation names of the shared security-log contract.
const (
	opCreateLog     = "CreateLogWithAttachment"
	opUpdateLog     = "UpdateLog"
	opDeleteLog     = "DeleteLog"
	opAddAttachment = "AddAttachmentToLog"
	opPurgeByTime   = "PurgeLogsByTime"
)

// queryOps maps gateway query names to contract read functions.
var queryOps = map[string]string{
	"GetAllLogs":             "GetAllLogs",
	"GetLog":                 "ReadLog",
	"CountBySeverity":        "CountBySeverity",
	"CountByAttackType":      "CountByAttackType",
	"GetLogHistory":          "GetLogHistory",
	"TimeRange":              "GetLogsByTimeRange",
	"GetLogsBySeverity":      "GetLogsBySeverity",
	"GetLogsWithAttachments": "GetLogsWithAttachments",
	"GetLogsBySubmitter":     "GetLogsBySubmitter",
	"GetAllLogsPaginated":    "GetAllLogsPaginated",
}

// Clients builds per-request middleware handles. Satisfied by
// client.Factory; tests substitute stubs.
type Clients interface {
	Node(endpoint, namespace, api string) client.Node
	ContractInvoker(endpoint, namespace, api string) client.Invoker
}

// Attachment is an inbound binary file from a multipart request.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// CreateLogInput carries the business fields of a new log record.
type CreateLogInput struct {
	AttackType  string
	SourceIP    string
	Severity    string
	Description string
	Attachment  *Attachment
}

// Service encapsulates the org-scoped gateway operations. It is stateless
// across requests; every call resolves its own middleware handles.
type Service struct {
	clients  Clients
	producer producer.Producer // nil disables the mutation mirror
	logger   *log.Logger
}

// NewService creates a new Service instance
func NewService(c Clients, p producer.Producer, l *log.Logger) *Service {
	return &Service{clients: c, producer: p, logger: l}
}

func (s *Service) node(t orgs.Target) client.Node {
	return s.clients.Node(t.Endpoint, t.Namespace, t.API)
}

func (s *Service) invoker(t orgs.Target) client.Invoker {
	return s.clients.ContractInvoker(t.Endpoint, t.Namespace, t.API)
}

// CreateLog validates the input, pushes the optional attachment through the
// upload-then-publish sequence, submits the record to the ledger, then
// announces it. Validation failures never reach the ledger; a failed
// announcement never fails the create.
func (s *Service) CreateLog(ctx context.Context, target orgs.Target, in *CreateLogInput) (*types.TxReceipt, error) {
	if in.AttackType == "" {
		return nil, &ValidationError{Msg: "attackType is required"}
	}
	if in.SourceIP == "" {
		return nil, &ValidationError{Msg: "sourceIP is required"}
	}
	if in.Severity == "" {
		return nil, &ValidationError{Msg: "severity is required"}
	}
	if !types.ValidSeverity(in.Severity) {
		return nil, &ValidationError{Msg: fmt.Sprintf("severity must be one of %v", types.Severities)}
	}

	node := s.node(target)

	attachmentHash := ""
	if in.Attachment != nil {
		hash, err := s.uploadAndPublish(ctx, node, in.Attachment)
		if err != nil {
			return nil, err
		}
		attachmentHash = hash
	}

	input := map[string]any{
		"attackType":     in.AttackType,
		"sourceIP":       in.SourceIP,
		"severity":       in.Severity,
		"description":    in.Description,
		"attachmentHash": attachmentHash,
	}
	receipt, err := s.invoker(target).Invoke(ctx, opCreateLog, input)
	if err != nil {
		return nil, err
	}

	notice := &types.MessageIn{
		Header: types.MessageHeader{Tag: "new_log_created"},
		Data:   []types.MessageData{{Value: mustJSON(input)}},
	}
	if attachmentHash != "" {
		notice.Data = append(notice.Data, types.MessageData{ID: attachmentHash})
	}
	s.notify(ctx, node, notice)
	s.mirror(ctx, target, opCreateLog, "", attachmentHash, receipt.TransactionID)

	return receipt, nil
}

// UpdateLog submits an update of the mutable business fields.
func (s *Service) UpdateLog(ctx context.Context, target orgs.Target, body map[string]any) (*types.TxReceipt, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, &ValidationError{Msg: "id is required"}
	}
	receipt, err := s.invoker(target).Invoke(ctx, opUpdateLog, body)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, target, opUpdateLog, id, "", receipt.TransactionID)
	return receipt, nil
}

// DeleteLog submits a tombstone for the record.
func (s *Service) DeleteLog(ctx context.Context, target orgs.Target, body map[string]any) (*types.TxReceipt, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, &ValidationError{Msg: "id is required"}
	}
	receipt, err := s.invoker(target).Invoke(ctx, opDeleteLog, body)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, target, opDeleteLog, id, "", receipt.TransactionID)
	return receipt, nil
}

// AddAttachment uploads and publishes a new blob, then associates it with
// an existing log record and announces the association.
func (s *Service) AddAttachment(ctx context.Context, target orgs.Target, logID string, att *Attachment) (*types.TxReceipt, error) {
	if logID == "" {
		return nil, &ValidationError{Msg: "logId is required"}
	}
	if att == nil {
		return nil, &ValidationError{Msg: "an attachment file is required"}
	}

	node := s.node(target)
	hash, err := s.uploadAndPublish(ctx, node, att)
	if err != nil {
		return nil, err
	}

	input := map[string]any{"id": logID, "attachmentHash": hash}
	receipt, err := s.invoker(target).Invoke(ctx, opAddAttachment, input)
	if err != nil {
		return nil, err
	}

	notice := &types.MessageIn{
		Header: types.MessageHeader{Tag: "log_attachment_added"},
		Data: []types.MessageData{
			{Value: mustJSON(map[string]string{"logId": logID, "newAttachmentId": hash})},
			{ID: hash},
		},
	}
	s.notify(ctx, node, notice)
	s.mirror(ctx, target, opAddAttachment, logID, hash, receipt.TransactionID)

	return receipt, nil
}

// PurgeLogsByTime removes all records older than the given Unix time.
func (s *Service) PurgeLogsByTime(ctx context.Context, target orgs.Target, body map[string]any) (*types.TxReceipt, error) {
	receipt, err := s.invoker(target).Invoke(ctx, opPurgeByTime, body)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, target, opPurgeByTime, "", "", receipt.TransactionID)
	return receipt, nil
}

// Query executes one of the known read operations and returns the raw
// contract result.
func (s *Service) Query(ctx context.Context, target orgs.Target, name string, params map[string]any) (json.RawMessage, error) {
	op, ok := queryOps[name]
	if !ok {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown query operation '%s'", name)}
	}
	return s.invoker(target).Query(ctx, op, params)
}

// Logs fetches and decodes the full record set for the organization.
func (s *Service) Logs(ctx context.Context, target orgs.Target) ([]types.LogRecord, error) {
	raw, err := s.invoker(target).Query(ctx, queryOps["GetAllLogs"], map[string]any{})
	if err != nil {
		return nil, err
	}
	var logs []types.LogRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &logs); err != nil {
			return nil, fmt.Errorf("failed to decode log records: %w", err)
		}
	}
	return logs, nil
}

// Download resolves a blob reference to its stored filename and a byte
// stream. The caller must close the stream.
func (s *Service) Download(ctx context.Context, target orgs.Target, id string) (string, io.ReadCloser, error) {
	node := s.node(target)

	item, err := node.GetData(ctx, id)
	if err != nil {
		if types.IsUpstreamNotFound(err) {
			return "", nil, &NotFoundError{Msg: fmt.Sprintf("no data found for id '%s'", id)}
		}
		return "", nil, err
	}
	if item.Blob == nil {
		return "", nil, &NotFoundError{Msg: fmt.Sprintf("no blob attached to data '%s'", id)}
	}

	filename := item.Blob.Name
	if filename == "" {
		filename = "attachment-" + id
	}

	stream, err := node.DownloadBlob(ctx, id)
	if err != nil {
		if types.IsUpstreamNotFound(err) {
			return "", nil, &NotFoundError{Msg: fmt.Sprintf("no blob found for id '%s'", id)}
		}
		return "", nil, err
	}
	return filename, stream, nil
}

// Broadcast wraps the payload into a message envelope visible to every
// organization. An empty tag gets a fixed placeholder.
func (s *Service) Broadcast(ctx context.Context, target orgs.Target, topic, tag string, payload json.RawMessage) (*types.MessageReceipt, error) {
	if tag == "" {
		tag = "generic_message"
	}
	msg := &types.MessageIn{
		Header: types.MessageHeader{Tag: tag},
		Data:   []types.MessageData{{Value: payload}},
	}
	if topic != "" {
		msg.Header.Topics = []string{topic}
	}
	return s.node(target).SendBroadcast(ctx, msg)
}

// Private sends the payload to a single recipient identity.
func (s *Service) Private(ctx context.Context, target orgs.Target, did, topic, tag string, payload json.RawMessage) (*types.MessageReceipt, error) {
	if did == "" {
		return nil, &ValidationError{Msg: "did is required"}
	}
	msg := &types.MessageIn{
		Header: types.MessageHeader{Tag: tag},
		Data:   []types.MessageData{{Value: payload}},
		Group: &types.MessageGroup{
			Members: []types.GroupMember{{Identity: did}},
		},
	}
	if topic != "" {
		msg.Header.Topics = []string{topic}
	}
	return s.node(target).SendPrivate(ctx, msg)
}

// Messages lists bus messages of the given type visible to the org's node.
func (s *Service) Messages(ctx context.Context, target orgs.Target, msgType string) (json.RawMessage, error) {
	return s.node(target).ListMessages(ctx, msgType)
}

// MsgData fetches a message's payload by data-element id.
func (s *Service) MsgData(ctx context.Context, target orgs.Target, id string) (*types.DataItem, error) {
	if id == "" {
		return nil, &ValidationError{Msg: "id is required"}
	}
	return s.node(target).GetData(ctx, id)
}

// NodeStatus returns the org node's identity/status document.
func (s *Service) NodeStatus(ctx context.Context, target orgs.Target) (json.RawMessage, error) {
	return s.node(target).Status(ctx)
}

// uploadAndPublish runs the two-phase blob sequence. Both steps must
// succeed before the id is usable; a publish failure fails the operation
// and leaves the uploaded blob orphaned on the node.
func (s *Service) uploadAndPublish(ctx context.Context, node client.Node, att *Attachment) (string, error) {
	item, err := node.UploadBlob(ctx, att.Filename, att.Content)
	if err != nil {
		return "", fmt.Errorf("attachment upload failed: %w", err)
	}
	if err := node.PublishBlob(ctx, item.ID); err != nil {
		return "", fmt.Errorf("attachment publish failed (blob %s orphaned): %w", item.ID, err)
	}
	return item.ID, nil
}

// notify sends an advisory broadcast; failure is logged, never propagated.
func (s *Service) notify(ctx context.Context, node client.Node, msg *types.MessageIn) {
	if _, err := node.SendBroadcast(ctx, msg); err != nil {
		s.logger.Printf("Warning: broadcast notice '%s' failed: %v", msg.Header.Tag, err)
	}
}

// mirror publishes a mutation event to Kafka, best effort.
func (s *Service) mirror(ctx context.Context, target orgs.Target, action, logID, attachmentID, txID string) {
	if s.producer == nil {
		return
	}
	event := &models.MutationEvent{
		RequestID:    uuid.NewString(),
		Org:          target.ID,
		Action:       action,
		LogID:        logID,
		AttachmentID: attachmentID,
		TxID:         txID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.producer.Publish(ctx, event); err != nil {
		s.logger.Printf("Warning: mutation mirror for %s failed: %v", action, err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(b)
}
