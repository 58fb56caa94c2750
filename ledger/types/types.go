package types

import "encoding/json"

// Severity levels accepted for a security log record.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Severities lists the accepted levels in ascending order.
var Severities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ValidSeverity reports whether s is one of the accepted severity levels.
func ValidSeverity(s string) bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// LogRecord is the security log entry as stored by the contract.
// Every mutation produces a new ledger revision of the same id.
type LogRecord struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	UnixTime       int64  `json:"unixTime"`
	AttackType     string `json:"attackType"`
	SourceIP       string `json:"sourceIp"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Submitter      string `json:"submitter"`
	AttachmentHash string `json:"attachmentHash"`
}

// HistoryRecord is one revision of a log record, tagged with the
// transaction that produced it.
type HistoryRecord struct {
	TxID      string     `json:"txId"`
	Timestamp string     `json:"timestamp"`
	Record    *LogRecord `json:"record"`
}

// TxReceipt is the submission result returned by a contract invoke.
type TxReceipt struct {
	TransactionID string          `json:"tx"`
	BlockHeight   uint64          `json:"blockHeight,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
}

// Blob describes an uploaded binary attachment. The ID is the
// content-addressed reference callers embed in a LogRecord.
type Blob struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// DataItem is a stored data element on the node, optionally backed by a blob.
type DataItem struct {
	ID        string          `json:"id"`
	Validator string          `json:"validator,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Blob      *Blob           `json:"blob,omitempty"`
}

// MessageHeader carries routing metadata for a bus message.
type MessageHeader struct {
	Tag    string   `json:"tag,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// MessageData is one data element attached to a message: either an inline
// JSON value or a reference to an already-stored data item.
type MessageData struct {
	ID    string          `json:"id,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// GroupMember identifies one recipient of a private message.
type GroupMember struct {
	Identity string `json:"identity"`
}

// MessageGroup is the recipient set of a private message.
type MessageGroup struct {
	Members []GroupMember `json:"members"`
}

// MessageIn is the envelope submitted to the messaging bus.
// Group is nil for broadcasts.
type MessageIn struct {
	Header MessageHeader `json:"header"`
	Data   []MessageData `json:"data"`
	Group  *MessageGroup `json:"group,omitempty"`
}

// MessageReceipt is the bus submission acknowledgement.
type MessageReceipt struct {
	ID     string        `json:"id"`
	Header MessageHeader `json:"header"`
	State  string        `json:"state,omitempty"`
}
