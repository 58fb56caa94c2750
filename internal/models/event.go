package models

// MutationEvent mirrors one successful gateway mutation to off-chain
// consumers. It is advisory: the ledger remains the source of truth.
type MutationEvent struct {
	RequestID    string `json:"RequestID"`
	Org          string `json:"Org"`
	Action       string `json:"Action"` // contract operation name
	LogID        string `json:"LogID,omitempty"`
	AttachmentID string `json:"AttachmentID,omitempty"`
	TxID         string `json:"TxID,omitempty"`
	Timestamp    string `json:"Timestamp"` // RFC3339
}
