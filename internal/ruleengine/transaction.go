package ruleengine

import (
	"github.com/ironbee-go/engine/internal/action"
	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
)

// EventFunc is invoked by the event action to emit a structured audit
// record; the engine caller supplies the concrete sink (log line, audit
// DB row via internal/auditlog) when constructing a Transaction.
type EventFunc func(ruleID string, fields map[string]string)

// Transaction is the per-transaction evaluation context: arena, data
// store, and the block/capture/metadata scratch state actions mutate
// while a rule is firing. It implements action.TxContext directly —
// single-threaded-per-transaction (spec §5) makes resetting the
// current-rule scratch fields before each top-level rule evaluation race
// free.
type Transaction struct {
	ID  string
	arn *arena.Arena
	ds  *field.Store

	BlockKind       action.BlockKind
	BlockStatusCode int

	curRuleID        string
	curCapturePrefix string
	curSeverity      int
	curConfidence    int
	curTags          []string
	curMsg           string

	eventSink EventFunc
}

// NewTransaction creates a transaction arena as a child of parent (the
// owning connection's arena) and an empty data store.
func NewTransaction(id string, parent *arena.Arena, eventSink EventFunc) *Transaction {
	return &Transaction{
		ID:        id,
		arn:       parent.NewChild("tx-" + id),
		ds:        field.NewStore(),
		eventSink: eventSink,
	}
}

func (tx *Transaction) resetRuleScratch(id, capturePrefix string, severity, confidence int, tags []string, message string) {
	tx.curRuleID = id
	tx.curCapturePrefix = capturePrefix
	tx.curSeverity = severity
	tx.curConfidence = confidence
	tx.curTags = append([]string(nil), tags...)
	tx.curMsg = message
}

// action.TxContext implementation.

func (tx *Transaction) Store() *field.Store { return tx.ds }
func (tx *Transaction) Arena() *arena.Arena  { return tx.arn }
func (tx *Transaction) RuleID() string      { return tx.curRuleID }

func (tx *Transaction) SetBlock(kind action.BlockKind, statusCode int) {
	if kind > tx.BlockKind {
		tx.BlockKind = kind
		tx.BlockStatusCode = statusCode
	}
}

func (tx *Transaction) SetCapturePrefix(prefix string) { tx.curCapturePrefix = prefix }
func (tx *Transaction) SetSeverity(n int)              { tx.curSeverity = n }
func (tx *Transaction) SetConfidence(n int)            { tx.curConfidence = n }
func (tx *Transaction) AddTag(tag string)              { tx.curTags = append(tx.curTags, tag) }
func (tx *Transaction) SetMessage(msg string)          { tx.curMsg = msg }

func (tx *Transaction) EmitEvent(ruleID string, fields map[string]string) {
	if tx.eventSink == nil {
		return
	}
	merged := map[string]string{
		"tx_id": tx.ID,
	}
	if tx.curMsg != "" {
		merged["msg"] = tx.curMsg
	}
	for _, t := range tx.curTags {
		merged["tag:"+t] = "1"
	}
	for k, v := range fields {
		merged[k] = v
	}
	tx.eventSink(ruleID, merged)
}
