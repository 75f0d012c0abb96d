package nats

import (
	"time"

	"github.com/brojonat/blinks/service/actions"
)

// ActionEvent records that the service built an unsigned transaction.
// It is published to the subject "actions.{action}" in JetStream.
type ActionEvent struct {
	Action  string `json:"action"`
	Account string `json:"account"`
	Target  string `json:"target,omitempty"`

	// Amount is in UI units (SOL for donate and buy, the input token for swap).
	Amount string `json:"amount"`

	Blockhash        string `json:"blockhash"`
	InstructionCount int    `json:"instruction_count"`

	BuiltAt time.Time `json:"built_at"`
}

// Subject returns the subject an event for action is published to.
func Subject(action string) string {
	return "actions." + action
}

// FromResult converts a build result to an ActionEvent for publishing.
func FromResult(res *actions.Result) *ActionEvent {
	return &ActionEvent{
		Action:           string(res.Action),
		Account:          res.Account.String(),
		Target:           res.Target,
		Amount:           res.Amount.String(),
		Blockhash:        res.Blockhash.String(),
		InstructionCount: res.Instructions,
		BuiltAt:          time.Now().UTC(),
	}
}
