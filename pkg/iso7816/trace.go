package iso7816

import (
	"fmt"
	"strings"
)

// TRANSACTION:
// One Command APDU sent by the terminal and the Response APDU the card
// returned for it (ISO 7816-3).
//
// TRACE:
// A chronological sequence of Transactions for one logical operation. Reading
// an eMRTD file is a SELECT followed by several READ BINARY exchanges; under
// secure messaging the trace holds the plain (unprotected) side of each one.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Describe renders one block per transaction.
func (t Trace) Describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== TRACE (%d exchanges) ===", len(t)))

	for i, tx := range t {
		sb.WriteString(fmt.Sprintf("\n[%d] ", i+1))
		if tx.Command != nil {
			sb.WriteString(">> " + tx.Command.String())
		}
		if tx.Response != nil {
			sb.WriteString(fmt.Sprintf("\n    << %s", tx.Response))
		}
	}

	return sb.String()
}
