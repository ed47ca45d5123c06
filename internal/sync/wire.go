package sync

import "encoding/json"

// request is the envelope every command arrives in. Operation-specific
// fields are re-decoded from the raw message by the dispatcher.
type request struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type resultEnvelope struct {
	ID      int64      `json:"id"`
	Type    string     `json:"type"`
	Success bool       `json:"success"`
	Result  any        `json:"result,omitempty"`
	Error   *wireError `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eventEnvelope struct {
	ID    int64     `json:"id"`
	Type  string    `json:"type"`
	Event eventBody `json:"event"`
}

type eventBody struct {
	Data json.RawMessage `json:"data"`
}

func successResult(id int64, result any) resultEnvelope {
	return resultEnvelope{ID: id, Type: "result", Success: true, Result: result}
}

func errorResult(id int64, code, message string) resultEnvelope {
	return resultEnvelope{ID: id, Type: "result", Success: false, Error: &wireError{Code: code, Message: message}}
}
