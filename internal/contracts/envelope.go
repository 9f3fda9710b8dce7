package contracts

import (
	"encoding/json"

	"github.com/mzxrai/driggsby/internal/driggerr"
)

// APIVersion tags every success envelope so downstream tools can detect
// contract drift.
const APIVersion = "0.4.0"

// SuccessEnvelope wraps a command's payload.
type SuccessEnvelope struct {
	OK      bool            `json:"ok"`
	Command string          `json:"command"`
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// FailureEnvelope wraps an error for rendering.
type FailureEnvelope struct {
	OK    bool          `json:"ok"`
	Error ErrorContract `json:"error"`
	Data  any           `json:"data,omitempty"`
}

// ErrorContract is the stable error shape: code, message, and a non-empty
// ordered list of concrete recovery steps.
type ErrorContract struct {
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	RecoverySteps []string `json:"recovery_steps"`
}

// Success serializes data into a SuccessEnvelope for the given command.
func Success(command string, data any) (*SuccessEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, driggerr.InternalSerialization(err.Error())
	}
	return &SuccessEnvelope{
		OK:      true,
		Command: command,
		Version: APIVersion,
		Data:    raw,
	}, nil
}

// FailureFromError converts a driggerr.Error into its wire envelope.
func FailureFromError(err *driggerr.Error) FailureEnvelope {
	return FailureEnvelope{
		OK: false,
		Error: ErrorContract{
			Code:          err.Code,
			Message:       err.Message,
			RecoverySteps: err.RecoverySteps,
		},
		Data: err.Data,
	}
}
