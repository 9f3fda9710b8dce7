package contracts

import (
	"encoding/json"
	"testing"

	"github.com/mzxrai/driggsby/internal/driggerr"
)

func TestSuccessEnvelopeShape(t *testing.T) {
	envelope, err := Success("import list", []string{"a"})
	if err != nil {
		t.Fatalf("Success: %v", err)
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["ok"] != true {
		t.Errorf("ok must be true")
	}
	if decoded["command"] != "import list" {
		t.Errorf("unexpected command %v", decoded["command"])
	}
	if _, ok := decoded["data"].([]any); !ok {
		t.Errorf("data must round-trip as the original array")
	}
}

func TestFailureEnvelopeCarriesRecoverySteps(t *testing.T) {
	failure := FailureFromError(driggerr.ImportIDNotFound("imp_x"))
	if failure.OK {
		t.Errorf("ok must be false")
	}
	if failure.Error.Code != "import_id_not_found" {
		t.Errorf("unexpected code %s", failure.Error.Code)
	}
	if len(failure.Error.RecoverySteps) == 0 {
		t.Errorf("recovery steps must never be empty")
	}
	if failure.Data == nil {
		t.Errorf("structured data lost")
	}
}

