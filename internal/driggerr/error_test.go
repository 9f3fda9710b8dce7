package driggerr

import "testing"

func allConstructedErrors() []*Error {
	return []*Error{
		InvalidArgument("x"),
		InvalidArgumentForCommand("x", "recurring"),
		InvalidImportFormat("x", "ndjson"),
		ImportSchemaMismatch([]string{"a"}, []string{"b"}, []string{"c"}),
		ImportValidationFailed(1, nil, nil),
		ImportIDNotFound("imp_x"),
		ImportDuplicatesIDNotFound("imp_x"),
		ImportAlreadyReverted("imp_x"),
		UnknownView("v1_x"),
		LedgerLocked("/tmp/x"),
		LedgerCorrupt("/tmp/x"),
		LedgerInitPermissionDenied("/tmp/x", "detail"),
		MigrationFailed("/tmp/x", "detail"),
		LedgerInitFailed("/tmp/x", "detail"),
		InternalSerialization("detail"),
	}
}

func TestEveryConstructorCarriesRecoverySteps(t *testing.T) {
	for _, err := range allConstructedErrors() {
		if len(err.RecoverySteps) == 0 {
			t.Errorf("%s: recovery steps must be non-empty", err.Code)
		}
		if err.Message == "" {
			t.Errorf("%s: message must be non-empty", err.Code)
		}
	}
}

func TestExitCodeClassification(t *testing.T) {
	cases := []struct {
		err  *Error
		code int
	}{
		{InvalidArgument("x"), 1},
		{InvalidImportFormat("x", "unknown"), 1},
		{ImportSchemaMismatch(nil, nil, nil), 1},
		{ImportValidationFailed(1, nil, nil), 1},
		{ImportIDNotFound("imp_x"), 1},
		{ImportAlreadyReverted("imp_x"), 1},
		{UnknownView("v1_x"), 1},
		{LedgerLocked("/tmp/x"), 2},
		{LedgerCorrupt("/tmp/x"), 2},
		{LedgerInitPermissionDenied("/tmp/x", "d"), 2},
		{MigrationFailed("/tmp/x", "d"), 2},
		{LedgerInitFailed("/tmp/x", "d"), 2},
		{InternalSerialization("d"), 2},
	}
	for _, tc := range cases {
		if got := tc.err.ExitCode(); got != tc.code {
			t.Errorf("%s: exit code %d, want %d", tc.err.Code, got, tc.code)
		}
	}
}

func TestWithImportHelpMergesData(t *testing.T) {
	err := InvalidArgument("x").WithImportHelpData(map[string]any{"k": "v"})
	data, ok := err.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected map data, got %T", err.Data)
	}
	if data["k"] != "v" {
		t.Errorf("caller data lost")
	}
	if data["help_command"] != ImportHelpCommand {
		t.Errorf("help hint missing")
	}
}
