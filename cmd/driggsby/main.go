package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}

// emit renders a success envelope as JSON on stdout.
func emit(envelope *contracts.SuccessEnvelope) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		fail(driggerr.InternalSerialization(err.Error()))
	}
}

// fail renders a failure envelope on stdout and exits with the error's
// category code: 1 for caller-fixable problems, 2 for host/ledger
// problems.
func fail(err error) {
	var driggsbyErr *driggerr.Error
	if !errors.As(err, &driggsbyErr) {
		// Anything else reaching here is a cobra usage error.
		driggsbyErr = driggerr.InvalidArgument(err.Error())
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(contracts.FailureFromError(driggsbyErr)); encodeErr != nil {
		fmt.Fprintln(os.Stderr, driggsbyErr.Message)
	}
	os.Exit(driggsbyErr.ExitCode())
}
