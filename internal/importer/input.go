package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mzxrai/driggsby/internal/contracts"
	"github.com/mzxrai/driggsby/internal/driggerr"
)

// SourceKind labels where the import body came from.
type SourceKind string

const (
	SourceKindFile  SourceKind = "file"
	SourceKindStdin SourceKind = "stdin"
)

// ResolvedSource is the outcome of source resolution: the body to parse
// plus provenance the response echoes back.
type ResolvedSource struct {
	SourceKind     SourceKind
	SourceRef      *string
	Content        string
	SourceUsed     *string
	SourceIgnored  *string
	SourceConflict bool
	Warnings       []contracts.ImportWarning
}

// ResolveSource picks exactly one input source. Path `-` means stdin; a
// path plus non-empty stdin is a conflict; neither is an error. Stdin is
// only consulted when it is not an interactive terminal.
func ResolveSource(path *string, stdinOverride *string) (*ResolvedSource, error) {
	stdinBody, err := readStdin(stdinOverride)
	if err != nil {
		return nil, err
	}
	hasStdin := stdinBody != nil && strings.TrimSpace(*stdinBody) != ""

	if path != nil {
		if *path == "-" {
			if hasStdin {
				return &ResolvedSource{
					SourceKind: SourceKindStdin,
					Content:    *stdinBody,
					SourceUsed: stringPtr("stdin"),
					Warnings:   []contracts.ImportWarning{},
				}, nil
			}
			return nil, invalidInputError(
				"Path `-` means stdin input, but stdin was empty. Pipe JSON/CSV input or pass a file path.",
			)
		}

		fileBody, err := os.ReadFile(*path)
		if err != nil {
			return nil, driggerr.InvalidArgumentWithRecovery(
				fmt.Sprintf("Could not read import file `%s`: %v", *path, err),
				[]string{
					"Verify the path exists and is readable.",
					"Rerun driggsby import create <path>.",
				},
			)
		}

		if hasStdin {
			return nil, invalidInputError(
				"Both stdin and file input were provided. Pass exactly one source: either a file path or piped stdin.",
			)
		}

		return &ResolvedSource{
			SourceKind: SourceKindFile,
			SourceRef:  path,
			Content:    string(fileBody),
			SourceUsed: stringPtr("file"),
			Warnings:   []contracts.ImportWarning{},
		}, nil
	}

	if hasStdin {
		return &ResolvedSource{
			SourceKind: SourceKindStdin,
			Content:    *stdinBody,
			SourceUsed: stringPtr("stdin"),
			Warnings:   []contracts.ImportWarning{},
		}, nil
	}

	return nil, invalidInputError(
		"No import source provided. Pass a file path or pipe input via stdin.",
	)
}

func readStdin(stdinOverride *string) (*string, error) {
	if stdinOverride != nil {
		return stdinOverride, nil
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		// Interactive terminal (or unknowable): nothing was piped in.
		return nil, nil
	}

	buffer, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, driggerr.InvalidArgumentWithRecovery(
			fmt.Sprintf("Could not read stdin: %v", err),
			[]string{
				"Retry with an explicit file path argument.",
				"Or rerun with valid stdin content.",
			},
		)
	}

	body := string(buffer)
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	return &body, nil
}
