package hook

import (
	"encoding/json"
	"fmt"
	"io"
)

// Protocol selects how a blocking decision is reported.
type Protocol string

const (
	// ProtocolJSON prints {"decision":"block","reason":...} and exits 0.
	ProtocolJSON Protocol = "json"
	// ProtocolExitCode prints the reason on stderr and exits 2.
	ProtocolExitCode Protocol = "exit-code"
)

// ExitBlock is the exit status of a block under ProtocolExitCode.
const ExitBlock = 2

type blockOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// WriteDecision encodes d and returns the process exit code. A pass writes
// nothing.
func WriteDecision(stdout, stderr io.Writer, d Decision, p Protocol) (int, error) {
	if !d.Block {
		return 0, nil
	}
	if p == ProtocolExitCode {
		if _, err := fmt.Fprintln(stderr, d.Reason); err != nil {
			return ExitBlock, fmt.Errorf("hook: write reason: %w", err)
		}
		return ExitBlock, nil
	}
	if err := json.NewEncoder(stdout).Encode(blockOutput{Decision: "block", Reason: d.Reason}); err != nil {
		return 0, fmt.Errorf("hook: encode decision: %w", err)
	}
	return 0, nil
}
