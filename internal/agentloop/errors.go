package agentloop

import (
	"encoding/json"
	"fmt"

	"github.com/nocodo/manager/internal/tools"
)

// unmarshalAskUserArgs decodes the raw ask_user request payload recorded
// on a ToolCallRecord back into its typed argument shape. Dispatch has
// already validated this payload once (it returns ErrAskUser only after a
// successful parse); this second decode keeps the loop from having to
// thread the parsed struct back out through tools.Result.
func unmarshalAskUserArgs(payload []byte, out *tools.AskUserArgs) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("invalid ask_user arguments: %w", err)
	}
	return nil
}
