// Package stdio is the line-delimited JSON framing adapter over the tool
// dispatcher. The teacher is HTTP-only (api/main.go), so this framing
// follows spec.md §1's wire contract directly: one JSON object per line
// in, one structured reply per line out, using only stdlib bufio and
// encoding/json since no pack repo carries a stdio JSON-RPC-ish library.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"tagcompliance/internal/dispatcher"
)

// request is one line of stdin: a tool call scoped to a session, with an
// optional caller-supplied correlation id.
type request struct {
	SessionID     string                 `json:"session_id"`
	Name          string                 `json:"name"`
	Arguments     map[string]interface{} `json:"arguments"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Serve reads one request per line from r until EOF or ctx is done,
// dispatches each through d, and writes one Response per line to w. A
// malformed line yields a validation-error Response rather than
// terminating the loop, so one bad line never kills the session.
func Serve(ctx context.Context, d *dispatcher.Dispatcher, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(dispatcher.Response{
				Status:  "rejected",
				Kind:    "validation-error",
				Message: "malformed request line",
			}); encErr != nil {
				return encErr
			}
			continue
		}

		if req.Arguments == nil {
			req.Arguments = map[string]interface{}{}
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		resp := d.Dispatch(ctx, req.SessionID, req.Name, req.Arguments, req.CorrelationID)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
