package isolated

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/toolcompile/code"
)

// maxMessageBytes bounds a single protocol line.
const maxMessageBytes = 64 << 20

// Serve runs the worker side of the protocol: it reads requests from r,
// drives h and writes responses to w. A worker holds at most one module.
// Serve returns nil after an unload request or when r reaches EOF.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h code.Host) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxMessageBytes)
	enc := json.NewEncoder(w)

	var mod code.Module
	defer func() {
		if mod != nil && mod.Loaded() {
			_ = h.Unload(mod)
		}
	}()

	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return fmt.Errorf("decoding request: %w", err)
		}
		resp := response{ID: req.ID}

		switch req.Op {
		case opLoad:
			if mod != nil {
				resp.Error = "worker already holds a module"
				break
			}
			m, err := h.Load(ctx, &code.Artifact{Name: req.Name, Kind: req.Kind, Image: req.Image})
			if err != nil {
				resp.Error = err.Error()
				break
			}
			mod = m
			resp.EntryPoints = m.EntryPoints()

		case opInvoke:
			if mod == nil || req.Invoke == nil {
				res := code.Failed(code.FailureInvalidHandle, "worker holds no module")
				resp.Result = &res
				break
			}
			ir, err := req.Invoke.request()
			if err != nil {
				res := code.Failed(code.FailureArgumentMismatch, "%v", err)
				resp.Result = &res
				break
			}
			res := h.Invoke(ctx, mod, ir)
			res.Value = portable(res.Value)
			resp.Result = &res

		case opUnload:
			if err := enc.Encode(resp); err != nil {
				return err
			}
			return nil

		default:
			resp.Error = fmt.Sprintf("unknown op %q", req.Op)
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
