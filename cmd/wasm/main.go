//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"syscall/js"

	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorInvalidInput
	ErrorInvalidState
	ErrorInternal
)

func errorCode(err error) int {
	switch {
	case errors.Is(err, snippetdna.ErrInvalidInput):
		return ErrorInvalidInput
	case errors.Is(err, snippetdna.ErrInvalidState):
		return ErrorInvalidState
	default:
		return ErrorInternal
	}
}

func makeResponse(data interface{}) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

// Handles can exceed 2^53, so they travel as decimal strings. Plain numbers
// are accepted on the way in.
func handleToJS(h snippetdna.Handle) string {
	return strconv.FormatUint(uint64(h), 10)
}

func handleFromJS(v js.Value) (snippetdna.Handle, error) {
	var s string
	switch v.Type() {
	case js.TypeString:
		s = v.String()
	case js.TypeNumber:
		s = strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		return 0, fmt.Errorf("handle must be a string or number")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q", s)
	}
	return snippetdna.Handle(n), nil
}

func bytesFromJS(v js.Value) ([]byte, error) {
	if v.Type() != js.TypeObject || v.Get("byteLength").Type() != js.TypeNumber {
		return nil, fmt.Errorf("pcm must be a Uint8Array")
	}
	buf := make([]byte, v.Get("byteLength").Int())
	js.CopyBytesToGo(buf, v)
	return buf, nil
}

// newCtx opens a session and returns its handle.
// Returns: {error: number, data: string}
func newCtx(this js.Value, args []js.Value) interface{} {
	h, err := snippetdna.DefaultRegistry.CreateSession()
	if err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}
	return makeResponse(handleToJS(h))
}

// dbAdd adds a reference: (handle, label, Uint8Array of s16le mono PCM).
func dbAdd(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: handle, label, pcm")
	}
	h, err := handleFromJS(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	if args[1].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "label must be a string")
	}
	pcm, err := bytesFromJS(args[2])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	if err := snippetdna.DefaultRegistry.AddReference(h, args[1].String(), pcm); err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}
	return makeResponse(true)
}

// streamWrite pushes a chunk: (handle, Uint8Array).
func streamWrite(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: handle, pcm")
	}
	h, err := handleFromJS(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	pcm, err := bytesFromJS(args[1])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	if err := snippetdna.DefaultRegistry.Write(h, pcm); err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}
	return makeResponse(true)
}

func streamClose(this js.Value, args []js.Value) interface{} {
	return withHandle(args, snippetdna.DefaultRegistry.Close)
}

func release(this js.Value, args []js.Value) interface{} {
	return withHandle(args, snippetdna.DefaultRegistry.Release)
}

func withHandle(args []js.Value, fn func(snippetdna.Handle) error) interface{} {
	if len(args) < 1 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: handle")
	}
	h, err := handleFromJS(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	if err := fn(h); err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}
	return makeResponse(true)
}

// streamNext returns a Promise resolving to {value: {label, score, position}}
// or {done: true} once the closed stream is drained.
func streamNext(this js.Value, args []js.Value) interface{} {
	var (
		h      snippetdna.Handle
		argErr error
	)
	if len(args) < 1 {
		argErr = errors.New("expected 1 argument: handle")
	} else {
		h, argErr = handleFromJS(args[0])
	}

	var executor js.Func
	executor = js.FuncOf(func(this js.Value, p []js.Value) interface{} {
		resolve, reject := p[0], p[1]
		executor.Release()
		if argErr != nil {
			reject.Invoke(js.Global().Get("Error").New(argErr.Error()))
			return nil
		}

		// Pulls may wait, and js callbacks must not block.
		go func() {
			ev, err := snippetdna.DefaultRegistry.NextEvent(context.Background(), h)
			switch {
			case errors.Is(err, snippetdna.ErrEndOfStream):
				result := js.Global().Get("Object").New()
				result.Set("done", true)
				resolve.Invoke(result)
			case err != nil:
				jsErr := js.Global().Get("Error").New(err.Error())
				jsErr.Set("code", errorCode(err))
				reject.Invoke(jsErr)
			default:
				result := js.Global().Get("Object").New()
				result.Set("done", false)
				result.Set("value", eventToJS(ev))
				resolve.Invoke(result)
			}
		}()
		return nil
	})
	return js.Global().Get("Promise").New(executor)
}

func eventToJS(ev models.MatchEvent) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("label", ev.Label)
	obj.Set("score", ev.Score)
	obj.Set("position", ev.Position)
	return obj
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🔧 SnippetDNA WASM module initializing...")
	}

	done := make(chan struct{})

	exports := map[string]func(js.Value, []js.Value) interface{}{
		"new_ctx":      newCtx,
		"db_add":       dbAdd,
		"stream_write": streamWrite,
		"stream_close": streamClose,
		"stream_next":  streamNext,
		"release":      release,
	}
	module := js.Global().Get("Object").New()
	for name, fn := range exports {
		module.Set(name, js.FuncOf(fn))
	}
	js.Global().Set("snippetdna", module)

	if !console.IsUndefined() {
		console.Call("log", "📝 snippetdna functions registered")
	}

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ SnippetDNA WASM module loaded and ready")
	}

	<-done
}
