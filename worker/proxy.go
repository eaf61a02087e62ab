//go:build js && wasm

package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"syscall/js"

	"github.com/andesco/tagladder/pkg/taglib"
)

// The Workers fetch API resolves subrequests to the same URL against the
// origin, so the inbound URL is forwarded as is.
var injector = taglib.NewInjector(0)

func proxyHandler(request, env js.Value) (js.Value, error) {
	req, err := toHTTPRequest(request)
	if err != nil {
		log.Printf("ERROR: Could not convert request: %v", err)
		return createErrorResponse(400, err.Error()), nil
	}

	resp, err := injector.Handle(req, configFromEnv(env))
	if err != nil {
		log.Printf("ERROR: %v", err)
		return createErrorResponse(502, err.Error()), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return createErrorResponse(502, err.Error()), nil
	}

	headers := js.Global().Get("Headers").New()
	for key, values := range resp.Header {
		for _, value := range values {
			headers.Call("append", key, value)
		}
	}

	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", resp.StatusCode)
	responseInit.Set("statusText", resp.StatusText)
	responseInit.Set("headers", headers)

	return js.Global().Get("Response").New(jsBody(resp.StatusCode, body), responseInit), nil
}

// configFromEnv reads the tracking identifiers from the Worker bindings.
func configFromEnv(env js.Value) taglib.InjectionConfig {
	return taglib.InjectionConfig{
		taglib.ServiceLytics: getEnvVar(env, "LYTICS_TAG_ID", ""),
		taglib.ServiceGtag:   getEnvVar(env, "GA_MEASUREMENT_ID", ""),
	}
}

func toHTTPRequest(request js.Value) (*http.Request, error) {
	method := request.Get("method").String()
	reqURL := request.Get("url").String()

	var body io.Reader = http.NoBody
	if method != http.MethodGet && method != http.MethodHead && !request.Get("body").IsNull() {
		buf, err := await(request.Call("arrayBuffer"))
		if err != nil {
			return nil, fmt.Errorf("error reading request body: %w", err)
		}
		data := make([]byte, buf.Get("byteLength").Int())
		js.CopyBytesToGo(data, js.Global().Get("Uint8Array").New(buf))
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating origin request for '%s': %w", reqURL, err)
	}
	// fetch follows redirects unless told otherwise; CheckRedirect is not
	// consulted by the js transport
	req.Header.Set("js.fetch:redirect", "manual")

	cb := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		req.Header.Add(args[1].String(), args[0].String())
		return nil
	})
	defer cb.Release()
	request.Get("headers").Call("forEach", cb)

	return req, nil
}

// jsBody returns null for statuses the Response constructor rejects a body for.
func jsBody(status int, body []byte) js.Value {
	switch status {
	case 101, 204, 205, 304:
		return js.Null()
	}
	arr := js.Global().Get("Uint8Array").New(len(body))
	js.CopyBytesToJS(arr, body)
	return arr
}

// await blocks the calling goroutine until promise settles.
func await(promise js.Value) (js.Value, error) {
	done := make(chan js.Value, 1)
	failed := make(chan error, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		done <- args[0]
		return nil
	})
	defer onResolve.Release()
	onReject := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		failed <- js.Error{Value: args[0]}
		return nil
	})
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)

	select {
	case v := <-done:
		return v, nil
	case err := <-failed:
		return js.Undefined(), err
	}
}

// Utility function to create error responses for Workers
func createErrorResponse(status int, message string) js.Value {
	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", status)
	responseInit.Set("statusText", message)

	headers := js.Global().Get("Object").New()
	headers.Set("Content-Type", "text/plain")
	responseInit.Set("headers", headers)

	return js.Global().Get("Response").New(message, responseInit)
}

func getEnvVar(env js.Value, key, fallback string) string {
	if !env.IsUndefined() && !env.Get(key).IsUndefined() {
		return env.Get(key).String()
	}
	return fallback
}
