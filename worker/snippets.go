//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/andesco/tagladder/pkg/taglib"

	"gopkg.in/yaml.v3"
)

func snippetsHandler(env js.Value) js.Value {
	if getEnvVar(env, "EXPOSE_SNIPPETS", "true") == "false" {
		responseInit := js.Global().Get("Object").New()
		responseInit.Set("status", 403)
		responseInit.Set("statusText", "Forbidden")

		headers := js.Global().Get("Object").New()
		headers.Set("Content-Type", "text/plain")
		responseInit.Set("headers", headers)

		return js.Global().Get("Response").New("Snippets Disabled", responseInit)
	}

	body, err := yaml.Marshal(struct {
		Order    []taglib.Service `yaml:"order"`
		Snippets taglib.Payload   `yaml:"snippets"`
	}{
		Order:    taglib.Services(),
		Snippets: taglib.Assemble(configFromEnv(env)),
	})
	if err != nil {
		return createErrorResponse(500, err.Error())
	}

	headers := js.Global().Get("Object").New()
	headers.Set("Content-Type", "application/x-yaml")

	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", 200)
	responseInit.Set("headers", headers)

	return js.Global().Get("Response").New(string(body), responseInit)
}
