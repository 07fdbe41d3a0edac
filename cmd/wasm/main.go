//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/noisetex/internal/preview"
)

// renderTexture is called from JavaScript with a JSON request and returns a
// JSON response holding the PNG data URL.
func renderTexture(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return `{"error":"missing arguments"}`
	}
	return preview.Handle(context.Background(), args[0].String())
}

// defaults returns the default layer and palette so the page can build its
// controls.
func defaults(this js.Value, args []js.Value) interface{} {
	return preview.Defaults()
}

func main() {
	c := make(chan struct{})

	js.Global().Set("noisetexRender", js.FuncOf(renderTexture))
	js.Global().Set("noisetexDefaults", js.FuncOf(defaults))

	fmt.Println("noisetex WASM module loaded")
	<-c
}
