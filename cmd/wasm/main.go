//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/kittclouds/garagebook/internal/config"
	"github.com/kittclouds/garagebook/internal/dataset"
	"github.com/kittclouds/garagebook/internal/filesync"
	"github.com/kittclouds/garagebook/internal/logging"
	"github.com/kittclouds/garagebook/internal/store"
	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// Version info
const Version = "0.1.0"

// Global state
var syncer *filesync.Synchronizer

func main() {
	log, err := logging.New(config.LoggerConfig{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log = logging.Nop()
		println("[GarageBook] logger unavailable:", err.Error())
	}

	syncer = filesync.New(fsaccess.NewBrowserHost(), store.NewIDBStore(),
		filesync.WithLogger(log.WithComponent("filesync").SugaredLogger))
	println("[GarageBook] WASM Ready v" + Version)

	// Register exports
	js.Global().Set("GarageBook", js.ValueOf(map[string]interface{}{
		"version":                  js.FuncOf(getVersion),
		"initialize":               js.FuncOf(initialize),
		"loadConnectedFileContent": js.FuncOf(loadConnectedFileContent),
		"selectNewFile":            js.FuncOf(selectNewFile),
		"loadFromExistingFile":     js.FuncOf(loadFromExistingFile),
		"persist":                  js.FuncOf(persist),
		"isConnected":              js.FuncOf(isConnected),
		"supportsPersistence":      js.FuncOf(supportsPersistence),
		"state":                    js.FuncOf(state),
	}))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// initialize resolves to the dataset JSON: always the empty dataset, since
// reading needs a user gesture.
func initialize(this js.Value, args []js.Value) interface{} {
	return promise(func(ctx context.Context) (interface{}, error) {
		return encode(syncer.Initialize(ctx))
	})
}

// loadConnectedFileContent must be called from a click handler.
func loadConnectedFileContent(this js.Value, args []js.Value) interface{} {
	return promise(func(ctx context.Context) (interface{}, error) {
		d, err := syncer.LoadConnectedFileContent(ctx)
		if err != nil {
			return nil, err
		}
		return encode(d)
	})
}

func selectNewFile(this js.Value, args []js.Value) interface{} {
	return promise(func(ctx context.Context) (interface{}, error) {
		return syncer.SelectNewFile(ctx), nil
	})
}

// loadFromExistingFile resolves to the dataset JSON, or null when the user
// cancelled the picker.
func loadFromExistingFile(this js.Value, args []js.Value) interface{} {
	return promise(func(ctx context.Context) (interface{}, error) {
		d, err := syncer.LoadFromExistingFile(ctx)
		if err != nil || d == nil {
			return nil, err
		}
		return encode(*d)
	})
}

// persist: [datasetJSON string]
func persist(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("persist requires 1 argument: datasetJSON")
	}
	d, err := dataset.DecodeStrict(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return promise(func(ctx context.Context) (interface{}, error) {
		if err := syncer.Persist(ctx, d); err != nil {
			return nil, err
		}
		return successResult("saved"), nil
	})
}

func isConnected(this js.Value, args []js.Value) interface{} {
	return syncer.IsConnected()
}

func supportsPersistence(this js.Value, args []js.Value) interface{} {
	return syncer.SupportsPersistence()
}

func state(this js.Value, args []js.Value) interface{} {
	return syncer.State().String()
}

// promise runs fn on its own goroutine so it can await browser promises
// without blocking the event loop. Errors reject with the errorResult JSON.
func promise(fn func(ctx context.Context) (interface{}, error)) interface{} {
	var executor js.Func
	executor = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			defer executor.Release()
			v, err := fn(context.Background())
			if err != nil {
				reject.Invoke(errorResult(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(executor)
}

func encode(d dataset.Dataset) (interface{}, error) {
	b, err := dataset.Encode(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
