package bridge

import (
	"context"
	"fmt"

	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/wire"
)

// Adapter is the host surface the engine calls into. It decodes the
// engine's arguments, dispatches through the callback registry and encodes
// the result.
type Adapter struct {
	bridge *Bridge
}

var _ session.Callbacks = (*Adapter)(nil)

// InvokeByID calls a registered host callable. When hasKeywords is true the
// last argument must be a struct of keyword arguments. A registry miss is
// returned to the engine as an error.
func (a *Adapter) InvokeByID(ctx context.Context, id string, args []wire.Value, hasKeywords bool) (wire.Value, error) {
	hostArgs, kwargs, err := a.decodeArgs(ctx, args, hasKeywords)
	if err != nil {
		return nil, err
	}
	a.bridge.logger.Debug("host callback", "id", id, "args", len(hostArgs), "kwargs", len(kwargs))

	result, err := a.bridge.registry.Call(ctx, id, hostArgs, kwargs)
	if err != nil {
		return nil, err
	}
	return a.bridge.Encode(ctx, result)
}

// CallObjectMethod calls a method of a host class instance.
func (a *Adapter) CallObjectMethod(ctx context.Context, key, method string, args []wire.Value) (wire.Value, error) {
	hostArgs, err := a.bridge.DecodeAll(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := a.bridge.registry.CallObjectMethod(ctx, key, method, hostArgs, nil)
	if err != nil {
		return nil, err
	}
	return a.bridge.Encode(ctx, result)
}

// ObjectProperty reads a property of a host class instance.
func (a *Adapter) ObjectProperty(ctx context.Context, key, name string) (wire.Value, error) {
	result, err := a.bridge.registry.ObjectProperty(ctx, key, name)
	if err != nil {
		return nil, err
	}
	return a.bridge.Encode(ctx, result)
}

// RemoveObject drops a host class instance.
func (a *Adapter) RemoveObject(_ context.Context, key string) error {
	return a.bridge.registry.RemoveObject(key)
}

func (a *Adapter) decodeArgs(ctx context.Context, args []wire.Value, hasKeywords bool) ([]any, map[string]any, error) {
	var kwargs map[string]any
	if hasKeywords {
		if len(args) == 0 {
			return nil, nil, fmt.Errorf("keyword arguments flagged but no arguments given")
		}
		st, ok := args[len(args)-1].(wire.Struct)
		if !ok {
			return nil, nil, unexpectedValue("keyword arguments", args[len(args)-1])
		}
		d, err := a.bridge.Decode(ctx, st)
		if err != nil {
			return nil, nil, err
		}
		kwargs = d.(map[string]any)
		args = args[:len(args)-1]
	}
	hostArgs, err := a.bridge.DecodeAll(ctx, args)
	if err != nil {
		return nil, nil, err
	}
	return hostArgs, kwargs, nil
}
