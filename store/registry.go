package store

import (
	"context"
	"fmt"
)

// Factory produces a Store from a piece of configuration,
// typically the parsed form of a JSON object.
type Factory func(context.Context, map[string]interface{}) (Store, error)

var registry = make(map[string]Factory)

// Register associates a key with a Factory.
// Backends call this from their init functions;
// importing a backend package is what makes its key available to Create.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create produces a Store using the Factory registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (Store, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}
