package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

func storeFromConfig(ctx context.Context, filename string) (store.Store, error) {
	var conf map[string]interface{}
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	err = dec.Decode(&conf)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding config file %s", filename)
	}

	typ, ok := conf["type"].(string)
	if !ok {
		return nil, fmt.Errorf("config file %s missing `type` parameter", filename)
	}

	return store.Create(ctx, typ, conf)
}

func (c maincmd) store(ctx context.Context) (store.Store, error) {
	return storeFromConfig(ctx, c.config)
}

func (c maincmd) anchorStore(ctx context.Context) (anchor.Store, error) {
	s, err := c.store(ctx)
	if err != nil {
		return nil, err
	}
	as, ok := s.(anchor.Store)
	if !ok {
		return nil, fmt.Errorf("%s configures a %T, which is not an anchor.Store", c.config, s)
	}
	return as, nil
}
