// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package storage abstracts the key value store the daemon persists its intent in
package storage

import (
	"fmt"

	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/gomap"
	"github.com/philippgille/gokv/redis"
)

// Database types accepted by NewStore
const (
	Redis = "redis"
	GoMap = "gomap"
)

// Store wraps the gokv client selected at startup
type Store struct {
	client gokv.Store
}

// NewStore connects to a store of type dbtype. address is ignored for the in
// memory store.
func NewStore(dbtype string, address string) (*Store, error) {
	var client gokv.Store
	switch dbtype {
	case Redis:
		options := redis.DefaultOptions
		options.Address = address
		options.Codec = encoding.JSON
		c, err := redis.NewClient(options)
		if err != nil {
			return nil, err
		}
		client = c
	case GoMap:
		options := gomap.DefaultOptions
		options.Codec = encoding.JSON
		client = gomap.NewStore(options)
	default:
		return nil, fmt.Errorf("unknown database type %q", dbtype)
	}
	return &Store{client: client}, nil
}

// GetClient returns the underlying gokv client
func (s *Store) GetClient() gokv.Store {
	return s.client
}
