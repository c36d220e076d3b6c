// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package common holds the status types shared by stored objects and the
// modules that realize them
package common

import (
	"time"
)

// ComponentStatus is the outcome a module reported for an object
type ComponentStatus int

// Component statuses
const (
	ComponentStatusUnspecified ComponentStatus = iota + 1
	ComponentStatusPending
	ComponentStatusSuccess
	ComponentStatusError
)

func (s ComponentStatus) String() string {
	switch s {
	case ComponentStatusPending:
		return "pending"
	case ComponentStatusSuccess:
		return "success"
	case ComponentStatusError:
		return "error"
	default:
		return "unspecified"
	}
}

// initialRetry is the first retry delay after a failure
const initialRetry = 2 * time.Second

// maxRetry caps the retry delay
const maxRetry = time.Minute

// Component is the status one module keeps for an object
type Component struct {
	Name       string
	CompStatus ComponentStatus
	// Free format json string
	Details string
	Timer   time.Duration
}

// Succeeded marks the component done
func (c *Component) Succeeded() {
	c.CompStatus = ComponentStatusSuccess
	c.Details = ""
	c.Timer = 0
}

// Failed marks the component failed and doubles its retry delay
func (c *Component) Failed(details string) {
	c.CompStatus = ComponentStatusError
	c.Details = details
	switch {
	case c.Timer == 0:
		c.Timer = initialRetry
	case c.Timer*2 > maxRetry:
		c.Timer = maxRetry
	default:
		c.Timer *= 2
	}
}
