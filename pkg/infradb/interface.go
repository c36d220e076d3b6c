// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.
// Copyright (C) 2023 Nordix Foundation.

package infradb

import (
	"strconv"
	"sync/atomic"
	"time"
)

// StoredObject is an object kept in the store and realized by the modules
type StoredObject interface {
	GetName() string
	GetResourceVersion() string
}

var lastVersion atomic.Int64

// generateVersion returns a microsecond timestamp. Versions never repeat, a change
// made in the same microsecond as the previous one gets the next value.
func generateVersion() string {
	now := time.Now().UTC().UnixMicro()
	for {
		last := lastVersion.Load()
		if now <= last {
			now = last + 1
		}
		if lastVersion.CompareAndSwap(last, now) {
			return strconv.FormatInt(now, 10)
		}
	}
}
