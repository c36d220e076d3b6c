// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

//go:build !linux

package ethlink

import "github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"

// OpenRaw is only available on linux
func OpenRaw(int) (Conn, error) {
	return nil, vpc.ErrNotSupported
}
