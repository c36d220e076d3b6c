// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

//go:build !linux

package config

import "runtime"

// UsableCPUs returns the number of CPUs the process may run on
func UsableCPUs() int {
	return runtime.NumCPU()
}
