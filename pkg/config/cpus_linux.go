// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

//go:build linux

package config

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// UsableCPUs returns the number of CPUs the process may run on
func UsableCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	if n := set.Count(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
