// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

//go:build tools

// Package tools pins the versions of the tools used to build and check the code
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/vektra/mockery/v2"
)
