// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bootstrap lists the ports created when the daemon starts
type Bootstrap struct {
	Ports  []string `yaml:"ports"`
	Uplink string   `yaml:"uplink"`
}

// ReadBootstrap reads a bootstrap file
func ReadBootstrap(filename string) (*Bootstrap, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseBootstrap(data)
}

// ParseBootstrap decodes the content of a bootstrap file
func ParseBootstrap(data []byte) (*Bootstrap, error) {
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &b, nil
}
