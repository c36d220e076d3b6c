// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package utils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// ServerTLSConfig contains paths to the files the gRPC server needs for mutual TLS
type ServerTLSConfig struct {
	ServerCertPath string
	ServerKeyPath  string
	CaCertPath     string
}

// ParseTLSFiles splits a server_cert:server_key:ca_cert string
func ParseTLSFiles(tlsFiles string) (ServerTLSConfig, error) {
	files := strings.Split(tlsFiles, ":")
	if len(files) != 3 {
		return ServerTLSConfig{}, fmt.Errorf("wrong number of path entries provided, expected 3 got %d", len(files))
	}
	cfg := ServerTLSConfig{
		ServerCertPath: files[0],
		ServerKeyPath:  files[1],
		CaCertPath:     files[2],
	}
	if cfg.ServerCertPath == "" || cfg.ServerKeyPath == "" || cfg.CaCertPath == "" {
		return ServerTLSConfig{}, errors.New("empty path entry provided")
	}
	return cfg, nil
}

// SetupTLSCredentials returns a server option requiring and verifying client certificates
func SetupTLSCredentials(config ServerTLSConfig) (grpc.ServerOption, error) {
	serverCert, err := tls.LoadX509KeyPair(config.ServerCertPath, config.ServerKeyPath)
	if err != nil {
		return nil, err
	}
	caCert, err := os.ReadFile(config.CaCertPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to add ca certificate")
	}
	c := &tls.Config{
		ClientAuth:   tls.RequireAndVerifyClientCert,
		Certificates: []tls.Certificate{serverCert},
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}
	return grpc.Creds(credentials.NewTLS(c)), nil
}
