// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package config holds the daemon configuration
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// SubscriberConfig assigns events to a module
type SubscriberConfig struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Priority int      `mapstructure:"priority" yaml:"priority"`
	Events   []string `mapstructure:"events" yaml:"events"`
}

// SwitchConfig describes the switch the daemon runs
type SwitchConfig struct {
	ID          string        `mapstructure:"id" yaml:"id"`
	Name        string        `mapstructure:"name" yaml:"name"`
	Vni         uint32        `mapstructure:"vni" yaml:"vni"`
	Cores       int           `mapstructure:"cores" yaml:"cores"`
	CacheWindow time.Duration `mapstructure:"cache_window" yaml:"cache_window"`
}

// UplinkConfig binds the switch uplink to a host interface
type UplinkConfig struct {
	ID     string `mapstructure:"id" yaml:"id"`
	IfName string `mapstructure:"ifname" yaml:"ifname"`
}

// TracingConfig controls the OpenTelemetry exporter
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Config is the daemon configuration
type Config struct {
	CfgFile     string             `mapstructure:"config" yaml:"-"`
	GRPCPort    int                `mapstructure:"grpcport" yaml:"grpcport"`
	HTTPPort    int                `mapstructure:"httpport" yaml:"httpport"`
	TLSFiles    string             `mapstructure:"tlsfiles" yaml:"tlsfiles"`
	Database    string             `mapstructure:"database" yaml:"database"`
	DBAddress   string             `mapstructure:"dbaddress" yaml:"dbaddress"`
	LogLevel    string             `mapstructure:"loglevel" yaml:"loglevel"`
	Bootstrap   string             `mapstructure:"bootstrap" yaml:"bootstrap"`
	Subscribers []SubscriberConfig `mapstructure:"subscribers" yaml:"subscribers"`
	Switch      SwitchConfig       `mapstructure:"switch" yaml:"switch"`
	Uplink      UplinkConfig       `mapstructure:"uplink" yaml:"uplink"`
	Tracing     TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
}

// GlobalConfig is the configuration in use
var GlobalConfig Config

// SetConfig replaces the configuration in use
func SetConfig(cfg Config) error {
	GlobalConfig = cfg
	return nil
}

// LoadConfig reads the config file, if any, and unmarshals viper into GlobalConfig
func LoadConfig() {
	if err := viper.ReadInConfig(); err == nil {
		log.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Errorf("LoadConfig(): %v", err)
		return
	}
	log.Debugf("LoadConfig(): %+v", GlobalConfig)
}

// GetConfig returns the configuration in use
func GetConfig() *Config {
	return &GlobalConfig
}

// Validate checks the configuration values the daemon cannot start without
func (c *Config) Validate() error {
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return errors.New("grpcPort must be a positive integer between 1 and 65535")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return errors.New("httpPort must be a positive integer between 1 and 65535")
	}
	if c.Database != "gomap" {
		_, port, err := net.SplitHostPort(c.DBAddress)
		if err != nil {
			return errors.New("invalid DBAddress format. It should be in ip_address:port format")
		}
		dbPort, err := strconv.Atoi(port)
		if err != nil || dbPort <= 0 || dbPort > 65535 {
			return errors.New("invalid db port. It must be a positive integer between 1 and 65535")
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid loglevel: %w", err)
	}
	if c.Switch.Cores < 0 {
		return fmt.Errorf("invalid number of cores %d", c.Switch.Cores)
	}
	if c.Switch.CacheWindow < 0 {
		return fmt.Errorf("invalid cache window %v", c.Switch.CacheWindow)
	}
	if c.Uplink.IfName != "" && c.Uplink.ID == "" {
		return errors.New("an uplink interface needs an uplink id")
	}
	return nil
}
