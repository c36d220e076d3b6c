// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.
// Copyright (C) 2023 Nordix Foundation.

// Package main is the main package of the application
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/bridge"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/config"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/ethlink"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/taskmanager"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/switchmodule"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/utils"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

const (
	configFilePath = "./"
)

var rootCmd = &cobra.Command{
	Use:   "opi-vpcsw-bridge",
	Short: "vpc switch bridge",
	Long:  "vpc software switch dataplane with its control service",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return config.GlobalConfig.Validate()
	},
	Run: func(_ *cobra.Command, _ []string) {
		level, _ := log.ParseLevel(config.GlobalConfig.LogLevel)
		log.SetLevel(level)

		if config.GlobalConfig.Tracing.Enabled {
			tp := utils.InitTracerProvider("opi-vpcsw-bridge")
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Panicf("Tracer Provider Shutdown: %v", err)
				}
			}()
		}

		// Starting Task Manager process
		taskmanager.TaskMan.StartTaskManager()

		if err := infradb.NewInfraDB(config.GlobalConfig.DBAddress, config.GlobalConfig.Database); err != nil {
			log.Fatalf("error in creating db: %v", err)
		}
		defer func() {
			if err := infradb.Close(); err != nil {
				log.Error(err)
			}
		}()
		infradb.StartPortRecorder(eventbus.EBus)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sw, err := startSwitch(ctx, &config.GlobalConfig, vpc.DefaultRegistry)
		if err != nil {
			log.Fatalf("error in creating switch: %v", err)
		}
		defer func() {
			if err := vpc.DefaultRegistry.Close(); err != nil {
				log.Error(err)
			}
		}()

		if n, err := infradb.ReplayPorts(); err != nil {
			log.Errorf("error in replaying ports: %v", err)
		} else {
			log.Infof("%d stored ports replayed", n)
		}
		if err := bootstrap(sw.ID(), &config.GlobalConfig); err != nil {
			log.Errorf("error in bootstrapping ports: %v", err)
		}

		server := bridge.NewServer()
		go runGatewayServer(server, config.GlobalConfig.HTTPPort)
		runGrpcServer(server, config.GlobalConfig.GRPCPort, config.GlobalConfig.TLSFiles)
	},
}

func initialize() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&config.GlobalConfig.CfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().IntVar(&config.GlobalConfig.GRPCPort, "grpcport", 50151, "The gRPC server port")
	rootCmd.PersistentFlags().IntVar(&config.GlobalConfig.HTTPPort, "httpport", 8082, "The HTTP server port")
	rootCmd.PersistentFlags().StringVar(&config.GlobalConfig.TLSFiles, "tlsfiles", "", "TLS files in server_cert:server_key:ca_cert format.")
	rootCmd.PersistentFlags().StringVar(&config.GlobalConfig.DBAddress, "dbaddress", "127.0.0.1:6379", "db address in ip_address:port format")
	rootCmd.PersistentFlags().StringVar(&config.GlobalConfig.Database, "database", "redis", "Database type, redis or gomap")
	rootCmd.PersistentFlags().StringVar(&config.GlobalConfig.LogLevel, "loglevel", "info", "Log level")
	rootCmd.PersistentFlags().StringVar(&config.GlobalConfig.Bootstrap, "bootstrap", "", "File listing the ports created at startup")

	if err := viper.GetViper().BindPFlags(rootCmd.PersistentFlags()); err != nil {
		log.Errorf("Error binding flags to Viper: %v", err)
		os.Exit(1)
	}
}

func initConfig() {
	if config.GlobalConfig.CfgFile != "" {
		viper.SetConfigFile(config.GlobalConfig.CfgFile)
	} else {
		// Search config in the default location
		viper.AddConfigPath(configFilePath)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config.yaml")
	}
	config.LoadConfig()
	if len(config.GlobalConfig.Subscribers) == 0 {
		config.GlobalConfig.Subscribers = []config.SubscriberConfig{
			{Name: switchmodule.ModuleName, Priority: 1, Events: []string{infradb.PortObjectType}},
		}
	}
}

func main() {
	initialize()
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// startSwitch creates the switch, registers it and binds the uplink interface
func startSwitch(ctx context.Context, cfg *config.Config, reg *vpc.Registry) (*vpcsw.Switch, error) {
	var id vpc.ID
	if cfg.Switch.ID == "" {
		id = vpc.ID(uuid.New())
		log.Warnf("no switch id configured, using %s: stored ports of earlier runs will not be realized", id)
	} else {
		var err error
		if id, err = vpc.ParseID(cfg.Switch.ID); err != nil {
			return nil, err
		}
	}

	cores := cfg.Switch.Cores
	if cores == 0 {
		cores = config.UsableCPUs()
	}
	withUplink := cfg.Uplink.IfName != ""
	if withUplink {
		// the uplink interface feeds frames on a core of its own
		cores++
	}
	sw := vpcsw.New(id, vpcsw.Config{
		Name:        cfg.Switch.Name,
		VNI:         cfg.Switch.Vni,
		Cores:       cores,
		CacheWindow: cfg.Switch.CacheWindow,
		Registry:    reg,
		Bus:         eventbus.EBus,
	})
	if err := reg.Insert(id, vpc.ObjSwitch, sw); err != nil {
		_ = sw.Detach()
		return nil, err
	}

	var onUplink switchmodule.UplinkHook
	if withUplink {
		link, err := startUplink(ctx, cfg, reg)
		if err != nil {
			return nil, err
		}
		onUplink = func(p *vpcsw.Port) {
			p.SetEndpoint(link)
			if err := link.Start(ctx, cores-1, p); err != nil {
				log.Errorf("uplink %s: %v", cfg.Uplink.IfName, err)
			}
		}
	}
	switchmodule.Init(cfg.Subscribers, switchmodule.NewHandler(reg, onUplink))
	return sw, nil
}

func startUplink(ctx context.Context, cfg *config.Config, reg *vpc.Registry) (*ethlink.Link, error) {
	uplinkID, err := vpc.ParseID(cfg.Uplink.ID)
	if err != nil {
		return nil, err
	}
	link := ethlink.New(vpc.NewID(uplinkID.MAC()))
	if err := link.Attach(ctx, cfg.Uplink.IfName); err != nil {
		if links, lerr := utils.NewNetlinkWrapper().LinkList(ctx); lerr == nil {
			names := make([]string, 0, len(links))
			for _, l := range links {
				names = append(names, l.Attrs().Name)
			}
			log.Infof("available interfaces: %v", names)
		}
		return nil, err
	}
	if err := reg.Insert(link.ID(), vpc.ObjEthlink, link); err != nil {
		_ = link.Detach()
		return nil, err
	}
	return link, nil
}

// bootstrap stores the ports of the bootstrap file and the configured uplink
func bootstrap(swID vpc.ID, cfg *config.Config) error {
	var ports []*infradb.Port
	if cfg.Uplink.ID != "" {
		id, err := vpc.ParseID(cfg.Uplink.ID)
		if err != nil {
			return err
		}
		ports = append(ports, infradb.NewPort(swID, id, infradb.PortRoleUplink))
	}
	if cfg.Bootstrap != "" {
		b, err := config.ReadBootstrap(cfg.Bootstrap)
		if err != nil {
			return err
		}
		if b.Uplink != "" && b.Uplink != cfg.Uplink.ID {
			id, err := vpc.ParseID(b.Uplink)
			if err != nil {
				return err
			}
			ports = append(ports, infradb.NewPort(swID, id, infradb.PortRoleUplink))
		}
		for _, raw := range b.Ports {
			id, err := vpc.ParseID(raw)
			if err != nil {
				return fmt.Errorf("bootstrap port %q: %w", raw, err)
			}
			ports = append(ports, infradb.NewPort(swID, id, infradb.PortRoleMember))
		}
	}
	for _, p := range ports {
		if err := infradb.CreatePort(p); err != nil && !errors.Is(err, infradb.ErrKeyExists) {
			return err
		}
	}
	return nil
}

func runGrpcServer(server *bridge.Server, grpcPort int, tlsFiles string) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		log.Panicf("failed to listen: %v", err)
	}

	var serverOptions []grpc.ServerOption
	if tlsFiles == "" {
		log.Info("TLS files are not specified. Use insecure connection.")
	} else {
		log.Infof("Use TLS certificate files: %s", tlsFiles)
		tlsConfig, err := utils.ParseTLSFiles(tlsFiles)
		if err != nil {
			log.Panicf("Failed to parse string with tls paths: %v", err)
		}
		var option grpc.ServerOption
		if option, err = utils.SetupTLSCredentials(tlsConfig); err != nil {
			log.Panicf("Failed to setup TLS: %v", err)
		}
		serverOptions = append(serverOptions, option)
	}
	logger := utils.InterceptorLogger(log.StandardLogger())
	serverOptions = append(serverOptions,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(logger,
				logging.WithLogOnEvents(
					logging.StartCall,
					logging.FinishCall,
				),
			),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(logger,
				logging.WithLogOnEvents(
					logging.StartCall,
					logging.FinishCall,
				),
			),
		),
	)
	s := grpc.NewServer(serverOptions...)

	bridge.RegisterSwitchControlServer(s, server)
	reflection.Register(s)

	log.Infof("gRPC server listening at %v", lis.Addr())
	if err := s.Serve(lis); err != nil {
		log.Panicf("failed to serve: %v", err)
	}
}

func runGatewayServer(server *bridge.Server, httpPort int) {
	mux := runtime.NewServeMux()
	if err := server.RegisterGatewayRoutes(mux); err != nil {
		log.Panicf("cannot register gateway routes: %v", err)
	}
	metrics := promhttp.Handler()
	if err := mux.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		metrics.ServeHTTP(w, r)
	}); err != nil {
		log.Panicf("cannot register metrics handler: %v", err)
	}

	// Start HTTP server
	log.Infof("HTTP Server listening at %v", httpPort)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", httpPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		log.Panicf("cannot start HTTP gateway server: %v", err)
	}
}
