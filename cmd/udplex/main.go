// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/udplex/udplex/pkg/log"
	"github.com/udplex/udplex/private/app/launcher"
	"github.com/udplex/udplex/private/netaddrs"
	"github.com/udplex/udplex/relay"
	"github.com/udplex/udplex/relay/config"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "udplex relay",
		Main:       realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	relayCfg := globalCfg.Relay

	listenAddrs, err := netaddrs.Resolve(relayCfg.ReceiveInterfaces, relayCfg.ReceivePort)
	if err != nil {
		return err
	}
	destinations, err := netaddrs.Resolve(relayCfg.TransmitInterfaces, relayCfg.ReceivePort)
	if err != nil {
		return err
	}
	explicit, err := relayCfg.TransmitAddrs()
	if err != nil {
		return err
	}
	destinations = append(destinations, explicit...)
	blockNets, err := relayCfg.BlockPrefixes()
	if err != nil {
		return err
	}
	allowNets, err := relayCfg.AllowPrefixes()
	if err != nil {
		return err
	}

	logger := log.New("id", relayCfg.ID)
	logger.Debug("Resolved relay addresses",
		"listen", listenAddrs, "destinations", destinations)

	r := &relay.Relay{
		ListenAddrs:       listenAddrs,
		Destinations:      destinations,
		BlockNetworks:     blockNets,
		AllowNetworks:     allowNets,
		BusCapacity:       relayCfg.BusCapacity,
		ReceiveBufferSize: relayCfg.ReceiveBufferSize,
		Logger:            logger,
		Metrics:           relay.NewMetrics(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		return r.Run(gctx)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(gctx)
	})
	return g.Wait()
}
