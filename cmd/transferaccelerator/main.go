// Command transferaccelerator is a TCP load-balancing proxy that fans
// client connections out across a fixed pool of upstream replicas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/altiscale/transferaccelerator/internal/cliconfig"
	"github.com/altiscale/transferaccelerator/internal/proxycore"
	"github.com/altiscale/transferaccelerator/internal/statushttp"
	"github.com/altiscale/transferaccelerator/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	result, fs, err := cliconfig.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.PrintDefaults()
		return 1
	}
	if result.ShowHelp {
		fs.PrintDefaults()
		return 0
	}
	if result.ShowVersion {
		fmt.Println(version.String())
		return 0
	}

	logLevel := proxycore.LogLevelInfo
	if result.Verbose {
		logLevel = proxycore.LogLevelDebug
	}
	logger := proxycore.NewLogger("transferaccelerator", logLevel)

	proxy, err := proxycore.NewProxy(logger, result.Config)
	if err != nil {
		logger.ELogf("failed to initialize proxy: %s", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.ILogf("received signal %s, shutting down", sig)
		cancel()
	}()

	status := statushttp.NewServer(logger, proxy, version.String())
	statusAddr := proxycore.NewEndpoint("", result.Config.StatusPort).Address()

	var wg sync.WaitGroup
	var dispatcherErr, statusErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcherErr = proxy.Dispatcher().Run(ctx)
	}()
	go func() {
		defer wg.Done()
		statusErr = status.ListenAndServe(ctx, statusAddr)
	}()

	wg.Wait()

	if dispatcherErr != nil && dispatcherErr != context.Canceled {
		logger.ELogf("dispatcher exited with error: %s", dispatcherErr)
		return 1
	}
	if statusErr != nil && statusErr != context.Canceled {
		logger.ELogf("status server exited with error: %s", statusErr)
		return 1
	}
	return 0
}
