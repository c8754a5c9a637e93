// Command pathoram-bench builds a Path ORAM client from a config file,
// loads it with n zero-valued blocks, and drives a synthetic loop of
// reads of random keys while
// serving Prometheus metrics for the storage backend it's driving.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenwick-labs/pathoram"
	"github.com/fenwick-labs/pathoram/cmd/internal/config"
	"github.com/fenwick-labs/pathoram/transport"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("cfg", "./pathoram.yaml", "Location of the benchmark's config file.")
	ops := flag.Int("ops", 1000, "Number of Read operations to perform after setup.")
	metricsAddr := flag.String("metrics-addr", "localhost:3002", "Address to serve metrics on.")
	flag.Parse()

	cfg, err := config.FromFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	client, err := cfg.Client()
	if err != nil {
		log.Fatalf("failed to initialize client: %v", err)
	}

	go metrics(*metricsAddr)

	ctx := context.Background()
	if err := runBench(ctx, client, cfg.N, *ops); err != nil {
		log.Fatal(err)
	}
}

func runBench(ctx context.Context, client *pathoram.Client, n, ops int) error {
	blocks := make([]pathoram.Block, n)
	for i := range blocks {
		blocks[i] = pathoram.Block{Key: uint32(i), Value: make([]byte, 0)}
	}

	log.Printf("running setup over %d blocks", n)
	start := time.Now()
	if err := client.Setup(ctx, blocks); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	log.Printf("setup completed in %s", time.Since(start))

	start = time.Now()
	for i := 0; i < ops; i++ {
		key, err := randomKey(n)
		if err != nil {
			return err
		}
		if _, err := client.AccessAndEvict(ctx, key, nil); err != nil && err != pathoram.ErrKeyNotFound {
			return fmt.Errorf("access %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)
	log.Printf("%d accesses completed in %s (%.1f/s), stash size %d", ops, elapsed, float64(ops)/elapsed.Seconds(), client.StashSize())

	return nil
}

func randomKey(n int) (uint32, error) {
	k, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return uint32(k.Int64()), nil
}

// metrics registers the transport package's backend counters with
// Prometheus and serves them alongside pprof.
func metrics(addr string) {
	for i, coll := range transport.Collectors {
		if err := prometheus.Register(coll); err != nil {
			log.Fatalf("%v (metric %v)", err, i)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/" {
			fmt.Fprintln(rw, "pathoram-bench metrics and debugging server")
		} else {
			rw.WriteHeader(404)
			fmt.Fprintln(rw, "404 not found")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := http.Server{Addr: addr, Handler: mux}
	log.Fatal(server.ListenAndServe())
}
