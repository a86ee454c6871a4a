// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/blockcache/cache"
	"github.com/cockroachdb/blockcache/cachekey"
	"github.com/cockroachdb/blockcache/internal/randvar"
	"github.com/cockroachdb/blockcache/internal/rate"
	"github.com/cockroachdb/blockcache/sessionid"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runConfig struct {
	cacheSize     int64
	shards        int
	concurrency   int
	duration      time.Duration
	numOps        uint64
	files         int
	fileSize      uint64
	blockSize     int
	distribution  string
	maxOpsPerSec  float64
	secondary     string
	secondarySize int64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run a synthetic block workload against the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench()
	},
}

const (
	minLatency = time.Microsecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

func runBench() error {
	c, secondary, err := newCache()
	if err != nil {
		return err
	}
	defer c.Unref()

	// One session stands in for one process opening one database; each
	// simulated sstable derives its base key once, as a real sstable open
	// would.
	gen := sessionid.NewGenerator()
	dbSessionID := gen.Generate()
	bases := make([]cachekey.OffsetableCacheKey, runConfig.files)
	for i := range bases {
		bases[i] = cachekey.MakeOffsetableCacheKey(
			"cachebench-db", dbSessionID, uint64(i+1), runConfig.fileSize)
	}

	blocksPerFile := runConfig.fileSize / uint64(runConfig.blockSize)
	if blocksPerFile == 0 {
		return errors.Errorf("file-size %d smaller than block-size %d",
			runConfig.fileSize, runConfig.blockSize)
	}
	blockDist, err := newBlockDist(blocksPerFile)
	if err != nil {
		return err
	}
	fileDist := randvar.NewUniform(nil, 0, uint64(runConfig.files-1))

	var limiter *rate.Limiter
	if runConfig.maxOpsPerSec > 0 {
		limiter = rate.NewLimiter(runConfig.maxOpsPerSec, 1)
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if runConfig.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, runConfig.duration)
		defer cancel()
	}

	// All workers write the same synthetic payload; the cache never
	// interprets block contents.
	block := make([]byte, runConfig.blockSize)
	for i := range block {
		block[i] = byte(i)
	}

	var ops atomic.Uint64
	var mu sync.Mutex
	cumulative := newHistogram()

	start := crtime.NowMono()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < runConfig.concurrency; w++ {
		g.Go(func() error {
			hist := newHistogram()
			defer func() {
				mu.Lock()
				defer mu.Unlock()
				cumulative.Merge(hist)
			}()
			for {
				if ctx.Err() != nil {
					return nil
				}
				if runConfig.numOps > 0 && ops.Add(1) > runConfig.numOps {
					return nil
				}
				if limiter != nil {
					limiter.Wait(1)
				}

				f := fileDist.Uint64()
				off := blockDist.Uint64() * uint64(runConfig.blockSize)
				key := bases[f].WithOffset(off)

				opStart := crtime.NowMono()
				if buf := c.Get(key); buf == nil {
					c.Set(key, block)
				}
				_ = hist.RecordValue(clampLatency(opStart.Elapsed()).Nanoseconds())
			}
		})
	}

	// Sample the hit rate once a second for the timeline graph.
	samples := sampleHitRate(ctx, c)

	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := start.Elapsed()

	report(c, secondary, cumulative, <-samples, elapsed)
	return nil
}

func newCache() (*cache.Cache, *cache.SecondaryCache, error) {
	if runConfig.secondary == "" {
		if runConfig.shards <= 0 {
			return cache.New(runConfig.cacheSize), nil, nil
		}
		return cache.NewWithShards(runConfig.cacheSize, runConfig.shards), nil, nil
	}
	shards := runConfig.shards
	if shards <= 0 {
		shards = 4
	}
	compression, err := cache.ParseCompression(runConfig.secondary)
	if err != nil {
		return nil, nil, err
	}
	secondary := cache.NewSecondaryCache(runConfig.secondarySize, compression)
	return cache.NewWithSecondary(runConfig.cacheSize, shards, secondary), secondary, nil
}

func newBlockDist(blocksPerFile uint64) (randvar.Static, error) {
	switch runConfig.distribution {
	case "uniform":
		return randvar.NewUniform(nil, 0, blocksPerFile-1), nil
	case "zipf":
		return randvar.NewZipf(nil, 0, blocksPerFile-1, 0.99)
	default:
		return nil, errors.Errorf("unknown distribution %q", runConfig.distribution)
	}
}

func clampLatency(d time.Duration) time.Duration {
	if d < minLatency {
		return minLatency
	}
	if d > maxLatency {
		return maxLatency
	}
	return d
}

// sampleHitRate records the interval hit rate once a second until ctx is
// done, then delivers the series on the returned channel.
func sampleHitRate(ctx context.Context, c *cache.Cache) <-chan []float64 {
	out := make(chan []float64, 1)
	go func() {
		var series []float64
		var prevHits, prevMisses int64
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				out <- series
				return
			case <-ticker.C:
				m := c.Metrics()
				hits := m.Hits - prevHits
				misses := m.Misses - prevMisses
				prevHits, prevMisses = m.Hits, m.Misses
				if total := hits + misses; total > 0 {
					series = append(series, 100*float64(hits)/float64(total))
				} else {
					series = append(series, 0)
				}
			}
		}
	}()
	return out
}

func report(
	c *cache.Cache,
	secondary *cache.SecondaryCache,
	hist *hdrhistogram.Histogram,
	hitRates []float64,
	elapsed time.Duration,
) {
	if len(hitRates) > 1 {
		fmt.Println(asciigraph.Plot(hitRates,
			asciigraph.Height(10), asciigraph.Caption("hit rate % per second")))
		fmt.Println()
	}

	m := c.Metrics()
	total := m.Hits + m.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = 100 * float64(m.Hits) / float64(total)
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Metric", "Value"})
	tbl.Append([]string{"elapsed", elapsed.Round(time.Millisecond).String()})
	tbl.Append([]string{"ops", fmt.Sprintf("%d", total)})
	tbl.Append([]string{"ops/sec", fmt.Sprintf("%.0f", float64(total)/elapsed.Seconds())})
	tbl.Append([]string{"hit rate", fmt.Sprintf("%.2f%%", hitRate)})
	tbl.Append([]string{"resident blocks", fmt.Sprintf("%d", m.Count)})
	tbl.Append([]string{"resident bytes", fmt.Sprintf("%d", m.Size)})
	tbl.Append([]string{"p50 latency", time.Duration(hist.ValueAtQuantile(50)).String()})
	tbl.Append([]string{"p95 latency", time.Duration(hist.ValueAtQuantile(95)).String()})
	tbl.Append([]string{"p99 latency", time.Duration(hist.ValueAtQuantile(99)).String()})
	tbl.Append([]string{"max latency", time.Duration(hist.Max()).String()})
	if secondary != nil {
		hits, misses := secondary.Metrics()
		tbl.Append([]string{"secondary hits", fmt.Sprintf("%d", hits)})
		tbl.Append([]string{"secondary misses", fmt.Sprintf("%d", misses)})
		tbl.Append([]string{"secondary blocks", fmt.Sprintf("%d", secondary.Count())})
		tbl.Append([]string{"secondary bytes", fmt.Sprintf("%d", secondary.Size())})
	}
	tbl.Render()
}
