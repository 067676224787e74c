// Command crawl downloads historical price history for a coin from
// CoinGecko and persists it to the local quote store, so that
// cmd/simulate has enough history to build an Oracle from.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"palantir/internal/cli"
	"palantir/internal/config"
	"palantir/internal/svc"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: crawl <coin-id> <days>\n")
		os.Exit(2)
	}
	coinID := args[0]
	days, err := strconv.Atoi(args[1])
	if err != nil || days <= 0 {
		fmt.Fprintf(os.Stderr, "crawl: days must be a positive integer, got %q\n", args[1])
		os.Exit(2)
	}

	cfg, err := config.Load(config.ConfigFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "crawl: load config: %v\n", err)
		os.Exit(1)
	}
	cli.LogConfigSummary(cfg)

	ctx := context.Background()
	sc, err := svc.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crawl: %v\n", err)
		os.Exit(1)
	}

	ingestionCfg := cfg.IngestionSettings()
	to := time.Now().UTC()
	from := to.Add(-time.Duration(days) * 24 * time.Hour)

	logx.Infof("crawl: fetching %s/%s from %s to %s", coinID, ingestionCfg.VsCurrency, from, to)
	samples, err := sc.Ingestion.FetchRange(ctx, coinID, ingestionCfg.VsCurrency, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crawl: fetch range: %v\n", err)
		os.Exit(1)
	}

	if err := sc.Store.Insert(ctx, coinID, ingestionCfg.VsCurrency, samples); err != nil {
		fmt.Fprintf(os.Stderr, "crawl: persist samples: %v\n", err)
		os.Exit(1)
	}

	count, err := sc.Store.Count(ctx, coinID, ingestionCfg.VsCurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crawl: count samples: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("crawl: stored %d samples (%d fetched this run) for %s/%s\n",
		count, len(samples), coinID, ingestionCfg.VsCurrency)
}
