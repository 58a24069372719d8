// Command adminctl is an operator CLI over the subtitle service's admin
// HTTP endpoints: cache purge, queue depth, and rate-limit bucket
// inspection/reset.
//
// Usage:
//
//	go run ./cmd/adminctl -base-url http://localhost:8080 cache-clear
//	go run ./cmd/adminctl -base-url http://localhost:8080 cache-clear -purge-db
//	go run ./cmd/adminctl -base-url http://localhost:8080 queue-stats
//	go run ./cmd/adminctl -base-url http://localhost:8080 rate-limit-stats -ip 1.2.3.4
//	go run ./cmd/adminctl -base-url http://localhost:8080 rate-limit-reset -ip 1.2.3.4
//
// Environment:
//
//	ADMINCTL_API_KEY — sent as the admin API key header
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/7and1/subtitleapi/internal/apiclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	baseURL := fs.String("base-url", "http://localhost:8080", "subtitle service base URL")
	purgeDB := fs.Bool("purge-db", false, "also purge durable subtitle records (cache-clear only)")
	videoID := fs.String("video-id", "", "video id (cache-clear-video only)")
	language := fs.String("language", "", "language code, scopes the operation to one (video_id, language) pair")
	ip := fs.String("ip", "", "client IP (rate-limit-stats/rate-limit-reset only)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	client := apiclient.New(*baseURL, os.Getenv("ADMINCTL_API_KEY"), "")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result any
	var err error

	switch cmd {
	case "cache-clear":
		result, err = client.ClearCache(ctx, *purgeDB)
	case "cache-clear-video":
		if *videoID == "" {
			fmt.Fprintln(os.Stderr, "adminctl: -video-id is required")
			os.Exit(2)
		}
		err = client.ClearVideoCache(ctx, *videoID, *language)
		result = map[string]string{"status": "ok", "video_id": *videoID}
	case "queue-stats":
		result, err = client.QueueStats(ctx)
	case "rate-limit-stats":
		if *ip == "" {
			fmt.Fprintln(os.Stderr, "adminctl: -ip is required")
			os.Exit(2)
		}
		result, err = client.RateLimitStats(ctx, *ip)
	case "rate-limit-reset":
		if *ip == "" {
			fmt.Fprintln(os.Stderr, "adminctl: -ip is required")
			os.Exit(2)
		}
		err = client.ResetRateLimit(ctx, *ip)
		result = map[string]string{"status": "ok", "ip": *ip}
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adminctl <cache-clear|cache-clear-video|queue-stats|rate-limit-stats|rate-limit-reset> [flags]")
}
