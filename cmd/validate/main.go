// Command validate smoke-tests a running clinic dashboard server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type endpoint struct {
	path        string
	contentType string
	contains    []string
}

var endpoints = []endpoint{
	{path: "/api/health", contentType: "application/json", contains: []string{`"status":"ok"`}},

	// Records
	{path: "/api/records", contentType: "application/json", contains: []string{`"records"`, `"totalPages"`}},
	{path: "/api/records/status", contentType: "application/json", contains: []string{`"total_records"`}},
	{path: "/api/records/files", contentType: "application/json"},

	// Dashboard
	{path: "/api/dashboard/kpis", contentType: "application/json", contains: []string{`"metrics"`}},
	{path: "/api/dashboard/aggregate?groupBy=month", contentType: "application/json", contains: []string{`"reconciliation"`}},
	{path: "/api/dashboard/aggregate?groupBy=clinic", contentType: "application/json", contains: []string{`"buckets"`}},
	{path: "/api/dashboard/aggregate?groupBy=category", contentType: "application/json", contains: []string{`"buckets"`}},
	{path: "/api/dashboard/aggregate?groupBy=age_band", contentType: "application/json", contains: []string{`"buckets"`}},
	{path: "/api/dashboard/ranking", contentType: "application/json", contains: []string{`"dimension":"staff"`}},
	{path: "/api/dashboard/trend", contentType: "application/json", contains: []string{`"months"`}},
	{path: "/api/dashboard/export.xlsx", contentType: "spreadsheetml"},
	{path: "/api/categories", contentType: "application/json", contains: []string{`"specialty"`}},

	// Insights
	{path: "/api/insights/trends", contentType: "application/json", contains: []string{`"trends"`}},
	{path: "/api/insights/repeat", contentType: "application/json", contains: []string{`"distribution"`}},
	{path: "/api/insights/pace", contentType: "application/json", contains: []string{`"projection"`}},

	// Imports and goals
	{path: "/api/imports", contentType: "application/json"},
	{path: "/api/goals", contentType: "application/json"},
	{path: "/api/goals/progress", contentType: "application/json"},
	{path: "/api/goals/export", contentType: "text/csv"},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	parallel := flag.Int("parallel", 4, "Endpoints checked at once")
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeout) * time.Second,
	}

	fmt.Printf("Validating server at %s\n", *url)
	fmt.Printf("Testing %d endpoints...\n\n", len(endpoints))

	results := make([]result, len(endpoints))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*parallel)
	for i, ep := range endpoints {
		g.Go(func() error {
			results[i] = validateEndpoint(ctx, client, *url, ep)
			return nil
		})
	}
	_ = g.Wait()

	var passed, failed int
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			fmt.Printf("FAIL GET %s\n", r.endpoint.path)
			fmt.Printf("     Error: %v\n", r.err)
		case r.status != http.StatusOK:
			failed++
			fmt.Printf("FAIL GET %s\n", r.endpoint.path)
			fmt.Printf("     Status: %d (expected 200)\n", r.status)
		default:
			passed++
			if *verbose {
				fmt.Printf("PASS GET %s (%v)\n", r.endpoint.path, r.duration)
			}
		}
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func validateEndpoint(ctx context.Context, client *http.Client, baseURL string, ep endpoint) result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: time.Since(start),
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	if ep.contentType == "application/json" {
		var js any
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
