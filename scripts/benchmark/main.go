package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "favgrab API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per site for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Sites covering common head-markup styles.
var testSites = []struct {
	Label string
	URL   string
}{
	{"Static", "example.com"},
	{"Docs", "go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"App", "github.com"},
	{"Wiki", "https://en.wikipedia.org/wiki/Favicon"},
}

// faviconResponse mirrors GET /api/favicon for both body shapes.
type faviconResponse struct {
	Title    string `json:"title"`
	Logo     string `json:"logo"`
	Favicon  string `json:"favicon"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	LatencyMs  int64  `json:"latency_ms"`
	HTTPStatus int    `json:"http_status"`
	Engine     string `json:"engine,omitempty"`
	Favicon    string `json:"favicon,omitempty"`
	HasTitle   bool   `json:"has_title"`
	HasLogo    bool   `json:"has_logo"`
	Fallback   bool   `json:"fallback"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type siteSummary struct {
	AvgMs        float64 `json:"avg_ms"`
	P50Ms        int64   `json:"p50_ms"`
	MaxMs        int64   `json:"max_ms"`
	FallbackRate float64 `json:"fallback_rate"`
}

type siteResult struct {
	URL     string       `json:"url"`
	Label   string       `json:"label"`
	Runs    []runResult  `json:"runs"`
	Summary *siteSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string       `json:"timestamp"`
	APIURL     string       `json:"api_url"`
	RunsPerURL int          `json:"runs_per_url"`
	Results    []siteResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== favgrab Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/site: %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 30 * time.Second}
	for _, s := range testSites {
		fmt.Printf("Benchmarking [%s] %s ...\n", s.Label, s.URL)
		sr := siteResult{URL: s.URL, Label: s.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := lookup(client, s.URL, i)
			switch {
			case !rr.Success:
				fmt.Printf("FAILED: %s\n", rr.Error)
			case rr.Fallback:
				fmt.Printf("FALLBACK  %dms  %s\n", rr.LatencyMs, rr.Favicon)
			default:
				fmt.Printf("OK  %dms  %s\n", rr.LatencyMs, rr.Favicon)
			}
			sr.Runs = append(sr.Runs, rr)
		}

		sr.Summary = summarize(sr.Runs)
		report.Results = append(report.Results, sr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func lookup(client *http.Client, site string, run int) runResult {
	rr := runResult{Run: run}

	req, err := http.NewRequest(http.MethodGet, *apiURL+"/api/favicon?url="+url.QueryEscape(site), nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var fr faviconResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.LatencyMs = time.Since(start).Milliseconds()
	rr.HTTPStatus = resp.StatusCode
	rr.Engine = resp.Header.Get("X-Fetch-Engine")

	if resp.StatusCode != http.StatusOK {
		rr.Error = fr.Error
		return rr
	}
	rr.Success = true
	rr.Favicon = fr.Favicon
	rr.HasTitle = fr.Title != ""
	rr.HasLogo = fr.Logo != ""
	rr.Fallback = fr.Fallback
	return rr
}

func summarize(runs []runResult) *siteSummary {
	var latencies []int64
	var fallbacks int
	var total float64

	for _, r := range runs {
		if !r.Success {
			continue
		}
		latencies = append(latencies, r.LatencyMs)
		total += float64(r.LatencyMs)
		if r.Fallback {
			fallbacks++
		}
	}
	if len(latencies) == 0 {
		return nil
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	n := float64(len(latencies))
	return &siteSummary{
		AvgMs:        total / n,
		P50Ms:        latencies[len(latencies)/2],
		MaxMs:        latencies[len(latencies)-1],
		FallbackRate: float64(fallbacks) / n * 100,
	}
}

func printTable(results []siteResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Site\tAvg\tP50\tMax\tFallback\tFavicon\n")
	fmt.Fprintf(w, "────\t───\t───\t───\t────────\t───────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", truncate(r.URL, 32))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%.0f%%\t%s\n",
			truncate(r.URL, 32),
			int64(r.Summary.AvgMs),
			r.Summary.P50Ms,
			r.Summary.MaxMs,
			r.Summary.FallbackRate,
			truncate(lastFavicon(r.Runs), 40),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func lastFavicon(runs []runResult) string {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Favicon != "" {
			return runs[i].Favicon
		}
	}
	return "-"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
