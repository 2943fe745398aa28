// Benchmark tool for replaying labeled claim batches against Heron.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/claims.csv -url http://localhost:8080
//
// The CSV needs a header row with at least:
//   member_id,category_id,category_name,provider_id,cost,expect_approved
//
// This tool:
//   1. Reads the labeled claim batch
//   2. Sends each claim to POST /claims/evaluate
//   3. Compares Heron's verdict with the expected label
//   4. Reports agreement, a confusion matrix, and latency/throughput
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledClaim is one row of the benchmark batch.
type LabeledClaim struct {
	MemberID       string
	CategoryID     string
	CategoryName   string
	ProviderID     string
	Cost           float64
	ExpectApproved bool
}

// EvaluateRequest is the Heron API request format.
type EvaluateRequest struct {
	MemberID     string  `json:"memberId"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	ProviderID   string  `json:"providerId"`
	Cost         float64 `json:"cost"`
}

// EvaluateResponse is the Heron API response format.
type EvaluateResponse struct {
	OutcomeID     string  `json:"outcomeId"`
	ClaimID       string  `json:"claimId"`
	Approved      bool    `json:"approved"`
	PayableAmount string  `json:"payableAmount"`
	Message       string  `json:"message"`
	FraudScore    float64 `json:"fraudScore"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Agreements    int64 // Verdict matched the expected label
	Disagreements int64

	ApprovedExpectedApproved int64 // Both say approve
	ApprovedExpectedRejected int64 // Heron approved, label says reject
	RejectedExpectedApproved int64 // Heron rejected, label says approve
	RejectedExpectedRejected int64 // Both say reject

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum claims to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           HERON BENCHMARK - Claim Batch Replay                ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:   %s\n", *csvPath)
	fmt.Printf("Heron URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:  %s\n", *tenantID)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	// Read claim batch
	fmt.Printf("\nReading claims from %s...\n", *csvPath)
	claims, err := readClaimsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d claims\n", len(claims))

	expectedApproved := 0
	for _, c := range claims {
		if c.ExpectApproved {
			expectedApproved++
		}
	}
	fmt.Printf("  - Expected approved: %d (%.2f%%)\n", expectedApproved, 100*float64(expectedApproved)/float64(len(claims)))
	fmt.Printf("  - Expected rejected: %d (%.2f%%)\n", len(claims)-expectedApproved, 100*float64(len(claims)-expectedApproved)/float64(len(claims)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readClaimsCSV(path string, limit int) ([]LabeledClaim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, required := range []string{"member_id", "category_id", "cost", "expect_approved"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	cell := func(record []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	var claims []LabeledClaim
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		cost, _ := strconv.ParseFloat(cell(record, "cost"), 64)

		claims = append(claims, LabeledClaim{
			MemberID:       cell(record, "member_id"),
			CategoryID:     cell(record, "category_id"),
			CategoryName:   cell(record, "category_name"),
			ProviderID:     cell(record, "provider_id"),
			Cost:           cost,
			ExpectApproved: cell(record, "expect_approved") == "1",
		})

		if limit > 0 && len(claims) >= limit {
			break
		}
	}

	return claims, nil
}

func runBenchmark(claims []LabeledClaim, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledClaim, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := evaluateClaim(client, baseURL, tenantID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s/%s -> %v\n", c.MemberID, c.CategoryID, err)
					}
					continue
				}

				switch {
				case result.Approved && c.ExpectApproved:
					atomic.AddInt64(&metrics.ApprovedExpectedApproved, 1)
					atomic.AddInt64(&metrics.Agreements, 1)
				case result.Approved && !c.ExpectApproved:
					atomic.AddInt64(&metrics.ApprovedExpectedRejected, 1)
					atomic.AddInt64(&metrics.Disagreements, 1)
				case !result.Approved && c.ExpectApproved:
					atomic.AddInt64(&metrics.RejectedExpectedApproved, 1)
					atomic.AddInt64(&metrics.Disagreements, 1)
				default:
					atomic.AddInt64(&metrics.RejectedExpectedRejected, 1)
					atomic.AddInt64(&metrics.Agreements, 1)
				}

				if verbose {
					status := "✓"
					if result.Approved != c.ExpectApproved {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Category: %-12s | Cost: $%10.2f | Expected: %-5v | Heron: %-5v (fraud %.2f) | %s\n",
						status,
						c.MemberID,
						c.CategoryID,
						c.Cost,
						c.ExpectApproved,
						result.Approved,
						result.FraudScore,
						result.Message,
					)
				}
			}
		}()
	}

	for _, c := range claims {
		work <- c
	}
	close(work)

	wg.Wait()

	return metrics
}

func evaluateClaim(client *http.Client, baseURL, tenantID string, c LabeledClaim) (*EvaluateResponse, error) {
	req := EvaluateRequest{
		MemberID:     c.MemberID,
		CategoryID:   c.CategoryID,
		CategoryName: c.CategoryName,
		ProviderID:   c.ProviderID,
		Cost:         c.Cost,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 BATCH STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Agreements:       %d\n", m.Agreements)
	fmt.Printf("   Disagreements:    %d\n", m.Disagreements)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 VERDICT MATRIX\n")
	fmt.Println("                          Heron")
	fmt.Println("                  Approved    Rejected")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Expected A │ %8d │ %8d │\n", m.ApprovedExpectedApproved, m.RejectedExpectedApproved)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("            R │ %8d │ %8d │\n", m.ApprovedExpectedRejected, m.RejectedExpectedRejected)
	fmt.Println("              └──────────┴──────────┘")

	decided := m.Agreements + m.Disagreements
	agreement := float64(0)
	if decided > 0 {
		agreement = float64(m.Agreements) / float64(decided)
	}

	fmt.Printf("\n🎯 AGREEMENT\n")
	fmt.Printf("   Agreement Rate:   %.4f\n", agreement)
	if m.ApprovedExpectedRejected > 0 {
		fmt.Printf("   Unexpected Approvals: %d ⚠️ (paid claims the label says to reject)\n", m.ApprovedExpectedRejected)
	}
	if m.RejectedExpectedApproved > 0 {
		fmt.Printf("   Unexpected Rejections: %d (members denied expected cover)\n", m.RejectedExpectedApproved)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if agreement >= 0.95 {
		fmt.Println("   ✅ Excellent agreement with the labeled batch")
	} else if agreement >= 0.8 {
		fmt.Println("   ⚠️  Good agreement - review the disagreement rows")
	} else {
		fmt.Println("   ❌ Low agreement - benefit configuration likely differs from the label set")
	}

	fmt.Println()
}
