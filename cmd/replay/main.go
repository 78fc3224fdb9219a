// Replay sends a labelled set of cell moves to a running cellmove server and
// reports how often the verdict matched the label.
//
// Usage:
//   go run ./cmd/replay -csv moves.csv -caseload MDI -url http://localhost:8080
//
// The CSV needs the columns prisonerNumber, cellId and expectWarnings (true/false).
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Move is one labelled row of the replay file.
type Move struct {
	PrisonerNumber string
	CellID         string
	ExpectWarnings bool
}

// Verdict is the subset of the consider-risks response the replay reads.
type Verdict struct {
	Proceed  bool `json:"proceed"`
	Warnings []struct {
		Kind string `json:"kind"`
	} `json:"warnings"`
}

// Metrics tracks replay results.
type Metrics struct {
	Agreed    int64
	Missed    int64 // labelled risky, server said proceed
	Spurious  int64 // labelled safe, server warned
	Errors    int64
	Locked    int64
	Processed int64

	ProcessingTimeMs int64

	mu    sync.Mutex
	kinds map[string]int
}

func (m *Metrics) countKinds(v *Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range v.Warnings {
		m.kinds[w.Kind]++
	}
}

func main() {
	csvPath := flag.String("csv", "", "Path to the labelled moves CSV")
	baseURL := flag.String("url", "http://localhost:8080", "cellmove base URL")
	caseload := flag.String("caseload", "", "Active caseload sent with every request")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each move result")
	flag.Parse()

	if *csvPath == "" || *caseload == "" {
		fmt.Println("Usage: replay -csv moves.csv -caseload MDI [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Printf("CSV File:  %s\n", *csvPath)
	fmt.Printf("URL:       %s\n", *baseURL)
	fmt.Printf("Caseload:  %s\n", *caseload)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: cellmove not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}

	moves, err := readMoves(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d moves\n", len(moves))

	start := time.Now()
	metrics := run(moves, *baseURL, strings.ToUpper(*caseload), *workers, *verbose)
	printResults(metrics, time.Since(start))
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

func readMoves(path string) ([]Move, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"prisonernumber", "cellid", "expectwarnings"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %s", col)
		}
	}

	var moves []Move
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		expect, err := strconv.ParseBool(strings.TrimSpace(record[colIndex["expectwarnings"]]))
		if err != nil {
			continue
		}
		moves = append(moves, Move{
			PrisonerNumber: strings.TrimSpace(record[colIndex["prisonernumber"]]),
			CellID:         strings.TrimSpace(record[colIndex["cellid"]]),
			ExpectWarnings: expect,
		})
	}
	return moves, nil
}

func run(moves []Move, baseURL, caseload string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{kinds: make(map[string]int)}

	work := make(chan Move, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for move := range work {
				start := time.Now()
				verdict, status, err := considerRisks(client, baseURL, caseload, move)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&metrics.Processed, 1)

				if err != nil {
					if status == http.StatusLocked {
						atomic.AddInt64(&metrics.Locked, 1)
					} else {
						atomic.AddInt64(&metrics.Errors, 1)
					}
					if verbose {
						fmt.Printf("ERROR: %s -> %s: %v\n", move.PrisonerNumber, move.CellID, err)
					}
					continue
				}

				metrics.countKinds(verdict)
				warned := !verdict.Proceed
				switch {
				case warned == move.ExpectWarnings:
					atomic.AddInt64(&metrics.Agreed, 1)
				case move.ExpectWarnings:
					atomic.AddInt64(&metrics.Missed, 1)
				default:
					atomic.AddInt64(&metrics.Spurious, 1)
				}

				if verbose {
					mark := "ok"
					if warned != move.ExpectWarnings {
						mark = "MISMATCH"
					}
					fmt.Printf("%-8s %-8s -> %-14s | warnings: %d\n",
						mark, move.PrisonerNumber, move.CellID, len(verdict.Warnings))
				}
			}
		}()
	}

	for _, move := range moves {
		work <- move
	}
	close(work)
	wg.Wait()

	return metrics
}

func considerRisks(client *http.Client, baseURL, caseload string, move Move) (*Verdict, int, error) {
	target := fmt.Sprintf("%s/prisoners/%s/cell-move/consider-risks?cellId=%s",
		baseURL, url.PathEscape(move.PrisonerNumber), url.QueryEscape(move.CellID))

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-Active-Caseload", caseload)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, resp.StatusCode, err
	}
	return &v, resp.StatusCode, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nRESULTS")
	fmt.Printf("   Processed:  %d\n", m.Processed)
	fmt.Printf("   Agreed:     %d\n", m.Agreed)
	fmt.Printf("   Missed:     %d  (labelled risky, proceeded)\n", m.Missed)
	fmt.Printf("   Spurious:   %d  (labelled safe, warned)\n", m.Spurious)
	fmt.Printf("   Locked:     %d\n", m.Locked)
	fmt.Printf("   Errors:     %d\n", m.Errors)

	if len(m.kinds) > 0 {
		fmt.Println("\nWARNINGS BY KIND")
		for _, kind := range []string{"category", "csra", "prisonerAlert", "occupantAlert", "nonAssociation"} {
			fmt.Printf("   %-15s %d\n", kind, m.kinds[kind])
		}
	}

	fmt.Println("\nPERFORMANCE")
	fmt.Printf("   Total Duration:  %v\n", duration.Round(time.Millisecond))
	if m.Processed > 0 {
		fmt.Printf("   Avg Latency:     %.2f ms\n", float64(m.ProcessingTimeMs)/float64(m.Processed))
		fmt.Printf("   Throughput:      %.2f moves/sec\n", float64(m.Processed)/duration.Seconds())
	}
	fmt.Println()
}
