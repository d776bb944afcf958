package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Idempotent replays
	success201    uint64 // Created
	fail400       uint64 // Rejected by validation
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | replay")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, i, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, id int, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	seq := 0
	for time.Since(start) < duration {
		seq++
		key := generateKey(id, seq)

		kind := "Credit"
		if rand.Intn(2) == 0 {
			kind = "Debit"
		}

		payload := map[string]interface{}{
			"amount":          float64(rand.Intn(99900)+100) / 100,
			"type":            kind,
			"description":     fmt.Sprintf("Benchmark payment %d-%d", id, seq),
			"transactionDate": time.Now().UTC().Format(time.RFC3339),
			"idempotencyKey":  key,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transactions", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 200:
			atomic.AddUint64(&success200, 1)
		case 400:
			atomic.AddUint64(&fail400, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func generateKey(worker, seq int) string {
	if workload == "replay" {
		// Replay: reuse a small key space to exercise the idempotent path.
		return fmt.Sprintf("bench-replay-key-%04d", rand.Intn(100))
	}
	return fmt.Sprintf("bench-%d-%d-%d", worker, seq, time.Now().UnixNano())
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f400 := atomic.LoadUint64(&fail400)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	replayRate := float64(s200) / float64(total) * 100

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": s201,
		"success_replay":  s200,
		"replay_rate_pct": replayRate,
		"rejected_400":    f400,
		"errors":          fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
