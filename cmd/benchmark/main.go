// Benchmark tool for testing Cormorant against labeled booking data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/bookings.csv -url http://localhost:5001
//
// This tool:
//   1. Reads labeled booking data (feature columns plus an is_fraud column)
//   2. Sends each booking to Cormorant for scoring
//   3. Compares Cormorant's verdict with the actual fraud labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
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

// LabeledBooking is one row from the benchmark dataset.
type LabeledBooking struct {
	GuestID               string
	LeadTime              float64
	Adults                float64
	Children              float64
	PreviousCancellations float64
	PreviousBookingsKept  float64
	RepeatedGuest         string
	AvgPricePerRoom       float64
	SpecialRequests       float64
	BookingChanges        float64
	WeekendNights         float64
	WeekNights            float64
	MultipleSameDay       float64
	IsFraud               bool
}

// PredictRequest mirrors the Cormorant scoring request.
type PredictRequest struct {
	LeadTime                float64 `json:"lead_time"`
	Adults                  float64 `json:"no_of_adults"`
	Children                float64 `json:"no_of_children"`
	PreviousCancellations   float64 `json:"no_of_previous_cancellations"`
	PreviousBookingsKept    float64 `json:"no_of_previous_bookings_not_canceled"`
	RepeatedGuest           string  `json:"repeated_guest"`
	AvgPricePerRoom         float64 `json:"avg_price_per_room"`
	SpecialRequests         float64 `json:"no_of_special_requests"`
	BookingChanges          float64 `json:"no_of_booking_changes"`
	WeekendNights           float64 `json:"no_of_weekend_nights"`
	WeekNights              float64 `json:"no_of_week_nights"`
	MultipleBookingsSameDay float64 `json:"multiple_bookings_same_day"`
	GuestID                 string  `json:"userId,omitempty"`
}

// PredictResponse is the subset of the scoring response the benchmark needs.
type PredictResponse struct {
	EvaluationID     string   `json:"evaluationId"`
	FraudProbability float64  `json:"fraud_probability"`
	IsFraud          bool     `json:"is_fraud"`
	RiskLevel        string   `json:"risk_level"`
	FraudIndicators  []string `json:"fraud_indicators"`
	RuleBased        bool     `json:"rule_based"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fraud flagged as fraud
	FalsePositives int64 // Legitimate flagged as fraud
	TrueNegatives  int64 // Legitimate passed
	FalseNegatives int64 // Fraud passed (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled bookings CSV file")
	baseURL := flag.String("url", "http://localhost:5001", "Cormorant base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum bookings to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraudulent bookings")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for legitimate bookings (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each booking result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/bookings.csv [-url http://localhost:5001]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        CORMORANT BENCHMARK - Booking Fraud Detection          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("Cormorant URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:     %s\n", *tenantID)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Printf("Fraud Only:    %v\n", *fraudOnly)
	fmt.Printf("Sample Rate:   %.2f\n", *sampleRate)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Cormorant not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Cormorant is running:")
		fmt.Println("  go run cmd/cormorant/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Cormorant is healthy")

	fmt.Printf("\nReading booking data from %s...\n", *csvPath)
	bookings, err := readBookingsCSV(*csvPath, *limit, *fraudOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d bookings\n", len(bookings))

	fraudCount := 0
	for _, b := range bookings {
		if b.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:      %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(bookings)))
	fmt.Printf("  - Legitimate: %d (%.2f%%)\n", len(bookings)-fraudCount, 100*float64(len(bookings)-fraudCount)/float64(len(bookings)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(bookings, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

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

func readBookingsCSV(path string, limit int, fraudOnly bool, sampleRate float64) ([]LabeledBooking, error) {
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
	if _, ok := colIndex["is_fraud"]; !ok {
		return nil, fmt.Errorf("CSV has no is_fraud column")
	}

	field := func(record []string, name string) float64 {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return 0
		}
		v, _ := strconv.ParseFloat(record[idx], 64)
		return v
	}
	text := func(record []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	var bookings []LabeledBooking
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isFraud := record[colIndex["is_fraud"]] == "1"

		if fraudOnly && !isFraud {
			continue
		}
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		repeated := "No"
		if field(record, "repeated_guest") == 1 || strings.EqualFold(text(record, "repeated_guest"), "yes") {
			repeated = "Yes"
		}

		b := LabeledBooking{
			GuestID:               text(record, "guest_id"),
			LeadTime:              field(record, "lead_time"),
			Adults:                field(record, "no_of_adults"),
			Children:              field(record, "no_of_children"),
			PreviousCancellations: field(record, "no_of_previous_cancellations"),
			PreviousBookingsKept:  field(record, "no_of_previous_bookings_not_canceled"),
			RepeatedGuest:         repeated,
			AvgPricePerRoom:       field(record, "avg_price_per_room"),
			SpecialRequests:       field(record, "no_of_special_requests"),
			BookingChanges:        field(record, "no_of_booking_changes"),
			WeekendNights:         field(record, "no_of_weekend_nights"),
			WeekNights:            field(record, "no_of_week_nights"),
			MultipleSameDay:       field(record, "multiple_bookings_same_day"),
			IsFraud:               isFraud,
		}

		bookings = append(bookings, b)

		if limit > 0 && len(bookings) >= limit {
			break
		}
	}

	return bookings, nil
}

func runBenchmark(bookings []LabeledBooking, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledBooking, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for b := range work {
				start := time.Now()
				result, err := scoreBooking(client, baseURL, tenantID, b)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				if b.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				predicted := result.IsFraud
				actual := b.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s lead=%6.0f adults=%2.0f cancel=%2.0f price=%8.2f | Fraud: %-5v | Cormorant: %.2f (%s)\n",
						status,
						b.LeadTime,
						b.Adults,
						b.PreviousCancellations,
						b.AvgPricePerRoom,
						b.IsFraud,
						result.FraudProbability,
						result.RiskLevel,
					)
				}
			}
		}()
	}

	for _, b := range bookings {
		work <- b
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreBooking(client *http.Client, baseURL, tenantID string, b LabeledBooking) (*PredictResponse, error) {
	req := PredictRequest{
		LeadTime:                b.LeadTime,
		Adults:                  b.Adults,
		Children:                b.Children,
		PreviousCancellations:   b.PreviousCancellations,
		PreviousBookingsKept:    b.PreviousBookingsKept,
		RepeatedGuest:           b.RepeatedGuest,
		AvgPricePerRoom:         b.AvgPricePerRoom,
		SpecialRequests:         b.SpecialRequests,
		BookingChanges:          b.BookingChanges,
		WeekendNights:           b.WeekendNights,
		WeekNights:              b.WeekNights,
		MultipleBookingsSameDay: b.MultipleSameDay,
		GuestID:                 b.GuestID,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/predict", bytes.NewReader(body))
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

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Legit:      %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   FRAUD        PASS")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged bookings, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f bookings/sec\n", tps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
