// Команда loadtest нагружает BillService сценариями создания и правки счетов
// и печатает сводку латентностей по методам.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	billingv1 "github.com/vladislavdragonenkov/shopbilling/proto/billing/v1"
)

const scenarioMethod = "scenario"

type loadMode string

const (
	// modeCreate только создаёт счета.
	modeCreate loadMode = "create"
	// modeEdit после создания добавляет строку, считает итог и удаляет строку.
	modeEdit loadMode = "create-edit"
	// modeFull дополнительно удаляет счёт.
	modeFull loadMode = "full"
)

type config struct {
	addr        string
	total       int
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	staffID     string
	customerID  string
	products    []string
	discount    string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Scenarios       methodReport            `json:"scenarios"`
	RPS             float64                 `json:"rps"`
	Methods         map[string]methodReport `json:"methods"`
}

type methodStats struct {
	codes     map[codes.Code]int64
	latencies []float64
}

func (s *methodStats) report() methodReport {
	r := methodReport{Codes: make(map[string]int64, len(s.codes)), LatencyMs: buildLatencySummary(s.latencies)}
	for code, n := range s.codes {
		r.Calls += n
		if code == codes.OK {
			r.Success += n
		} else {
			r.Failed += n
		}
		r.Codes[code.String()] = n
	}
	r.ErrorRate = ratio(r.Failed, r.Calls)
	return r
}

// collector накапливает результаты вызовов из всех воркеров.
type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[codes.Code]int64)}
		c.methods[method] = stats
	}
	stats.codes[code]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	for name, stats := range c.methods {
		if name == scenarioMethod {
			result.Scenarios = stats.report()
			continue
		}
		result.Methods[name] = stats.report()
	}
	if duration > 0 {
		result.RPS = float64(result.Scenarios.Calls) / duration.Seconds()
	}
	return result
}

func parseConfig() (config, error) {
	var (
		cfg      config
		mode     string
		products string
	)

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "max scenarios to execute; 0 with -duration means unbounded")
	flag.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	flag.StringVar(&mode, "mode", string(modeCreate), "load mode: create | create-edit | full")
	flag.StringVar(&cfg.staffID, "staff", "S001", "staff id of created bills")
	flag.StringVar(&cfg.customerID, "customer", "C001", "customer id of created bills")
	flag.StringVar(&products, "products", "P1,P2", "comma-separated product ids; the last one is used for edits")
	flag.StringVar(&cfg.discount, "discount", "0", "bill discount in currency units")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	for _, p := range strings.Split(products, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.products = append(cfg.products, p)
		}
	}
	cfg.mode = loadMode(strings.TrimSpace(mode))

	return cfg, cfg.validate()
}

func (c config) validate() error {
	var errs []error
	switch c.mode {
	case modeCreate, modeEdit, modeFull:
	default:
		errs = append(errs, fmt.Errorf("unsupported mode: %s", c.mode))
	}
	if c.duration < 0 {
		errs = append(errs, errors.New("duration must be >= 0"))
	}
	if c.duration == 0 && c.total <= 0 {
		errs = append(errs, errors.New("total must be > 0 when duration is not set"))
	}
	if c.concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be > 0"))
	}
	if c.connections <= 0 {
		errs = append(errs, errors.New("connections must be > 0"))
	}
	if c.timeout <= 0 {
		errs = append(errs, errors.New("timeout must be > 0"))
	}
	if strings.TrimSpace(c.staffID) == "" || strings.TrimSpace(c.customerID) == "" {
		errs = append(errs, errors.New("staff and customer are required"))
	}
	if len(c.products) == 0 {
		errs = append(errs, errors.New("at least one product is required"))
	}
	if c.mode != modeCreate && len(c.products) < 2 {
		errs = append(errs, errors.New("edit modes need at least two products"))
	}
	return errors.Join(errs...)
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	clients := make([]billingv1.BillServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		defer conn.Close()
		clients = append(clients, billingv1.NewBillServiceClient(conn))
	}

	startedAt := time.Now()
	col := newCollector()
	runLoad(clients, cfg, col)
	result := col.buildReport(startedAt, time.Since(startedAt))

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Scenarios.Failed > 0 {
		os.Exit(1)
	}
}

func runLoad(clients []billingv1.BillServiceClient, cfg config, col *collector) {
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(client billingv1.BillServiceClient) {
			defer wg.Done()
			for range jobs {
				_ = runScenario(client, cfg, col)
			}
		}(clients[w%len(clients)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()
	for i := 0; cfg.total <= 0 || i < cfg.total; i++ {
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// call выполняет один RPC с таймаутом и записывает его результат.
func call[Resp any](col *collector, method string, timeout time.Duration, fn func(ctx context.Context) (Resp, error)) (Resp, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	resp, err := fn(ctx)
	col.record(method, time.Since(start), status.Code(err))
	return resp, err
}

func runScenario(client billingv1.BillServiceClient, cfg config, col *collector) (err error) {
	start := time.Now()
	defer func() {
		col.record(scenarioMethod, time.Since(start), status.Code(err))
	}()

	created, err := call(col, "CreateBill", cfg.timeout, func(ctx context.Context) (*billingv1.CreateBillResponse, error) {
		return client.CreateBill(ctx, &billingv1.CreateBillRequest{
			StaffID:    cfg.staffID,
			CustomerID: cfg.customerID,
			Discount:   cfg.discount,
			Items:      []*billingv1.LineItem{{ProductID: cfg.products[0], Quantity: 1}},
		})
	})
	if err != nil {
		return err
	}
	if created == nil || created.Bill == nil || created.Bill.ID == "" {
		return status.Error(codes.Internal, "create response returned empty bill id")
	}
	billID := created.Bill.ID
	if cfg.mode == modeCreate {
		return nil
	}

	edit := cfg.products[len(cfg.products)-1]
	if _, err = call(col, "AddBillDetail", cfg.timeout, func(ctx context.Context) (*billingv1.AddBillDetailResponse, error) {
		return client.AddBillDetail(ctx, &billingv1.AddBillDetailRequest{BillID: billID, Item: &billingv1.LineItem{ProductID: edit, Quantity: 2}})
	}); err != nil {
		return err
	}
	if _, err = call(col, "ComputeTotal", cfg.timeout, func(ctx context.Context) (*billingv1.ComputeTotalResponse, error) {
		return client.ComputeTotal(ctx, &billingv1.ComputeTotalRequest{BillID: billID})
	}); err != nil {
		return err
	}
	if _, err = call(col, "RemoveBillDetail", cfg.timeout, func(ctx context.Context) (*billingv1.RemoveBillDetailResponse, error) {
		return client.RemoveBillDetail(ctx, &billingv1.RemoveBillDetailRequest{BillID: billID, ProductID: edit})
	}); err != nil {
		return err
	}
	if cfg.mode == modeEdit {
		return nil
	}

	_, err = call(col, "DeleteBill", cfg.timeout, func(ctx context.Context) (*billingv1.DeleteBillResponse, error) {
		return client.DeleteBill(ctx, &billingv1.DeleteBillRequest{BillID: billID})
	})
	return err
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	s := result.Scenarios
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s total=%d success=%d failed=%d error_rate=%.4f\n", cfg.mode, s.Calls, s.Success, s.Failed, s.ErrorRate)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		s.LatencyMs.Min, s.LatencyMs.Avg, s.LatencyMs.P50, s.LatencyMs.P95, s.LatencyMs.P99, s.LatencyMs.Max)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := result.Methods[name]
		fmt.Printf("%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, m.Calls, m.Success, m.Failed, m.ErrorRate, m.LatencyMs.P95)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile использует линейную интерполяцию между соседними рангами.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
