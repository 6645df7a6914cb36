package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patricklo/ipo-allocation-api/internal/allocation"
	"github.com/patricklo/ipo-allocation-api/internal/auth"
	"github.com/patricklo/ipo-allocation-api/internal/database"
	"github.com/patricklo/ipo-allocation-api/internal/execution"
	"github.com/patricklo/ipo-allocation-api/internal/orders"
	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	minPairs      = 5
	maxPairs      = 25
	serverAddress = "http://localhost:8080"
)

var (
	securities = []string{"XS2571924070", "XS2687231080", "US912828YK07", "HK0000887356"}
	countries  = []string{"HK", "SG"}
	accounts   = []string{"ACC-1001", "ACC-1002", "ACC-2001", "ACC-2002", "ACC-3001"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the allocation API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":             {name: "Authentication"},
			"group":            {name: "Group Orders"},
			"proceed":          {name: "Proceed Regional"},
			"upsert_regional":  {name: "Upsert Regional"},
			"submit_regional":  {name: "Submit Regional"},
			"approve_regional": {name: "Approve Regional"},
			"submit_client":    {name: "Submit Client"},
			"approve_client":   {name: "Approve Client"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Token, nil
}

// call issues an authenticated JSON request and decodes the standard
// response envelope into out. The stats bucket records the latency.
func (sc *simulationClient) call(statKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Str("path", path).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(result.Data, out)
}

// groupOrders combines member orders into a group order via the API
func (sc *simulationClient) groupOrders(memberIDs []string) (*types.Order, error) {
	var group types.Order
	err := sc.call("group", "POST", "/api/v1/orders/group",
		map[string]interface{}{"client_order_ids": memberIDs}, &group)
	if err != nil {
		return nil, err
	}
	if group.ClientOrderID == "" {
		return nil, fmt.Errorf("no group order id in response")
	}
	return &group, nil
}

// runAllocationFlow drives one group order through the full workflow:
// regional allocation, approval, client allocation and final approval
func (sc *simulationClient) runAllocationFlow(group *types.Order) error {
	orderID := group.ClientOrderID
	base := fmt.Sprintf("/api/v1/orders/%s", orderID)

	if err := sc.call("proceed", "POST", base+"/proceed-regional-allocation",
		map[string]string{"note": "simulation"}, nil); err != nil {
		return fmt.Errorf("proceed failed: %w", err)
	}

	// Split the grouped quantity across HK and SG, boundary inclusive
	hk := group.OrderQuantity.Div(decimal.NewFromInt(2)).Floor()
	sg := group.OrderQuantity.Sub(hk)
	if err := sc.call("upsert_regional", "PUT", base+"/regional-allocation", map[string]interface{}{
		"hk_order_quantity": hk,
		"sg_order_quantity": sg,
		"limit_value":       decimal.NewFromFloat(99.5),
		"limit_type":        "PRICE",
		"size_limit":        group.OrderQuantity,
	}, nil); err != nil {
		return fmt.Errorf("regional upsert failed: %w", err)
	}

	regionalBreakdowns := []map[string]interface{}{
		{"country_code": "HK", "account_number": accounts[rand.Intn(len(accounts))], "order_quantity": hk, "final_allocation": hk},
		{"country_code": "SG", "account_number": accounts[rand.Intn(len(accounts))], "order_quantity": sg, "final_allocation": sg},
	}
	if err := sc.call("submit_regional", "POST", base+"/regional-allocations/submit", map[string]interface{}{
		"breakdowns": regionalBreakdowns,
		"final_priced": []map[string]interface{}{
			{"country_code": "HK", "limit_type": "PRICE", "final_price": decimal.NewFromFloat(99.75)},
			{"country_code": "SG", "limit_type": "PRICE", "final_price": decimal.NewFromFloat(99.75)},
		},
		"final_regionals": []map[string]interface{}{
			{"market": "HK", "allocation": hk, "effective_order": hk},
			{"market": "SG", "allocation": sg, "effective_order": sg},
		},
		"note": "simulation submit",
	}, nil); err != nil {
		return fmt.Errorf("regional submit failed: %w", err)
	}

	if err := sc.call("approve_regional", "POST", base+"/regional-allocations/approve",
		map[string]string{"note": "simulation approve"}, nil); err != nil {
		return fmt.Errorf("regional approve failed: %w", err)
	}

	clientBreakdowns := []map[string]interface{}{
		{"country_code": "HK", "account_number": accounts[0], "order_quantity": hk, "final_allocation": hk},
		{"country_code": "SG", "account_number": accounts[1], "order_quantity": sg, "final_allocation": sg},
	}
	if err := sc.call("submit_client", "POST", base+"/client-allocations/submit", map[string]interface{}{
		"breakdowns": clientBreakdowns,
		"note":       "simulation client submit",
	}, nil); err != nil {
		return fmt.Errorf("client submit failed: %w", err)
	}

	var final types.Order
	if err := sc.call("approve_client", "POST", base+"/client-allocations/approve",
		map[string]string{"note": "simulation client approve"}, &final); err != nil {
		return fmt.Errorf("client approve failed: %w", err)
	}
	if final.SubStatus != types.SubStatusDone {
		return fmt.Errorf("order did not complete, sub status %s", final.SubStatus)
	}
	return nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// seedOrderPair inserts two groupable trader orders with IPO-flagged sub
// orders, one per market. Orders arrive via upstream feeds in production, so
// the simulation writes them straight to the store.
func seedOrderPair(db *gorm.DB, tradeDate time.Time, securityID string) ([]string, decimal.Decimal, error) {
	ids := make([]string, 0, 2)
	total := decimal.Zero
	for i := 0; i < 2; i++ {
		order := types.Order{
			ClientOrderID: uuid.New().String(),
			TradeDate:     tradeDate,
			CountryCode:   countries[i%len(countries)],
			Status:        types.StatusNew,
			SubStatus:     types.SubStatusNone,
			SecurityID:    securityID,
			OrderQuantity: decimal.NewFromInt(int64(rand.Intn(900)+100) * 10),
			CleanPrice:    decimal.NewFromFloat(99.5),
		}
		if err := db.Create(&order).Error; err != nil {
			return nil, decimal.Zero, err
		}
		subOrder := types.SubOrder{
			ClientOrderID: order.ClientOrderID,
			CountryCode:   order.CountryCode,
			AccountID:     accounts[rand.Intn(len(accounts))],
			IssueIPOFlag:  true,
		}
		if err := db.Create(&subOrder).Error; err != nil {
			return nil, decimal.Zero, err
		}
		ids = append(ids, order.ClientOrderID)
		total = total.Add(order.OrderQuantity)
	}
	return ids, total, nil
}

// main runs the allocation workflow simulation
// It starts a local API server, seeds trader orders and drives each grouped
// order through regional and client allocation
func main() {
	db, err := database.NewDatabase(os.Getenv("DB_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Start the server in a goroutine
	go func() {
		if err := startServer(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetPairs := rand.Intn(maxPairs-minPairs) + minPairs
	log.Info().Int("target_pairs", targetPairs).Msg("Starting simulation")

	stats := struct {
		TotalPairs    int
		Grouped       int
		Completed     int
		FailedGroups  int
		FailedFlows   int
		TotalQuantity decimal.Decimal
		Securities    map[string]int
		StartTime     time.Time
	}{
		TotalPairs:    targetPairs,
		TotalQuantity: decimal.Zero,
		Securities:    make(map[string]int),
		StartTime:     time.Now(),
	}

	tradeDate := time.Now().Truncate(24 * time.Hour)
	for i := 0; i < targetPairs; i++ {
		securityID := securities[rand.Intn(len(securities))]
		memberIDs, total, err := seedOrderPair(db, tradeDate, securityID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed orders")
		}

		group, err := simClient.groupOrders(memberIDs)
		if err != nil {
			log.Error().Err(err).Strs("member_ids", memberIDs).Msg("Failed to group orders")
			stats.FailedGroups++
			continue
		}
		stats.Grouped++
		stats.Securities[securityID]++
		log.Info().
			Str("group_order_id", group.ClientOrderID).
			Str("security_id", securityID).
			Str("quantity", total.String()).
			Msg("Orders grouped")

		if err := simClient.runAllocationFlow(group); err != nil {
			log.Error().Err(err).Str("group_order_id", group.ClientOrderID).Msg("Allocation flow failed")
			stats.FailedFlows++
			continue
		}
		stats.Completed++
		stats.TotalQuantity = stats.TotalQuantity.Add(total)
		log.Info().
			Str("group_order_id", group.ClientOrderID).
			Msg("Allocation flow completed")

		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("IPO ALLOCATION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
------------------
Order Pairs:      %d
Grouped:          %d
Completed:        %d
Failed Grouping:  %d
Failed Flows:     %d
Total Quantity:   %s
Duration:         %v

Security Distribution
--------------------
`, stats.TotalPairs, stats.Grouped, stats.Completed,
		stats.FailedGroups, stats.FailedFlows,
		stats.TotalQuantity.String(), duration.Round(time.Millisecond))

	maxCount := 0
	for _, count := range stats.Securities {
		if count > maxCount {
			maxCount = count
		}
	}
	for securityID, count := range stats.Securities {
		barLength := int(float64(count) / float64(maxCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-14s: %s (%d)\n", securityID, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	successRate := float64(stats.Completed) / float64(stats.TotalPairs) * 100
	log.Info().
		Float64("success_rate", successRate).
		Int("total_pairs", stats.TotalPairs).
		Int("completed", stats.Completed).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// startServer initializes and starts the allocation API server
// Sets up all required services, handlers and routes
func startServer(db *gorm.DB) error {
	// Initialize services
	authService := auth.NewService("ipo-allocation-secret-key")
	statusService := status.NewService(db)
	orderService := orders.NewService(db, statusService)
	regionalService := allocation.NewRegionalService(db, statusService)
	clientService := allocation.NewClientService(db, statusService)
	executionService := execution.NewService(db)

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	orderHandlers := orders.NewGinHandlers(orderService)
	allocationHandlers := allocation.NewGinHandlers(regionalService, clientService)
	executionHandlers := execution.NewGinHandlers(executionService)

	// Setup routes
	setupRoutes(router, authHandlers, orderHandlers, allocationHandlers, executionHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; the simulation server skips auth middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	allocationHandlers *allocation.GinHandlers,
	executionHandlers *execution.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order workflow routes
		orders := v1.Group("/orders")
		{
			orders.GET("/collection", orderHandlers.GetCollectionBlotterHandler())
			orders.POST("/group", orderHandlers.GroupOrdersHandler())
			orders.GET("/regional-allocation", allocationHandlers.GetRegionalAllocationOrdersHandler())
			orders.GET("/client-allocation", allocationHandlers.GetPendingClientAllocationsHandler())
			orders.GET("/client-allocation/approvals", allocationHandlers.GetPendingClientApprovalsHandler())

			orders.GET("/:client_order_id", orderHandlers.GetOrderHandler())
			orders.GET("/:client_order_id/audit", orderHandlers.GetAuditTrailHandler())
			orders.POST("/:client_order_id/proceed-regional-allocation", orderHandlers.ProceedToRegionalAllocationHandler())
			orders.POST("/:client_order_id/ungroup", orderHandlers.UngroupOrderHandler())
			orders.POST("/:client_order_id/cancel", orderHandlers.CancelOrderHandler())

			orders.GET("/:client_order_id/regional-allocation", allocationHandlers.GetRegionalAllocationHandler())
			orders.PUT("/:client_order_id/regional-allocation", allocationHandlers.UpsertRegionalAllocationHandler())
			orders.GET("/:client_order_id/regional-allocations", allocationHandlers.GetRegionalBreakdownsHandler())
			orders.POST("/:client_order_id/regional-allocations/submit", allocationHandlers.SubmitRegionalAllocationHandler())
			orders.POST("/:client_order_id/regional-allocations/approve", allocationHandlers.ApproveRegionalAllocationHandler())
			orders.POST("/:client_order_id/regional-allocations/reject", allocationHandlers.RejectRegionalAllocationHandler())

			orders.GET("/:client_order_id/client-allocations", allocationHandlers.GetClientBreakdownsHandler())
			orders.PUT("/:client_order_id/client-allocations", allocationHandlers.SaveClientDraftHandler())
			orders.POST("/:client_order_id/client-allocations/submit", allocationHandlers.SubmitClientAllocationHandler())
			orders.POST("/:client_order_id/client-allocations/approve", allocationHandlers.ApproveClientAllocationHandler())
			orders.POST("/:client_order_id/client-allocations/reject", allocationHandlers.RejectClientAllocationHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		{
			internal.POST("/execution/:client_order_id", executionHandlers.ExecuteIPOOrderHandler())
			internal.GET("/execution/:client_order_id", executionHandlers.GetExecutionDetailsHandler())
		}
	}
}
