package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/config"
	"github.com/smallbiznis/utilitybilling/internal/dunning"
	"github.com/smallbiznis/utilitybilling/internal/invoice"
	"github.com/smallbiznis/utilitybilling/internal/migration"
	"github.com/smallbiznis/utilitybilling/internal/observability"
	"github.com/smallbiznis/utilitybilling/internal/pricing"
	"github.com/smallbiznis/utilitybilling/internal/ratelimit"
	"github.com/smallbiznis/utilitybilling/internal/recharge"
	"github.com/smallbiznis/utilitybilling/internal/scheduler"
	"github.com/smallbiznis/utilitybilling/internal/server"
	"github.com/smallbiznis/utilitybilling/internal/tracking"
	"github.com/smallbiznis/utilitybilling/pkg/db/dbtest"
	"github.com/smallbiznis/utilitybilling/pkg/redisclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	baseURL   string
	clock     *clock.FakeClock
	scheduler *scheduler.Scheduler
}

func setDefaultEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("DATABASE_AUTO_MIGRATE", "true")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_BATCH_SIZE", "1")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
}

// startApp boots the same module graph as cmd/utilitybilling on an in-memory
// database and a fake clock.
func startApp(t *testing.T) testEnv {
	t.Helper()
	setDefaultEnv(t)
	gin.SetMode(gin.TestMode)

	conn := dbtest.Open(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))

	var (
		engine *gin.Engine
		sched  *scheduler.Scheduler
	)
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		fx.Provide(func() *gorm.DB { return conn }),
		redisclient.Module,
		migration.Module,
		clock.Module,

		pricing.Module,
		tracking.Module,
		invoice.Module,
		dunning.Module,
		recharge.Module,

		ratelimit.Module,
		server.Module,
		scheduler.Module,

		fx.Decorate(func(clock.Clock) clock.Clock { return clk }),
		fx.Decorate(func(prometheus.Registerer) prometheus.Registerer { return prometheus.NewRegistry() }),
		fx.Populate(&engine, &sched),
	)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	})

	httpSrv := httptest.NewServer(engine)
	t.Cleanup(httpSrv.Close)

	return testEnv{baseURL: httpSrv.URL, clock: clk, scheduler: sched}
}

func (e testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

type trackingView struct {
	TrackingNumber string         `json:"tracking_number"`
	IsInvoiced     bool           `json:"is_invoiced"`
	Infos          map[string]any `json:"infos"`
}

type invoiceView struct {
	InvoiceNumber string         `json:"invoice_number"`
	Version       int64          `json:"version"`
	Infos         map[string]any `json:"infos"`
}

func decodeData[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var out struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &out), string(payload))
	return out.Data
}

func TestE2E_PostpaidSweepAndDunning(t *testing.T) {
	env := startApp(t)

	status, body := env.do(t, http.MethodPost, "/v1/postpaid/trackings", []map[string]any{
		{"contract_number": "E-1", "customer_number": "CU-1", "index_value": "100", "index_date": "2024-06-01"},
		{"contract_number": "E-1", "customer_number": "CU-1", "index_value": "50", "index_date": "2024-07-01"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	_, body = env.do(t, http.MethodGet, "/v1/postpaid/trackings/contract/E-1/last", nil)
	last := decodeData[trackingView](t, body)
	assert.Equal(t, "150", last.Infos["total_power_consumed"])
	assert.Equal(t, "100", last.Infos["last_index_value"])
	assert.False(t, last.IsInvoiced)

	// Batch size 1 forces the sweep through two batches.
	require.NoError(t, env.scheduler.RunOnce(context.Background()))

	_, body = env.do(t, http.MethodGet, "/v1/postpaid/trackings/contract/E-1", nil)
	trackings := decodeData[[]trackingView](t, body)
	require.Len(t, trackings, 2)
	for _, tr := range trackings {
		assert.True(t, tr.IsInvoiced, tr.TrackingNumber)
	}

	_, body = env.do(t, http.MethodGet, "/v1/postpaid/invoices/contract/E-1", nil)
	invoices := decodeData[[]invoiceView](t, body)
	require.Len(t, invoices, 2)

	amounts := []string{}
	var target invoiceView
	for _, inv := range invoices {
		ht, _ := inv.Infos["total_amount_ht"].(string)
		amounts = append(amounts, ht)
		if ht == "3950" {
			target = inv
		}
	}
	sort.Strings(amounts)
	assert.Equal(t, []string{"3950", "7900"}, amounts)
	require.NotEmpty(t, target.InvoiceNumber)

	// A second sweep finds nothing left to invoice.
	require.NoError(t, env.scheduler.RunOnce(context.Background()))
	_, body = env.do(t, http.MethodGet, "/v1/postpaid/invoices/contract/E-1", nil)
	assert.Len(t, decodeData[[]invoiceView](t, body), 2)

	var advanced invoiceView
	for i := 0; i < 3; i++ {
		env.clock.AdvanceDays(5)
		status, body = env.do(t, http.MethodPost, "/v1/postpaid/invoices/"+target.InvoiceNumber+"/dunning", nil)
		require.Equal(t, http.StatusOK, status, string(body))
		advanced = decodeData[invoiceView](t, body)
	}

	assert.Equal(t, target.Version+3, advanced.Version)
	assert.Equal(t, "dunning 2", advanced.Infos["previous_status"])
	assert.Equal(t, "3989.5", advanced.Infos["total_amount_ht"])
	assert.Equal(t, float64(15), advanced.Infos["payment_deadline"])
	assert.Len(t, advanced.Infos["dunning"], 4)

	status, body = env.do(t, http.MethodGet, "/v1/postpaid/invoices/"+target.InvoiceNumber+"/pdf", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestE2E_PrepaidRecharge(t *testing.T) {
	env := startApp(t)

	status, body := env.do(t, http.MethodPost, "/v1/prepaid/trackings", []map[string]any{
		{"contract_number": "R-1", "customer_number": "CU-2", "power_recharged": "10", "power_recharged_date": "2024-06-01"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	_, body = env.do(t, http.MethodGet, "/v1/prepaid/trackings/contract/R-1/last", nil)
	tr := decodeData[trackingView](t, body)
	assert.True(t, tr.IsInvoiced)

	status, body = env.do(t, http.MethodGet, "/v1/prepaid/invoices/contract/R-1/last", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	inv := decodeData[invoiceView](t, body)
	assert.Equal(t, "840", inv.Infos["total_amount_ht"])
	assert.Equal(t, "991.2", inv.Infos["total_amount_ttc"])
	assert.Equal(t, "paid", inv.Infos["status"])

	// Re-submitting the same tracking never yields a second invoice.
	status, _ = env.do(t, http.MethodPost, "/v1/prepaid/invoices", []string{tr.TrackingNumber})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
}
