// Package bdd encodes spec.md §8's end-to-end scenarios S1, S2, S4, S5 and
// S6 as godog
// features, backed by a real Postgres canonical store and httptest fakes
// standing in for FFN and the Commerce platforms, following the same shape
// as the teacher's test/bdd/world.go: real store, real workflow entry
// points, fake upstream HTTP.
package bdd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/commerce"
	"github.com/shipbridge/sync-engine/internal/events"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/lifecycle"
	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
	"github.com/shipbridge/sync-engine/internal/vault"
)

const testVaultKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"

// World holds the scenario-scoped state threaded between step functions.
type World struct {
	t *testing.T

	projectRoot string

	vault    *vault.Vault
	enqueuer *queue.Client
	engine   *lifecycle.Engine
	ffnSrv   *httptest.Server
	ffnFake  *fakeFFNServer

	tenantID  string
	channelID string
	orderID   string

	workerErr error
}

func NewWorld(t *testing.T) *World {
	return &World{t: t, projectRoot: locateProjectRoot()}
}

func (w *World) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.ensureDatabase()
		if err := w.cleanDatabase(); err != nil {
			return ctx, fmt.Errorf("clean database: %w", err)
		}
		w.resetScenarioState()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if w.ffnSrv != nil {
			w.ffnSrv.Close()
			w.ffnSrv = nil
		}
		return ctx, nil
	})

	w.registerOrderSteps(sc)
	w.registerGateSteps(sc)
	w.registerShippingSteps(sc)
	w.registerCommerceSyncSteps(sc)
	w.registerTokenSteps(sc)
}

func (w *World) resetScenarioState() {
	w.tenantID = ""
	w.channelID = ""
	w.orderID = ""
	w.workerErr = nil

	v, err := vault.New(testVaultKeyHex)
	if err != nil {
		w.t.Fatalf("build vault: %v", err)
	}
	w.vault = v
	w.enqueuer = queue.New()

	w.ffnFake = newFakeFFNServer()
	w.ffnSrv = httptest.NewServer(w.ffnFake)

	ffnClient := ffn.New(w.ffnSrv.URL, postgres.NewTokenStore(w.vault))
	resolver := commerce.NewResolver(w.vault)
	w.engine = lifecycle.New(ffnClient, resolver, w.enqueuer, (*events.Producer)(nil), zap.NewNop())
}

var (
	dbSetupOnce sync.Once
	dbSetupErr  error
)

// ensureDatabase opens the shared pool once per test binary run and
// applies the schema if the sentinel tables are missing, mirroring the
// teacher's sync.Once guard so every scenario shares one connection pool
// instead of reopening it per step.
func (w *World) ensureDatabase() {
	dbSetupOnce.Do(func() {
		url := getenv("DATABASE_URL", "")
		if url == "" {
			dbSetupErr = errors.New("DATABASE_URL not set")
			return
		}
		if err := postgres.OpenDatabase(url, zap.NewNop()); err != nil {
			dbSetupErr = fmt.Errorf("open database: %w", err)
			return
		}
		if !schemaPresent(postgres.DB) {
			dbSetupErr = runSchema(postgres.DB, filepath.Join(w.projectRoot, "db", "migrations", "schema.sql"))
		}
	})

	if dbSetupErr != nil {
		w.t.Skipf("skipping BDD scenario: %v", dbSetupErr)
	}
}

func schemaPresent(db *sql.DB) bool {
	return tableExists(db, "orders") && tableExists(db, "jobs") && tableExists(db, "ffn_configs")
}

func tableExists(db *sql.DB, name string) bool {
	if db == nil {
		return false
	}
	var reg sql.NullString
	if err := db.QueryRow(`SELECT to_regclass($1)`, "public."+name).Scan(&reg); err != nil {
		return false
	}
	return reg.Valid && reg.String != ""
}

func runSchema(db *sql.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(content)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// cleanDatabase truncates every table between scenarios. Guarded the same
// way as the teacher's: refuses to run unless ALLOW_DB_TRUNCATE_FOR_TESTS
// is set or the database name looks test-scoped.
func (w *World) cleanDatabase() error {
	if postgres.DB == nil {
		return errors.New("database not initialised")
	}
	if os.Getenv("ALLOW_DB_TRUNCATE_FOR_TESTS") != "true" && !strings.Contains(strings.ToLower(getenv("DATABASE_URL", "")), "test") {
		w.t.Skipf("refusing to truncate a non-test DATABASE_URL; set ALLOW_DB_TRUNCATE_FOR_TESTS=true to override")
		return nil
	}
	_, err := postgres.DB.Exec(`
		TRUNCATE TABLE
			return_items, returns,
			order_sync_logs, order_items, orders,
			jobs, cron_job_status,
			product_channels, products,
			ffn_configs, channels, tenants
		RESTART IDENTITY CASCADE
	`)
	return err
}

func locateProjectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func tableToMaps(table *godog.Table) ([]map[string]string, error) {
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("table must have at least one row")
	}

	headers := make([]string, len(table.Rows[0].Cells))
	for i, cell := range table.Rows[0].Cells {
		headers[i] = strings.TrimSpace(cell.Value)
	}

	var rows []map[string]string
	for _, row := range table.Rows[1:] {
		if len(row.Cells) != len(headers) {
			return nil, fmt.Errorf("row column mismatch")
		}
		record := make(map[string]string, len(headers))
		for i, cell := range row.Cells {
			record[headers[i]] = strings.TrimSpace(cell.Value)
		}
		rows = append(rows, record)
	}
	return rows, nil
}
