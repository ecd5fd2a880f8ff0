package output

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"hostsweep/scanner"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrRunNotFound indicates the requested scan run is not in the history database.
var ErrRunNotFound = errors.New("scan run not found")

// Run summarizes one stored batch.
type Run struct {
	ID          int64
	CreatedAt   time.Time
	HostCount   int
	OnlineCount int
}

// History stores finished reports in SQLite. It implements scanner.Sink.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// OpenHistory opens (or creates) a SQLite database at path, enables WAL and foreign keys, and
// runs embedded migrations in order.
func OpenHistory(path string) (*History, error) {
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps PRAGMAs in effect for every statement.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA journal_mode = WAL;`,
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &History{db: sqlDB, now: time.Now}, nil
}

func runMigrations(sqlDB *sql.DB) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := sqlDB.Exec(sqlText); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Write stores report as a new run in one transaction.
func (h *History) Write(ctx context.Context, report *scanner.ScanReport) error {
	_, err := h.Save(ctx, report)
	return err
}

// Save stores report as a new run and returns its id.
func (h *History) Save(ctx context.Context, report *scanner.ScanReport) (int64, error) {
	results := report.Results()
	online := 0
	for _, result := range results {
		if result.State == scanner.Online {
			online++
		}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var runID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO scan_run (created_at, host_count, online_count) VALUES (?, ?, ?) RETURNING id`,
		h.now().UTC().Format(time.RFC3339Nano), len(results), online,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert scan_run: %w", err)
	}

	for i, result := range results {
		aliases, err := json.Marshal(nonNil(result.Aliases))
		if err != nil {
			return 0, fmt.Errorf("encode aliases for %s: %w", result.Host, err)
		}
		var hostID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO host_result (run_id, position, host, state, hostname, aliases)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			runID, i, result.Host, string(result.State), result.Hostname, string(aliases),
		).Scan(&hostID)
		if err != nil {
			return 0, fmt.Errorf("insert host_result %s: %w", result.Host, err)
		}
		for j, port := range result.OpenPorts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO open_port (host_result_id, position, port) VALUES (?, ?, ?)`,
				hostID, j, port,
			); err != nil {
				return 0, fmt.Errorf("insert open_port %s:%d: %w", result.Host, port, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit scan run: %w", err)
	}
	return runID, nil
}

// Runs lists stored runs, most recent first. A non-positive limit returns every run.
func (h *History) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, created_at, host_count, online_count FROM scan_run ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt string
		if err := rows.Scan(&run.ID, &createdAt, &run.HostCount, &run.OnlineCount); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan run rows: %w", err)
	}
	return runs, nil
}

// Report rebuilds the stored report of run id.
func (h *History) Report(ctx context.Context, id int64) (*scanner.ScanReport, error) {
	var exists int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scan_run WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup scan run: %w", err)
	}
	if exists == 0 {
		return nil, ErrRunNotFound
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT h.host, h.state, h.hostname, h.aliases, p.port
		 FROM host_result h
		 LEFT JOIN open_port p ON p.host_result_id = h.id
		 WHERE h.run_id = ?
		 ORDER BY h.position, p.position`, id)
	if err != nil {
		return nil, fmt.Errorf("load host results: %w", err)
	}
	defer rows.Close()

	var (
		order   []string
		byHost  = make(map[string]*scanner.HostResult)
		current *scanner.HostResult
	)
	for rows.Next() {
		var host, state, hostname, aliases string
		var port sql.NullInt64
		if err := rows.Scan(&host, &state, &hostname, &aliases, &port); err != nil {
			return nil, fmt.Errorf("scan host result: %w", err)
		}
		current = byHost[host]
		if current == nil {
			current = &scanner.HostResult{
				Host:      host,
				State:     scanner.HostState(state),
				Hostname:  hostname,
				OpenPorts: []int{},
			}
			if err := json.Unmarshal([]byte(aliases), &current.Aliases); err != nil {
				return nil, fmt.Errorf("decode aliases for %s: %w", host, err)
			}
			current.Aliases = nonNil(current.Aliases)
			byHost[host] = current
			order = append(order, host)
		}
		if port.Valid {
			current.OpenPorts = append(current.OpenPorts, int(port.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("host result rows: %w", err)
	}

	report := scanner.NewScanReport()
	for _, host := range order {
		report.Add(*byHost[host])
	}
	return report, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
