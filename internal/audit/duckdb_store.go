// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	"github.com/goccy/go-json"

	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// DuckDBConfig configures the relational sink.
type DuckDBConfig struct {
	// Path is the database file. Empty or ":memory:" opens an in-memory database.
	Path string
	// MaxMemory is DuckDB's memory limit, e.g. "1GB".
	MaxMemory string
	// Threads defaults to the CPU count.
	Threads int
}

// OpenDuckDB opens a DuckDB database and verifies the connection.
func OpenDuckDB(ctx context.Context, cfg DuckDBConfig) (*sql.DB, error) {
	dsn := cfg.Path
	if dsn == ":memory:" {
		dsn = ""
	}
	if dsn != "" {
		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		params := []string{"access_mode=read_write", fmt.Sprintf("threads=%d", threads)}
		if cfg.MaxMemory != "" {
			params = append(params, "max_memory="+cfg.MaxMemory)
		}
		dsn += "?" + strings.Join(params, "&")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return db, nil
}

// DuckDBSink implements Sink and Querier on DuckDB.
type DuckDBSink struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBSink wraps an open database. Call CreateTables before use.
func NewDuckDBSink(db *sql.DB) *DuckDBSink {
	return &DuckDBSink{db: db}
}

// Name implements Sink.
func (s *DuckDBSink) Name() string { return "duckdb" }

// DB returns the underlying database handle.
func (s *DuckDBSink) DB() *sql.DB { return s.db }

const duckDBSchema = `
	CREATE TABLE IF NOT EXISTS request_logs (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		query_string TEXT,
		query_params JSON,
		content_type TEXT,
		request_headers JSON,
		request_body TEXT,
		request_body_truncated BOOLEAN NOT NULL DEFAULT false,
		status_code INTEGER NOT NULL,
		response_headers JSON,
		response_body TEXT,
		response_body_truncated BOOLEAN NOT NULL DEFAULT false,
		duration_us BIGINT NOT NULL,
		response_time_ms BIGINT,
		user_id TEXT,
		client_ip TEXT,
		user_agent TEXT,
		session_id TEXT,
		request_id TEXT,
		extra_data JSON
	);

	CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_request_logs_path ON request_logs(path);
	CREATE INDEX IF NOT EXISTS idx_request_logs_status ON request_logs(status_code);
	CREATE INDEX IF NOT EXISTS idx_request_logs_user_id ON request_logs(user_id);

	CREATE TABLE IF NOT EXISTS access_logs (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		worker_pid INTEGER,
		server_addr TEXT,
		remote_addr TEXT,
		request_line TEXT,
		method TEXT,
		url TEXT NOT NULL,
		protocol TEXT,
		status_code INTEGER NOT NULL,
		response_size BIGINT,
		referer TEXT,
		user_agent TEXT,
		duration_us BIGINT NOT NULL,
		user_id TEXT,
		extra_data JSON
	);

	CREATE INDEX IF NOT EXISTS idx_access_logs_timestamp ON access_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_access_logs_url ON access_logs(url);
	CREATE INDEX IF NOT EXISTS idx_access_logs_status ON access_logs(status_code);
	CREATE INDEX IF NOT EXISTS idx_access_logs_user_id ON access_logs(user_id);
`

// CreateTables creates both tables and their indexes if they do not exist.
func (s *DuckDBSink) CreateTables(ctx context.Context) error {
	for _, stmt := range strings.Split(duckDBSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Debug().Msg("Audit tables created/verified")
	return nil
}

const insertRequestQuery = `
	INSERT INTO request_logs (
		id, timestamp, method, path, query_string, query_params, content_type,
		request_headers, request_body, request_body_truncated,
		status_code, response_headers, response_body, response_body_truncated,
		duration_us, response_time_ms,
		user_id, client_ip, user_agent, session_id, request_id, extra_data
	) VALUES (
		?, ?, ?, ?, ?, ?, ?,
		?, ?, ?,
		?, ?, ?, ?,
		?, ?,
		?, ?, ?, ?, ?, ?
	)
`

// WriteRequest implements Sink.
func (s *DuckDBSink) WriteRequest(ctx context.Context, rec *RequestRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	start := time.Now()

	s.mu.RLock()
	_, err := s.db.ExecContext(ctx, insertRequestQuery,
		rec.ID, rec.Timestamp.UTC(), rec.Method, rec.Path, rec.QueryString,
		marshalJSONColumn(rec.QueryParams), rec.ContentType,
		marshalJSONColumn(rec.RequestHeaders), rec.RequestBody, rec.RequestBodyTruncated,
		rec.StatusCode, marshalJSONColumn(rec.ResponseHeaders), rec.ResponseBody, rec.ResponseBodyTruncated,
		rec.Duration.Microseconds(), rec.ResponseTimeMS(),
		rec.UserID, rec.ClientIP, rec.UserAgent, rec.SessionID, rec.RequestID,
		marshalJSONColumn(rec.Extra),
	)
	s.mu.RUnlock()

	metrics.RecordSinkWrite(s.Name(), string(LogTypeRequest), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save request record: %w", err)
	}
	return nil
}

const insertAccessQuery = `
	INSERT INTO access_logs (
		id, timestamp, worker_pid, server_addr, remote_addr,
		request_line, method, url, protocol,
		status_code, response_size, referer, user_agent,
		duration_us, user_id, extra_data
	) VALUES (
		?, ?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?, ?
	)
`

// WriteAccess implements Sink.
func (s *DuckDBSink) WriteAccess(ctx context.Context, rec *AccessRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	start := time.Now()

	s.mu.RLock()
	_, err := s.db.ExecContext(ctx, insertAccessQuery,
		rec.ID, rec.Timestamp.UTC(), rec.WorkerPID, rec.ServerAddr, rec.RemoteAddr,
		rec.RequestLine, rec.Method, rec.URL, rec.Protocol,
		rec.StatusCode, rec.ResponseSize, rec.Referer, rec.UserAgent,
		rec.Duration.Microseconds(), rec.UserID, marshalJSONColumn(rec.Extra),
	)
	s.mu.RUnlock()

	metrics.RecordSinkWrite(s.Name(), string(LogTypeAccess), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save access record: %w", err)
	}
	return nil
}

// marshalJSONColumn renders a value for a JSON column; nil and empty
// containers become NULL.
func marshalJSONColumn(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]string:
		if t == nil {
			return nil
		}
	case map[string]any:
		if t == nil {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		logging.Debug().Err(err).Msg("Failed to marshal JSON column")
		return nil
	}
	out := string(data)
	return &out
}

// Cleanup implements Sink.
func (s *DuckDBSink) Cleanup(ctx context.Context, logType LogType, olderThan time.Time, batchSize int, dryRun bool) (int64, error) {
	return cleanupInBatches(ctx, s.Name(), s, logType, olderThan, batchSize, dryRun)
}

func tableFor(logType LogType) (string, error) {
	switch logType {
	case LogTypeRequest:
		return "request_logs", nil
	case LogTypeAccess:
		return "access_logs", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLogType, logType)
	}
}

func (s *DuckDBSink) countOlder(ctx context.Context, logType LogType, cutoff time.Time) (int64, error) {
	table, err := tableFor(logType)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE timestamp < ?", table)
	if err := s.db.QueryRowContext(ctx, query, cutoff.UTC()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// deleteOlderBatch deletes the oldest matching rows, at most limit of them,
// in a single statement.
func (s *DuckDBSink) deleteOlderBatch(ctx context.Context, logType LogType, cutoff time.Time, limit int) (int64, error) {
	table, err := tableFor(logType)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id IN (SELECT id FROM %[1]s WHERE timestamp < ? ORDER BY timestamp LIMIT %[2]d)",
		table, limit,
	)
	result, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return n, nil
}

// buildFilterConditions builds the WHERE clause for a RecordFilter.
func buildFilterConditions(filter RecordFilter, pathColumn string) (string, []any) {
	var conditions []string
	var args []any

	if filter.PathPrefix != "" {
		conditions = append(conditions, "starts_with("+pathColumn+", ?)")
		args = append(args, filter.PathPrefix)
	}
	if filter.MinStatus > 0 {
		conditions = append(conditions, "status_code >= ?")
		args = append(args, filter.MinStatus)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.Until.UTC())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func appendPaging(query string, filter RecordFilter) string {
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query
}

const selectRequestColumns = `
	SELECT
		id, timestamp, method, path, query_string,
		CAST(query_params AS VARCHAR), content_type,
		CAST(request_headers AS VARCHAR), request_body, request_body_truncated,
		status_code, CAST(response_headers AS VARCHAR), response_body, response_body_truncated,
		duration_us, user_id, client_ip, user_agent, session_id, request_id,
		CAST(extra_data AS VARCHAR)
	FROM request_logs
`

// QueryRequests implements Querier.
func (s *DuckDBSink) QueryRequests(ctx context.Context, filter RecordFilter) ([]RequestRecord, error) {
	where, args := buildFilterConditions(filter, "path")
	query := appendPaging(selectRequestColumns+where, filter)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query request records: %w", err)
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var data scannedRequest
		if err := rows.Scan(data.destinations()...); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan request record row")
			continue
		}
		out = append(out, *data.toRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request records: %w", err)
	}
	return out, nil
}

// GetRequest implements Querier.
func (s *DuckDBSink) GetRequest(ctx context.Context, id string) (*RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data scannedRequest
	err := s.db.QueryRowContext(ctx, selectRequestColumns+" WHERE id = ?", id).Scan(data.destinations()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get request record: %w", err)
	}
	return data.toRecord(), nil
}

const selectAccessColumns = `
	SELECT
		id, timestamp, worker_pid, server_addr, remote_addr,
		request_line, method, url, protocol,
		status_code, response_size, referer, user_agent,
		duration_us, user_id, CAST(extra_data AS VARCHAR)
	FROM access_logs
`

// QueryAccess implements Querier.
func (s *DuckDBSink) QueryAccess(ctx context.Context, filter RecordFilter) ([]AccessRecord, error) {
	where, args := buildFilterConditions(filter, "url")
	query := appendPaging(selectAccessColumns+where, filter)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access records: %w", err)
	}
	defer rows.Close()

	var out []AccessRecord
	for rows.Next() {
		var data scannedAccess
		if err := rows.Scan(data.destinations()...); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan access record row")
			continue
		}
		out = append(out, *data.toRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access records: %w", err)
	}
	return out, nil
}

// Count implements Querier.
func (s *DuckDBSink) Count(ctx context.Context, logType LogType, filter RecordFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, t := range logType.Types() {
		table, err := tableFor(t)
		if err != nil {
			return 0, err
		}
		pathColumn := "path"
		if t == LogTypeAccess {
			pathColumn = "url"
		}
		where, args := buildFilterConditions(filter, pathColumn)

		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count %s records: %w", t, err)
		}
		total += n
	}
	return total, nil
}

// Close implements Sink. The database handle is owned by the caller.
func (s *DuckDBSink) Close() error {
	return nil
}

// scannedRequest holds raw column values for one request_logs row.
type scannedRequest struct {
	rec             RequestRecord
	queryString     sql.NullString
	queryParams     sql.NullString
	contentType     sql.NullString
	requestHeaders  sql.NullString
	requestBody     sql.NullString
	responseHeaders sql.NullString
	responseBody    sql.NullString
	durationUS      int64
	userID          sql.NullString
	clientIP        sql.NullString
	userAgent       sql.NullString
	sessionID       sql.NullString
	requestID       sql.NullString
	extra           sql.NullString
}

func (d *scannedRequest) destinations() []any {
	return []any{
		&d.rec.ID, &d.rec.Timestamp, &d.rec.Method, &d.rec.Path, &d.queryString,
		&d.queryParams, &d.contentType,
		&d.requestHeaders, &d.requestBody, &d.rec.RequestBodyTruncated,
		&d.rec.StatusCode, &d.responseHeaders, &d.responseBody, &d.rec.ResponseBodyTruncated,
		&d.durationUS, &d.userID, &d.clientIP, &d.userAgent, &d.sessionID, &d.requestID,
		&d.extra,
	}
}

func (d *scannedRequest) toRecord() *RequestRecord {
	r := &d.rec
	r.QueryString = d.queryString.String
	r.ContentType = d.contentType.String
	r.RequestBody = nullStringPtr(d.requestBody)
	r.ResponseBody = nullStringPtr(d.responseBody)
	r.Duration = time.Duration(d.durationUS) * time.Microsecond
	r.UserID = nullStringPtr(d.userID)
	r.ClientIP = d.clientIP.String
	r.UserAgent = d.userAgent.String
	r.SessionID = d.sessionID.String
	r.RequestID = d.requestID.String
	unmarshalJSONColumn(d.queryParams, &r.QueryParams)
	unmarshalJSONColumn(d.requestHeaders, &r.RequestHeaders)
	unmarshalJSONColumn(d.responseHeaders, &r.ResponseHeaders)
	unmarshalJSONColumn(d.extra, &r.Extra)
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	return r
}

// scannedAccess holds raw column values for one access_logs row.
type scannedAccess struct {
	rec          AccessRecord
	workerPID    sql.NullInt64
	serverAddr   sql.NullString
	remoteAddr   sql.NullString
	requestLine  sql.NullString
	method       sql.NullString
	protocol     sql.NullString
	responseSize sql.NullInt64
	referer      sql.NullString
	userAgent    sql.NullString
	durationUS   int64
	userID       sql.NullString
	extra        sql.NullString
}

func (d *scannedAccess) destinations() []any {
	return []any{
		&d.rec.ID, &d.rec.Timestamp, &d.workerPID, &d.serverAddr, &d.remoteAddr,
		&d.requestLine, &d.method, &d.rec.URL, &d.protocol,
		&d.rec.StatusCode, &d.responseSize, &d.referer, &d.userAgent,
		&d.durationUS, &d.userID, &d.extra,
	}
}

func (d *scannedAccess) toRecord() *AccessRecord {
	r := &d.rec
	r.WorkerPID = int(d.workerPID.Int64)
	r.ServerAddr = d.serverAddr.String
	r.RemoteAddr = d.remoteAddr.String
	r.RequestLine = d.requestLine.String
	r.Method = d.method.String
	r.Protocol = d.protocol.String
	r.ResponseSize = d.responseSize.Int64
	r.Referer = d.referer.String
	r.UserAgent = d.userAgent.String
	r.Duration = time.Duration(d.durationUS) * time.Microsecond
	r.UserID = nullStringPtr(d.userID)
	unmarshalJSONColumn(d.extra, &r.Extra)
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	return r
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func unmarshalJSONColumn(ns sql.NullString, dst any) {
	if !ns.Valid || ns.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(ns.String), dst); err != nil {
		logging.Debug().Err(err).Msg("Failed to parse JSON column")
	}
}
