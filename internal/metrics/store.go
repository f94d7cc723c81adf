package metrics

import (
	"database/sql"
	"log"
	"time"
)

// RequestMetric records metadata for a single API request.
type RequestMetric struct {
	Method     string
	Endpoint   string
	RequestID  string
	StatusCode int
	LatencyMS  int64
	Timestamp  time.Time
}

// Store handles persistence of request metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(m RequestMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO request_metrics (method, endpoint, request_id, status_code, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Method, m.Endpoint, m.RequestID, m.StatusCode, m.LatencyMS, ts,
	)
	return err
}

// ObserveRequest satisfies the API client's observer hook. A status code of
// zero records a transport failure. Recording failures are logged, never
// propagated, so metrics can not break a request.
func (s *Store) ObserveRequest(method, path, requestID string, statusCode int, latency time.Duration) {
	err := s.Record(RequestMetric{
		Method:     method,
		Endpoint:   path,
		RequestID:  requestID,
		StatusCode: statusCode,
		LatencyMS:  latency.Milliseconds(),
	})
	if err != nil {
		log.Printf("metrics: failed to record request metric: %v", err)
	}
}

// DailySummary represents request totals for a single day.
type DailySummary struct {
	Date         string
	Requests     int
	Failures     int
	AvgLatencyMS int64
}

// GetDailySummary retrieves request totals for the last N days.
func (s *Store) GetDailySummary(days int) ([]DailySummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.Query(`
		SELECT date(timestamp) AS day,
		       COUNT(*) AS requests,
		       SUM(CASE WHEN status_code < 200 OR status_code >= 300 THEN 1 ELSE 0 END) AS failures,
		       COALESCE(AVG(latency_ms), 0) AS avg_latency
		FROM request_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailySummary
	for rows.Next() {
		var d DailySummary
		var avg float64
		if err := rows.Scan(&d.Date, &d.Requests, &d.Failures, &avg); err != nil {
			return nil, err
		}
		d.AvgLatencyMS = int64(avg)
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// reports how many were deleted.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := s.db.Exec(`DELETE FROM request_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
