package application

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// HealthReportTitle titles every report.
const HealthReportTitle = "IBM i Health Report"

// ErrNoHealthChecks is returned for a checks file without entries.
var ErrNoHealthChecks = errors.New("no health checks defined")

// HealthCheck is one SQL statement with a description of what it verifies.
type HealthCheck struct {
	SQL         string `json:"sql" yaml:"sql"`
	Description string `json:"description" yaml:"description"`
}

// HealthCheckResult is a check together with its rows or its error.
type HealthCheckResult struct {
	SQL         string          `json:"sql"`
	Description string          `json:"description"`
	Result      *db2i.ResultSet `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// HealthReport collects the outcome of every check.
type HealthReport struct {
	Title  string              `json:"title"`
	Checks []HealthCheckResult `json:"checks"`
}

// Failed counts checks that returned an error.
func (r *HealthReport) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if c.Error != "" {
			n++
		}
	}
	return n
}

type healthFile struct {
	Checks []HealthCheck `json:"checks" yaml:"checks"`
}

// ParseHealthChecks reads {"checks":[{"sql":...,"description":...}]} from
// JSON or YAML.
func ParseHealthChecks(data []byte) ([]HealthCheck, error) {
	var f healthFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse health checks: %w", err)
	}
	if len(f.Checks) == 0 {
		return nil, ErrNoHealthChecks
	}
	for i, c := range f.Checks {
		if c.SQL == "" {
			return nil, fmt.Errorf("checks[%d]: sql is required", i)
		}
	}
	return f.Checks, nil
}

// LoadHealthChecks reads a checks file.
func LoadHealthChecks(path string) ([]HealthCheck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health checks: %w", err)
	}
	return ParseHealthChecks(data)
}

// Health runs every check in order. Statements must pass the read-only
// guard. A failing check is reported in place and does not stop the rest.
func Health(ctx context.Context, q db2i.Querier, checks []HealthCheck) *HealthReport {
	report := &HealthReport{
		Title:  HealthReportTitle,
		Checks: make([]HealthCheckResult, 0, len(checks)),
	}
	for _, c := range checks {
		res := HealthCheckResult{SQL: c.SQL, Description: c.Description}
		rs, err := runCheck(ctx, q, c.SQL)
		if err != nil {
			res.Error = err.Error()
			logging.Warn().
				Add(logging.Component("health")).
				Add(logging.SQL(c.SQL)).
				Add(logging.ErrorField(err)).
				Msg("health check failed")
		} else {
			res.Result = rs
		}
		report.Checks = append(report.Checks, res)
	}
	return report
}

func runCheck(ctx context.Context, q db2i.Querier, stmt string) (*db2i.ResultSet, error) {
	clean, err := db2i.Guard(stmt)
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, clean)
}
