package db2i_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

func TestCredentials_Validate(t *testing.T) {
	t.Parallel()

	full := db2i.Credentials{Host: "ibmi.example.com", User: "QUSER", Password: "secret", Port: 8075}
	if err := full.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	err := db2i.Credentials{Host: "ibmi.example.com"}.Validate()
	if !errors.Is(err, db2i.ErrMissingCredentials) {
		t.Fatalf("Validate() error = %v, want ErrMissingCredentials", err)
	}
	if !strings.Contains(err.Error(), "missing user, password, port") {
		t.Errorf("Validate() error = %q, want missing field names", err)
	}

	if err := (db2i.Credentials{DSN: "DSN=PROD"}).Validate(); err != nil {
		t.Errorf("Validate() with DSN error = %v", err)
	}
}

func TestCredentials_ConnString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ignore bool
		port   int
		want   string
	}{
		{"tls verified", false, 8075, "DRIVER={IBM i Access ODBC Driver};SYSTEM=ibmi.example.com;UID=QUSER;PWD={p;w}}d};NAM=0;SSL=1;DBQ=SAMPLE"},
		{"ignore unauthorized", true, 8075, "DRIVER={IBM i Access ODBC Driver};SYSTEM=ibmi.example.com;UID=QUSER;PWD={p;w}}d};NAM=0;DBQ=SAMPLE"},
		{"port not in string", true, 9471, "DRIVER={IBM i Access ODBC Driver};SYSTEM=ibmi.example.com;UID=QUSER;PWD={p;w}}d};NAM=0;DBQ=SAMPLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			creds := db2i.Credentials{Host: "ibmi.example.com", User: "QUSER", Password: "p;w}d", Port: tt.port, IgnoreUnauthorized: tt.ignore}
			if got := creds.ConnString("SAMPLE"); got != tt.want {
				t.Errorf("ConnString() = %q, want %q", got, tt.want)
			}
		})
	}

	creds := db2i.Credentials{Host: "ibmi.example.com", DSN: "DSN=PROD"}
	if got := creds.ConnString("SAMPLE"); got != "DSN=PROD" {
		t.Errorf("ConnString() with DSN = %q", got)
	}
}

func TestCredentials_Redacted(t *testing.T) {
	t.Parallel()

	creds := db2i.Credentials{Host: "ibmi.example.com", User: "QUSER", Password: "secret", Port: 8075}
	for _, s := range []string{creds.Redacted(), creds.String()} {
		if strings.Contains(s, "secret") {
			t.Errorf("redacted form leaks password: %q", s)
		}
		if !strings.Contains(s, "host=ibmi.example.com") {
			t.Errorf("redacted form = %q, want host", s)
		}
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	db, err := db2i.Open(context.Background(), db2i.Credentials{DSN: ":memory:"}, db2i.WithDriver("sqlite3"), db2i.WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	_, err = db2i.Open(context.Background(), db2i.Credentials{}, db2i.WithDriver("sqlite3"))
	if !errors.Is(err, db2i.ErrMissingCredentials) {
		t.Errorf("Open() error = %v, want ErrMissingCredentials", err)
	}

	_, err = db2i.Open(context.Background(), db2i.Credentials{DSN: "x"}, db2i.WithDriver("no-such-driver"))
	if !errors.Is(err, db2i.ErrConnectionFailed) {
		t.Errorf("Open() error = %v, want ErrConnectionFailed", err)
	}
}

func TestDb2iDialect(t *testing.T) {
	t.Parallel()

	d := db2i.Db2i{}
	if got, want := d.SampleRows("HR", "EMP", 3), `SELECT * FROM "HR"."EMP" FETCH FIRST 3 ROWS ONLY`; got != want {
		t.Errorf("SampleRows() = %q, want %q", got, want)
	}
	if got, want := d.SetSchema("O'X"), `SET CURRENT SCHEMA = 'O''X'`; got != want {
		t.Errorf("SetSchema() = %q, want %q", got, want)
	}
	query, args := d.ListTables("SAMPLE")
	if !strings.Contains(query, "QSYS2.SYSTABLES") || len(args) != 1 || args[0] != "SAMPLE" {
		t.Errorf("ListTables() = %q, %v", query, args)
	}
	query, args = d.TableDefinition("SAMPLE", "EMPLOYEE")
	if !strings.Contains(query, "QSYS2.GENERATE_SQL") || args[0] != "EMPLOYEE" || args[1] != "SAMPLE" {
		t.Errorf("TableDefinition() = %q, %v", query, args)
	}
}

func TestRunner(t *testing.T) {
	t.Parallel()

	r := db2i.NewRunner(newTestDB(t))
	ctx := context.Background()

	got, err := r.Run(ctx, "SELECT DEPTNO, DEPTNAME FROM DEPARTMENT;")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := `[{"DEPTNO":"A00","DEPTNAME":"SPIFFY COMPUTER SERVICE DIV."}]`; got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}

	got, err = r.Run(ctx, "SELECT * FROM PROJECT")
	if err != nil || got != db2i.NoResults {
		t.Errorf("Run() = %q, %v; want NoResults", got, err)
	}

	rs, err := r.Query(ctx, "SELECT FIRSTNME FROM EMPLOYEE WHERE SALARY > ? ORDER BY FIRSTNME", 40000)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if names := rs.Strings("firstnme"); strings.Join(names, ",") != "CHRISTINE,MICHAEL" {
		t.Errorf("Strings() = %v", names)
	}

	if _, err := r.Query(ctx, "SELECT * FROM MISSING_TABLE"); err == nil {
		t.Error("Query() on missing table succeeded")
	}
}
