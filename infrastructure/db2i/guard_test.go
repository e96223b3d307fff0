package db2i_test

import (
	"errors"
	"testing"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

func TestGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sql     string
		want    string
		wantErr error
	}{
		{"select", "SELECT * FROM EMPLOYEE", "SELECT * FROM EMPLOYEE", nil},
		{"lowercase with whitespace", "  \n\tselect 1 from sysibm.sysdummy1;  ", "select 1 from sysibm.sysdummy1", nil},
		{"values", "VALUES CURRENT DATE", "VALUES CURRENT DATE", nil},
		{"cte", "WITH T AS (SELECT 1 AS X FROM SYSIBM.SYSDUMMY1) SELECT * FROM T", "WITH T AS (SELECT 1 AS X FROM SYSIBM.SYSDUMMY1) SELECT * FROM T", nil},
		{"leading comments", "-- top jobs\n/* cpu */ SELECT JOB_NAME FROM TABLE(QSYS2.ACTIVE_JOB_INFO()) X", "-- top jobs\n/* cpu */ SELECT JOB_NAME FROM TABLE(QSYS2.ACTIVE_JOB_INFO()) X", nil},
		{"keyword in literal", "SELECT 'DELETE; DROP' FROM SYSIBM.SYSDUMMY1", "SELECT 'DELETE; DROP' FROM SYSIBM.SYSDUMMY1", nil},
		{"escaped quote", "SELECT 'it''s; fine' FROM SYSIBM.SYSDUMMY1", "SELECT 'it''s; fine' FROM SYSIBM.SYSDUMMY1", nil},
		{"for update", "WITH T AS (SELECT * FROM EMPLOYEE) SELECT * FROM T FOR UPDATE", "WITH T AS (SELECT * FROM EMPLOYEE) SELECT * FROM T FOR UPDATE", nil},
		{"insert", "INSERT INTO EMPLOYEE VALUES (1)", "", db2i.ErrNotReadOnly},
		{"update", "update EMPLOYEE set SALARY = 0", "", db2i.ErrNotReadOnly},
		{"delete", "Delete From EMPLOYEE", "", db2i.ErrNotReadOnly},
		{"create", "CREATE TABLE X (A INT)", "", db2i.ErrNotReadOnly},
		{"alter", "ALTER TABLE EMPLOYEE ADD COLUMN X INT", "", db2i.ErrNotReadOnly},
		{"drop", "DROP TABLE EMPLOYEE", "", db2i.ErrNotReadOnly},
		{"call", "CALL QSYS2.QCMDEXC('DLTLIB QGPL')", "", db2i.ErrNotReadOnly},
		{"comment hides delete", "/* SELECT */ DELETE FROM EMPLOYEE", "", db2i.ErrNotReadOnly},
		{"line comment hides drop", "-- SELECT\nDROP TABLE EMPLOYEE", "", db2i.ErrNotReadOnly},
		{"cte with delete", "WITH T AS (SELECT 1 FROM SYSIBM.SYSDUMMY1) DELETE FROM EMPLOYEE", "", db2i.ErrNotReadOnly},
		{"final table insert", "SELECT * FROM FINAL TABLE (INSERT INTO EMP (ID) VALUES (1))", "", db2i.ErrNotReadOnly},
		{"old table delete", "SELECT * FROM OLD TABLE (DELETE FROM EMP)", "", db2i.ErrNotReadOnly},
		{"new table update", "select id from new table (update emp set salary = 0)", "", db2i.ErrNotReadOnly},
		{"cte over final table", "WITH X AS (SELECT * FROM FINAL TABLE (INSERT INTO EMP (ID) VALUES (1))) SELECT * FROM X", "", db2i.ErrNotReadOnly},
		{"merge in subquery", "VALUES (SELECT 1 FROM FINAL TABLE (MERGE INTO EMP USING X ON 1=1 WHEN MATCHED THEN DELETE))", "", db2i.ErrNotReadOnly},
		{"select for update", "SELECT * FROM EMPLOYEE FOR UPDATE OF SALARY", "SELECT * FROM EMPLOYEE FOR UPDATE OF SALARY", nil},
		{"keyword inside identifier", "SELECT LAST_UPDATE, \"DELETE\" FROM EMPLOYEE", "SELECT LAST_UPDATE, \"DELETE\" FROM EMPLOYEE", nil},
		{"stacked statements", "SELECT 1 FROM SYSIBM.SYSDUMMY1; DROP TABLE EMPLOYEE", "", db2i.ErrMultipleStatements},
		{"empty", "   ", "", db2i.ErrEmptyStatement},
		{"only semicolon", ";", "", db2i.ErrEmptyStatement},
		{"only comment", "-- nothing here", "", db2i.ErrEmptyStatement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := db2i.Guard(tt.sql)
			if err != nil && tt.wantErr == db2i.ErrNotReadOnly && err.Error() != "Only SELECT statements are allowed" {
				t.Errorf("Guard(%q) message = %q", tt.sql, err.Error())
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Guard(%q) error = %v, want %v", tt.sql, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Guard(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}

func TestTruncateWord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		length int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"the quick brown fox jumps", 15, "the quick..."},
		{"abcdefghijklmnop", 10, "abcdefg..."},
		{"anything", 0, "anything"},
		{"anything", -1, "anything"},
		{"ÅÄÖ åäö ÅÄÖ åäö", 10, "ÅÄÖ..."},
	}

	for _, tt := range tests {
		if got := db2i.TruncateWord(tt.in, tt.length); got != tt.want {
			t.Errorf("TruncateWord(%q, %d) = %q, want %q", tt.in, tt.length, got, tt.want)
		}
	}
}
