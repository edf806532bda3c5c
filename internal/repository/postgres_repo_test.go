package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// PostgresChannelRepoはChannelRepositoryインターフェースを満たすことを検証
func TestPostgresChannelRepo_ImplementsInterface(t *testing.T) {
	var _ ChannelRepository = (*PostgresChannelRepo)(nil)
}

// PostgresProgramRepoはProgramRepositoryインターフェースを満たすことを検証
func TestPostgresProgramRepo_ImplementsInterface(t *testing.T) {
	var _ ProgramRepository = (*PostgresProgramRepo)(nil)
}

func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresChannelRepo(nil) == nil {
		t.Fatal("expected non-nil channel repo")
	}
	if NewPostgresProgramRepo(nil) == nil {
		t.Fatal("expected non-nil program repo")
	}
}

func TestNullString(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("空文字列はNULLになるべき")
	}
	ns := nullString("https://example.com/a.mp4")
	if !ns.Valid || ns.String != "https://example.com/a.mp4" {
		t.Errorf("nullString = %+v", ns)
	}
	if got := nullStringValue(sql.NullString{}); got != "" {
		t.Errorf("nullStringValue(NULL) = %q, want empty", got)
	}
	if got := nullStringValue(sql.NullString{String: "x", Valid: true}); got != "x" {
		t.Errorf("nullStringValue = %q, want x", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"一意制約違反", &pq.Error{Code: "23505"}, true},
		{"ラップされた一意制約違反", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"外部キー違反", &pq.Error{Code: "23503"}, false},
		{"その他のエラー", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestRequireAffected(t *testing.T) {
	if err := requireAffected(fakeResult{n: 1}, "msg"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := requireAffected(fakeResult{n: 0}, "msg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := requireAffected(fakeResult{err: errors.New("boom")}, "msg"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want wrapped driver error", err)
	}
}
