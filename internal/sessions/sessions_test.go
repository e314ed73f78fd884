package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func testSnapshot() history.Snapshot {
	user := models.NewUserMessage("list the files")
	user.Seq = 1
	reply := models.NewAssistantMessage("There are two files.")
	reply.Seq = 2
	return history.Snapshot{
		Messages: []models.Message{user, reply},
		Usage:    models.Usage{Input: 40, Output: 12, Total: 52},
		LastSeq:  2,
	}
}

func assertSnapshot(t *testing.T, got history.Snapshot) {
	t.Helper()
	want := testSnapshot()
	if got.LastSeq != want.LastSeq || got.Usage != want.Usage {
		t.Fatalf("snapshot = %+v", got)
	}
	if len(got.Messages) != len(want.Messages) {
		t.Fatalf("messages = %d, want %d", len(got.Messages), len(want.Messages))
	}
	for i := range want.Messages {
		if got.Messages[i].Content != want.Messages[i].Content || got.Messages[i].Seq != want.Messages[i].Seq {
			t.Errorf("message %d = %+v", i, got.Messages[i])
		}
	}
}

func setupMockDB(t *testing.T, dialect Dialect) (sqlmock.Sqlmock, *SQLStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewSQLStore(db, dialect)
}

func TestSQLStore_Save(t *testing.T) {
	tests := []struct {
		name        string
		sessionID   string
		setupMock   func(sqlmock.Sqlmock)
		wantErr     bool
		errContains string
	}{
		{
			name:      "successful upsert",
			sessionID: "s1",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO session_snapshots").
					WithArgs("s1", int64(2), int64(2), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:        "missing session ID",
			sessionID:   "",
			setupMock:   func(sqlmock.Sqlmock) {},
			wantErr:     true,
			errContains: "session ID is required",
		},
		{
			name:      "database error",
			sessionID: "s1",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO session_snapshots").
					WillReturnError(errors.New("disk full"))
			},
			wantErr:     true,
			errContains: "failed to save session s1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, store := setupMockDB(t, DialectSQLite)
			tt.setupMock(mock)

			err := store.Save(context.Background(), tt.sessionID, testSnapshot())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Save() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %q, want substring %q", err, tt.errContains)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestSQLStore_Load(t *testing.T) {
	data, err := json.Marshal(testSnapshot())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		wantErr   error
		wantAny   bool
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT data FROM session_snapshots").
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(string(data)))
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT data FROM session_snapshots").
					WithArgs("s1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "corrupt row",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT data FROM session_snapshots").
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow("{not json"))
			},
			wantAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, store := setupMockDB(t, DialectSQLite)
			tt.setupMock(mock)

			snap, err := store.Load(context.Background(), "s1")
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantAny:
				if err == nil {
					t.Fatal("expected error")
				}
			default:
				if err != nil {
					t.Fatalf("Load() error = %v", err)
				}
				assertSnapshot(t, snap)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestSQLStore_PostgresPlaceholders(t *testing.T) {
	mock, store := setupMockDB(t, DialectPostgres)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM session_snapshots WHERE session_id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_Rebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{DialectSQLite, "VALUES (?, ?, ?)"},
		{DialectPostgres, "VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			s := &SQLStore{dialect: tt.dialect}
			if got := s.rebind("VALUES (?, ?, ?)"); got != tt.want {
				t.Errorf("rebind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultSQLConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "sessions.db")

	store, err := OpenSQL(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty store = %v, want ErrNotFound", err)
	}

	first := testSnapshot()
	first.Messages = first.Messages[:1]
	first.LastSeq = 1
	if err := store.Save(ctx, "s1", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "s1", testSnapshot()); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	snap, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSnapshot(t, snap)

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete = %v, want ErrNotFound", err)
	}
}

func TestOpenSQL_RejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), SQLConfig{Driver: "oracle", DSN: "x"})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	snap := testSnapshot()
	if err := store.Save(ctx, "s1", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap.Messages[0].Content = "mutated after save"

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSnapshot(t, got)

	if err := store.Save(ctx, "", snap); err == nil {
		t.Error("expected error for empty session ID")
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d after delete", store.Len())
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete = %v", err)
	}
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	mgr, err := history.NewManager(history.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Resume(ctx, store, "missing", mgr)
	if err != nil || ok {
		t.Fatalf("Resume(missing) = %v, %v", ok, err)
	}

	if err := store.Save(ctx, "s1", testSnapshot()); err != nil {
		t.Fatal(err)
	}
	ok, err = Resume(ctx, store, "s1", mgr)
	if err != nil || !ok {
		t.Fatalf("Resume = %v, %v", ok, err)
	}
	if mgr.Len() != 2 || mgr.Usage().Total != 52 {
		t.Errorf("restored len %d usage %+v", mgr.Len(), mgr.Usage())
	}

	res, err := mgr.Append(ctx, models.NewUserMessage("next"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Seq != 3 {
		t.Errorf("next seq = %d, want 3", res.Seq)
	}
}

func TestResume_InvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bad := testSnapshot()
	bad.Messages[1].Seq = 1
	if err := store.Save(ctx, "s1", bad); err != nil {
		t.Fatal(err)
	}

	mgr, err := history.NewManager(history.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Resume(ctx, store, "s1", mgr); !errors.Is(err, history.ErrInvalidSnapshot) {
		t.Fatalf("err = %v, want ErrInvalidSnapshot", err)
	}
}
