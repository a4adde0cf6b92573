package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := newTestDB(t)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_Defaults(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, configurePool(db, &config.Config{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
}

func TestGetReadDB_FallsBackToPrimary(t *testing.T) {
	prevDB, prevRead := DB, ReadDB
	t.Cleanup(func() { DB, ReadDB = prevDB, prevRead })

	DB, ReadDB = nil, nil
	assert.Nil(t, GetReadDB())

	DB = newTestDB(t)
	assert.Same(t, DB, GetReadDB())

	ReadDB = newTestDB(t)
	assert.Same(t, ReadDB, GetReadDB())
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("db", "5432", "u", "p", "taskhub", "")
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=taskhub sslmode=disable", dsn)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto dev", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, false},
		{"auto prod refused", config.Config{Env: "prod", DBSchemaMode: "auto"}, false, false, true},
		{"auto prod override", config.Config{Env: "staging", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.RunSQL)
			assert.Equal(t, tt.wantAuto, plan.RunAuto)
		})
	}
}

func TestApplySchema_AutoModeOnSQLite(t *testing.T) {
	db := newTestDB(t)
	cfg := &config.Config{Env: "test", DBSchemaMode: SchemaModeAuto}

	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	for _, table := range []string{"users", "projects", "project_tags", "posts", "friendships"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"m/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"m/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
		"m/000001_first.down.sql":  {Data: []byte("SELECT -1;")},
		"m/README.md":              {Data: []byte("ignored")},
	}

	loaded, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 1, loaded[0].Version)
	assert.Equal(t, "first", loaded[0].Name)
	assert.Equal(t, "SELECT -2;", loaded[1].DownScript)
	assert.Equal(t, "000002_second", loaded[1].String())
}

func TestLoadMigrations_MissingDown(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000001_first.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := LoadMigrations(fsys, "m")
	assert.Error(t, err)
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := pendingMigrations([]int{1, 3}, registered)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{db: newTestDB(t), registered: []Migration{
		{Version: 1, Name: "gardens", UpScript: "CREATE TABLE gardens (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE gardens"},
		{Version: 2, Name: "beds", UpScript: "CREATE TABLE beds (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE beds"},
	}}
}

func TestRunner_UpIsIdempotent(t *testing.T) {
	r := testRunner(t)
	ctx := context.Background()

	applied, err := r.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	require.NoError(t, r.Up(ctx))
	require.NoError(t, r.Up(ctx))

	applied, err = r.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, r.db.Migrator().HasTable("beds"))
}

func TestRunner_UpRejectsUnknownVersions(t *testing.T) {
	r := testRunner(t)
	ctx := context.Background()
	require.NoError(t, r.Up(ctx))

	r.registered = r.registered[:1]
	err := r.Up(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000002")
}

func TestRunner_UpRollsBackFailedScript(t *testing.T) {
	r := testRunner(t)
	r.registered = append(r.registered, Migration{Version: 3, Name: "broken", UpScript: "CREATE TABLE", DownScript: ""})
	ctx := context.Background()

	require.Error(t, r.Up(ctx))
	applied, err := r.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
}

func TestRunner_Down(t *testing.T) {
	r := testRunner(t)
	ctx := context.Background()
	require.NoError(t, r.Up(ctx))

	err := r.Down(ctx, 1)
	require.Error(t, err, "only the latest migration can be reverted")
	assert.Contains(t, err.Error(), "000002")

	assert.Error(t, r.Down(ctx, 9))

	require.NoError(t, r.Down(ctx, 2))
	assert.False(t, r.db.Migrator().HasTable("beds"))
	assert.Error(t, r.Down(ctx, 2), "already reverted")

	applied, err := r.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(middleware.WithHandlerForTest(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l := NewGormLogger()
	stmt := func() (string, int64) { return `SELECT * FROM "projects"`, 0 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), stmt, nil)
	assert.Empty(t, buf.String(), "not-found and fast queries stay quiet at warn")

	l.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), `"msg":"query failed"`)
	buf.Reset()

	l.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), `"msg":"slow query"`)
	buf.Reset()

	l.LogMode(logger.Info).Trace(ctx, time.Now(), stmt, nil)
	assert.Contains(t, buf.String(), `"msg":"query"`)
	buf.Reset()

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), stmt, errors.New("boom"))
	assert.Empty(t, buf.String())
}
