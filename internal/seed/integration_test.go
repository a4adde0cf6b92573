//go:build integration

package seed

import (
	"net/url"
	"os"
	"strings"
	"testing"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/models"

	"github.com/stretchr/testify/require"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return &config.Config{
		DBHost:       u.Hostname(),
		DBPort:       port,
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       strings.TrimPrefix(u.Path, "/"),
		DBSSLMode:    "disable",
		Env:          "test",
		DBSchemaMode: database.SchemaModeSQL,
	}, nil
}

func TestIntegration_SmallPresetOnPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	require.NoError(t, err)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)

	s := NewSeeder(db, Options{SkipBcrypt: true, BatchSize: 50, MaxDays: 30})
	require.NoError(t, s.ClearAll())

	sum, err := s.ApplyPreset("small")
	require.NoError(t, err)

	var posts int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.Equal(t, int64(sum.Posts), posts)
}
