package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/whatsapp-clinic-bot/internal/config"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/knowledge"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// seedFile is the on-disk format: one doctor, many entries.
type seedFile struct {
	DoctorID string            `json:"doctor_id"`
	Entries  []knowledge.Entry `json:"entries"`
}

type entryAdder interface {
	Add(ctx context.Context, e knowledge.Entry) (string, error)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: seed-knowledge <knowledge-file.json>")
		fmt.Println("Example: seed-knowledge cmd/seed-knowledge/testdata/sample-knowledge.json")
		os.Exit(1)
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	file, err := loadSeedFile(os.Args[1])
	if err != nil {
		logger.Error("failed to load knowledge file", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := knowledge.NewPostgresStore(pool)
	inserted, failed := seed(ctx, store, file, logger)
	logger.Info("knowledge seeded", "doctor_id", file.DoctorID, "inserted", inserted, "failed", failed)

	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		defer redisClient.Close()
		cache := knowledge.NewCachedStore(store, redisClient, cfg.KnowledgeCacheTTL)
		if err := cache.Invalidate(ctx, file.DoctorID); err != nil {
			logger.Warn("failed to invalidate knowledge cache", "doctor_id", file.DoctorID, "error", err)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// loadSeedFile reads path and stamps the file's doctor id on every entry.
// Entries are active unless the file says otherwise.
func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw struct {
		DoctorID string            `json:"doctor_id"`
		Entries  []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(raw.DoctorID) == "" {
		return nil, fmt.Errorf("parse %s: doctor_id required", path)
	}

	file := &seedFile{DoctorID: raw.DoctorID, Entries: make([]knowledge.Entry, 0, len(raw.Entries))}
	for i, msg := range raw.Entries {
		e := knowledge.Entry{Active: true}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("parse %s: entry %d: %w", path, i, err)
		}
		e.DoctorID = raw.DoctorID
		file.Entries = append(file.Entries, e)
	}
	return file, nil
}

func seed(ctx context.Context, store entryAdder, file *seedFile, logger *logging.Logger) (inserted, failed int) {
	for i, e := range file.Entries {
		id, err := store.Add(ctx, e)
		if err != nil {
			failed++
			logger.Error("failed to insert knowledge entry", "index", i, "category", e.Category, "error", err)
			continue
		}
		inserted++
		logger.Debug("knowledge entry inserted", "id", id, "category", e.Category)
	}
	return inserted, failed
}
