// Package store keeps the latest scan result. Every save overwrites the previous snapshot.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/closure-watch/internal/scan"
)

// LatestKey identifies the latest scan snapshot in every backend.
const LatestKey = "closurewatch:scan:latest"

// Drivers accepted by STORE_DRIVER.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var (
	_ scan.Store = (*Redis)(nil)
	_ scan.Store = (*Postgres)(nil)
	_ scan.Store = (*Memory)(nil)
)

func encode(result scan.Result) ([]byte, error) {
	if result.Results == nil {
		result.Results = []scan.AlertRecord{}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("store: encode scan result: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (scan.Result, error) {
	var result scan.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return scan.Result{}, fmt.Errorf("store: decode scan result: %w", err)
	}
	if result.Results == nil {
		result.Results = []scan.AlertRecord{}
	}
	return result, nil
}
