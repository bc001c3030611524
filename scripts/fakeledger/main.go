package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/odyssey-erp/closure-watch/internal/ledger/fakeledger"
)

func main() {
	addr := getenv("FAKE_LEDGER_ADDR", ":8089")
	token := getenv("FAKE_LEDGER_TOKEN", "dev-token")
	count := getint("FAKE_LEDGER_ACCOUNTS", 300)
	seed := uint64(getint("FAKE_LEDGER_SEED", 1))

	data := fakeledger.Generate(seed, count, time.Now().UTC())
	negatives := 0
	for _, a := range data.Accounts {
		if a.Negative() {
			negatives++
		}
	}
	fmt.Printf("→ Serving %d accounts (%d overdrawn) on %s\n", len(data.Accounts), negatives, addr)
	fmt.Printf("  LEDGER_API_URL=http://localhost%s LEDGER_API_TOKEN=%s\n", addr, token)

	srv := &http.Server{
		Addr:              addr,
		Handler:           fakeledger.NewServer(data, token).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("fake ledger: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
