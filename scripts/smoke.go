//go:build ignore

// End-to-end smoke check against a locally running instance.
// Run: go run scripts/smoke.go
//
// Exercises the full transfer pipeline: provisions two wallets, moves funds
// once, replays the same idempotency key, and checks both balances.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if url := os.Getenv("SMOKE_BASE_URL"); url != "" {
		baseURL = url
	}

	// Unique owners per run, the owner_id column is unique.
	run := fmt.Sprintf("%d", time.Now().UnixNano())
	fromID := createWallet("smoke-"+run+"-a", "100.00")
	toID := createWallet("smoke-"+run+"-b", "")

	key := "smoke-" + run

	first := transfer(fromID, toID, "25.50", key)
	fmt.Printf("first attempt:  %s (tx %s)\n", first.Message, first.TransactionID)

	replay := transfer(fromID, toID, "25.50", key)
	fmt.Printf("replay attempt: %s (tx %s)\n", replay.Message, replay.TransactionID)

	if replay.TransactionID != first.TransactionID {
		log.Fatalf("replay returned a different transaction id: %s vs %s",
			replay.TransactionID, first.TransactionID)
	}

	fromBalance := balance(fromID)
	toBalance := balance(toID)
	fmt.Printf("balances: from=%s to=%s\n", fromBalance, toBalance)

	if fromBalance != "74.5000" || toBalance != "25.5000" {
		log.Fatalf("unexpected balances after transfer+replay: from=%s to=%s", fromBalance, toBalance)
	}

	fmt.Println("smoke check passed")
}

// createWallet goes through the administrative endpoint; its success body is
// enveloped, unlike the transfer pipeline's flat responses.
func createWallet(ownerID, initialBalance string) string {
	payload := map[string]string{"ownerId": ownerID}
	if initialBalance != "" {
		payload["initialBalance"] = initialBalance
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			ID string `json:"id"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	postJSON("/api/wallet", payload, &envelope)
	if !envelope.Success {
		msg := "unknown error"
		if envelope.Error != nil {
			msg = envelope.Error.Code + ": " + envelope.Error.Message
		}
		log.Fatalf("create wallet %s: %s", ownerID, msg)
	}

	fmt.Printf("wallet %s -> %s\n", ownerID, envelope.Data.ID)
	return envelope.Data.ID
}

type transferResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
	FromBalance   string `json:"fromBalance"`
	ToBalance     string `json:"toBalance"`
}

func transfer(fromID, toID, amount, key string) transferResult {
	payload := map[string]string{
		"fromWalletId":   fromID,
		"toWalletId":     toID,
		"amount":         amount,
		"idempotencyKey": key,
	}

	var result transferResult
	postJSON("/api/transfer", payload, &result)
	if !result.Success {
		log.Fatalf("transfer %s: unexpected failure body", key)
	}
	return result
}

func balance(walletID string) string {
	var result struct {
		WalletID string `json:"walletId"`
		Balance  string `json:"balance"`
	}
	getJSON("/api/wallet/"+walletID+"/balance", &result)
	return result.Balance
}

func postJSON(path string, payload any, out any) {
	body, _ := json.Marshal(payload)
	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	decode(path, resp, out)
}

func getJSON(path string, out any) {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		log.Fatalf("GET %s: %v", path, err)
	}
	decode(path, resp, out)
}

func decode(path string, resp *http.Response, out any) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("%s: read failed: %v", path, err)
	}
	if resp.StatusCode >= 400 {
		log.Fatalf("%s: HTTP %d: %s", path, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Fatalf("%s: bad response %q: %v", path, raw, err)
	}
}
