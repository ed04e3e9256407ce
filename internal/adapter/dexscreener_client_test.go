package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trading-simulator/internal/types"
)

const (
	testUSDC = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	testSOL  = "So11111111111111111111111111111111111111112"
)

func dexScreenerPayload(chainID, address, priceUSD string, liquidity float64) string {
	return fmt.Sprintf(`[{
		"chainId": %q,
		"baseToken": {"address": %q, "symbol": "TKN"},
		"priceUsd": %q,
		"liquidity": {"usd": %f}
	}]`, chainID, address, priceUSD, liquidity)
}

func TestDexScreenerGetPriceWithHint(t *testing.T) {
	var requestedPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPaths = append(requestedPaths, r.URL.Path)
		fmt.Fprint(w, dexScreenerPayload("polygon", testUSDC, "0.9998", 1500000))
	}))
	defer server.Close()

	client := NewDexScreenerClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testUSDC, types.FamilyEVM, types.ChainPolygon)
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if report == nil {
		t.Fatal("Expected a price report, got nil")
	}
	if report.Price != 0.9998 {
		t.Errorf("Expected price 0.9998, got %v", report.Price)
	}
	if report.SpecificChain != types.ChainPolygon {
		t.Errorf("Expected polygon, got %s", report.SpecificChain)
	}
	if len(requestedPaths) != 1 {
		t.Errorf("Expected a single request with a network hint, got %d: %v", len(requestedPaths), requestedPaths)
	}
}

func TestDexScreenerProbesNetworksWithoutHint(t *testing.T) {
	var requestedPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPaths = append(requestedPaths, r.URL.Path)
		// Token unknown on ethereum, found on polygon.
		if r.URL.Path == fmt.Sprintf("/tokens/v1/ethereum/%s", testUSDC) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, dexScreenerPayload("polygon", testUSDC, "1.0001", 900000))
	}))
	defer server.Close()

	client := NewDexScreenerClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testUSDC, types.FamilyEVM, "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if report == nil {
		t.Fatal("Expected a price report, got nil")
	}
	if report.SpecificChain != types.ChainPolygon {
		t.Errorf("Expected discovery to land on polygon, got %s", report.SpecificChain)
	}
	if len(requestedPaths) != 2 {
		t.Errorf("Expected ethereum then polygon probes, got %v", requestedPaths)
	}
}

func TestDexScreenerUnknownTokenIsNoAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewDexScreenerClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testUSDC, types.FamilyEVM, "")
	if err != nil {
		t.Fatalf("Expected no-answer without error, got %v", err)
	}
	if report != nil {
		t.Errorf("Expected nil report for unknown token, got %+v", report)
	}
}

func TestDexScreenerPicksDeepestPool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[
			{"chainId": "solana", "baseToken": {"address": %q}, "priceUsd": "149.0", "liquidity": {"usd": 1000}},
			{"chainId": "solana", "baseToken": {"address": %q}, "priceUsd": "150.5", "liquidity": {"usd": 5000000}},
			{"chainId": "solana", "baseToken": {"address": "OtherMint"}, "priceUsd": "9.99", "liquidity": {"usd": 99000000}}
		]`, testSOL, testSOL)
	}))
	defer server.Close()

	client := NewDexScreenerClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testSOL, types.FamilySVM, "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if report == nil {
		t.Fatal("Expected a price report, got nil")
	}
	if report.Price != 150.5 {
		t.Errorf("Expected deepest pool price 150.5, got %v", report.Price)
	}
	if report.Chain != types.FamilySVM || report.SpecificChain != types.ChainSVM {
		t.Errorf("Expected svm identity, got %s/%s", report.Chain, report.SpecificChain)
	}
}

func TestDexScreenerServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewDexScreenerClient(server.URL, 2*time.Second, 100)

	_, err := client.GetPrice(context.Background(), testSOL, types.FamilySVM, "")
	if err == nil {
		t.Fatal("Expected an error when every probe fails")
	}
}
