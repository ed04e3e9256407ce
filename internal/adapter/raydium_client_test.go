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

func TestRaydiumGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mint/price" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"success": true, "data": {%q: "149.80"}}`, testSOL)
	}))
	defer server.Close()

	client := NewRaydiumClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testSOL, types.FamilySVM, types.ChainSVM)
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if report == nil {
		t.Fatal("Expected a price report, got nil")
	}
	if report.Price != 149.80 {
		t.Errorf("Expected price 149.80, got %v", report.Price)
	}
}

func TestRaydiumNullMintIsNoAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success": true, "data": {%q: null}}`, testSOL)
	}))
	defer server.Close()

	client := NewRaydiumClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testSOL, types.FamilySVM, "")
	if err != nil {
		t.Fatalf("Expected no-answer without error, got %v", err)
	}
	if report != nil {
		t.Errorf("Expected nil report, got %+v", report)
	}
}

func TestRaydiumUnsuccessfulResponseIsNoAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false, "data": {}}`)
	}))
	defer server.Close()

	client := NewRaydiumClient(server.URL, 2*time.Second, 100)

	report, err := client.GetPrice(context.Background(), testSOL, types.FamilySVM, "")
	if err != nil || report != nil {
		t.Errorf("Expected clean no-answer, got report=%v err=%v", report, err)
	}
}

func TestRaydiumIgnoresEVMTokens(t *testing.T) {
	client := NewRaydiumClient("http://unused", time.Second, 100)

	report, err := client.GetPrice(context.Background(), testUSDC, types.FamilyEVM, "")
	if err != nil || report != nil {
		t.Errorf("Expected clean no-answer, got report=%v err=%v", report, err)
	}
}
