package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Exercises a running API end to end: authenticate, create an asset, check
// the evaluator's answers, list visibility, clean up.

type tokenResponse struct {
	Token   string `json:"token"`
	Profile struct {
		ID    string `json:"id"`
		OrgID string `json:"organization_id"`
	} `json:"profile"`
}

type assetResponse struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func main() {
	base := os.Getenv("HULLSCOPE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("HULLSCOPE_SMOKE_EMAIL")
	password := os.Getenv("HULLSCOPE_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set HULLSCOPE_SMOKE_EMAIL and HULLSCOPE_SMOKE_PASSWORD")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var tok tokenResponse
	mustCall(client, base, "", http.MethodPost, "/v1/auth/token",
		map[string]string{"email": email, "password": password}, &tok)
	if tok.Token == "" {
		log.Fatal("no token issued")
	}

	name := fmt.Sprintf("smoke-asset-%d", rand.Int())
	var asset assetResponse
	mustCall(client, base, tok.Token, http.MethodPost, "/v1/assets",
		map[string]string{"organization_id": tok.Profile.OrgID, "name": name}, &asset)
	if asset.ID == "" {
		log.Fatal("asset create returned no id")
	}

	var check checkResponse
	mustCall(client, base, tok.Token, http.MethodPost, "/v1/access/check",
		map[string]string{"kind": "asset", "resource_id": asset.ID, "action": "read"}, &check)
	if !check.Allowed {
		log.Fatalf("owner denied read on own asset %s", asset.ID)
	}

	var listing struct {
		Items []struct {
			Kind string `json:"kind"`
			ID   string `json:"id"`
		} `json:"items"`
	}
	mustCall(client, base, tok.Token, http.MethodGet, "/v1/resources", nil, &listing)
	found := false
	for _, item := range listing.Items {
		if item.Kind == "asset" && item.ID == asset.ID {
			found = true
		}
	}
	if !found {
		log.Fatalf("asset %s missing from accessible resources", asset.ID)
	}

	mustCall(client, base, tok.Token, http.MethodDelete, "/v1/assets/"+asset.ID, nil, nil)

	fmt.Printf("✅ access smoke test passed: asset=%s\n", asset.ID)
}

func mustCall(client *http.Client, base, token, method, path string, body any, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s %s: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, base+path, &buf)
	if err != nil {
		log.Fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var msg json.RawMessage
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		log.Fatalf("%s %s: status %d body %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}
