// netprobe walks the BFF endpoints with a real portal token and prints what
// each one returns. Useful for checking section states against a live portal.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

type probe struct {
	baseURL string
	token   string
	client  *http.Client
}

func (p *probe) send(method, path string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, p.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

// step runs one request and reports it. It returns false on transport errors.
func (p *probe) step(title, method, path string, body interface{}) bool {
	color.Yellow("\n%s", title)
	start := time.Now()
	resp, respBody, err := p.send(method, path, body)
	if err != nil {
		color.Red("Failed: %v", err)
		return false
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	if resp.StatusCode >= 400 {
		color.Red("Status: %s (%s)", resp.Status, elapsed)
	} else {
		color.Green("Status: %s (%s)", resp.Status, elapsed)
	}
	printSections(respBody)
	return true
}

// printSections summarises each section of a snapshot instead of dumping it.
func printSections(body []byte) {
	var resp struct {
		Message string                     `json:"message"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(resp.Message)

	for name, raw := range resp.Data {
		var state struct {
			Data      []json.RawMessage `json:"data"`
			IsLoading *bool             `json:"is_loading"`
			Error     string            `json:"error"`
		}
		if err := json.Unmarshal(raw, &state); err != nil || state.IsLoading == nil {
			fmt.Printf("  %-18s %s\n", name, string(raw))
			continue
		}
		switch {
		case state.Error != "":
			color.Red("  %-18s error: %s (%d items kept)", name, state.Error, len(state.Data))
		case *state.IsLoading:
			color.Cyan("  %-18s loading", name)
		default:
			fmt.Printf("  %-18s %d items\n", name, len(state.Data))
		}
	}
}

func main() {
	baseURL := flag.String("base", "http://localhost:3000/api", "BFF base URL")
	token := flag.String("token", os.Getenv("LEARNLINK_TOKEN"), "portal bearer token")
	target := flag.String("target", "", "user id to send a connection request to")
	logout := flag.Bool("logout", false, "drop the session at the end")
	flag.Parse()

	if *token == "" {
		color.Red("A token is required (-token or LEARNLINK_TOKEN)")
		os.Exit(1)
	}

	p := &probe{baseURL: *baseURL, token: *token, client: &http.Client{Timeout: 30 * time.Second}}
	color.Cyan("🚀 Probing %s", *baseURL)

	steps := []struct {
		title, method, path string
		body                interface{}
	}{
		{"[NETWORK] 1. Snapshot (first call starts loading)", http.MethodGet, "/network/v1", nil},
		{"[NETWORK] 2. Refresh and wait", http.MethodPost, "/network/v1/refresh", nil},
		{"[NETWORK] 3. Snapshot (cached)", http.MethodGet, "/network/v1", nil},
		{"[DASHBOARD] 4. Snapshot", http.MethodGet, "/dashboard/v1", nil},
		{"[DASHBOARD] 5. Refresh announcements only", http.MethodPost, "/dashboard/v1/refresh", map[string][]string{"sections": {"announcements"}}},
	}
	for _, s := range steps {
		if !p.step(s.title, s.method, s.path, s.body) {
			os.Exit(1)
		}
	}

	if *target != "" {
		p.step("[NETWORK] 6. Send connection request to "+*target, http.MethodPost, "/network/v1/requests", map[string]string{"target_id": *target})
		p.step("[NETWORK] 7. Send again (expect 409)", http.MethodPost, "/network/v1/requests", map[string]string{"target_id": *target})
	}

	if *logout {
		p.step("[SESSION] Logout", http.MethodDelete, "/session/v1", nil)
	}

	color.Cyan("\nDone.")
}
