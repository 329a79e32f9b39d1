package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/bytedance/sonic"
)

const (
	baseURL   = "http://localhost:8080"
	chunkSize = 5 * 1024 * 1024
)

// This walks through the raw HTTP protocol without the SDK.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./example <file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}
	filename := "example.bin"

	fmt.Println("=== Init ===")
	var initResp struct {
		Success  bool   `json:"success"`
		UploadID string `json:"uploadId"`
		Error    string `json:"error"`
	}
	if err := postJSON("/api/upload/init", map[string]any{"filename": filename, "size": len(data)}, &initResp); err != nil {
		fmt.Printf("Init error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Upload id: %s\n", initResp.UploadID)

	fmt.Println("\n=== Chunks ===")
	for i := 0; i*chunkSize < len(data); i++ {
		chunk := data[i*chunkSize : min((i+1)*chunkSize, len(data))]
		query := url.Values{"uploadId": {initResp.UploadID}, "chunkIndex": {strconv.Itoa(i)}}

		resp, err := http.Post(baseURL+"/api/upload/chunk?"+query.Encode(), "application/octet-stream", bytes.NewReader(chunk))
		if err != nil {
			fmt.Printf("Chunk %d error: %v\n", i, err)
			os.Exit(1)
		}
		resp.Body.Close()
		fmt.Printf("Chunk %d: %d bytes, status %d\n", i, len(chunk), resp.StatusCode)
	}

	fmt.Println("\n=== Complete ===")
	var completeResp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
		Hash    string `json:"hash"`
		Error   string `json:"error"`
	}
	if err := postJSON("/api/upload/complete", map[string]any{"uploadId": initResp.UploadID, "filename": filename}, &completeResp); err != nil {
		fmt.Printf("Complete error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("URL: %s\nHash: %s\n", completeResp.URL, completeResp.Hash)

	fmt.Println("\n=== Fetch ===")
	resp, err := http.Get(baseURL + completeResp.URL)
	if err != nil {
		fmt.Printf("Fetch error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	fetched, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Fetch error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d bytes, identical: %v\n", len(fetched), bytes.Equal(fetched, data))
}

func postJSON(path string, payload, out any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
