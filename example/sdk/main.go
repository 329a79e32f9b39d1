package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beanbocchi/parcel/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./example/sdk <file>")
		os.Exit(1)
	}

	client := sdk.NewClient("http://localhost:8080")
	ctx := context.Background()

	file, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Printf("Failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		fmt.Printf("Failed to stat file: %v\n", err)
		os.Exit(1)
	}

	// Upload
	res, err := client.UploadFile(ctx, sdk.UploadRequest{
		File:     file,
		Size:     info.Size(),
		FileName: filepath.Base(info.Name()),
		OnProgress: func(percent int) {
			fmt.Printf("\rUploading... %3d%%", percent)
		},
	})
	fmt.Println()
	if err != nil {
		var chunkErr *sdk.ChunkUploadError
		if errors.As(err, &chunkErr) {
			fmt.Printf("Chunk %d failed, resume with upload id %s\n", chunkErr.Index, chunkErr.UploadID)
		}
		fmt.Printf("Upload failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Upload successful: %s (%d bytes, blake3 %s)\n", res.URL, res.Size, res.Hash)

	// Download
	output, err := os.Create("downloaded_" + res.FileName)
	if err != nil {
		fmt.Printf("Failed to create file: %v\n", err)
		os.Exit(1)
	}
	defer output.Close()

	if _, err := client.Download(ctx, res.URL, output, res.Hash); err != nil {
		fmt.Printf("Download failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Download successful, hash verified")
}
