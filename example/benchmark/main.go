package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/beanbocchi/parcel/pkg/sdk"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "parcel server URL")
	sizeFlag := flag.String("size", "64MB", "payload size")
	flag.Parse()

	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(*sizeFlag)); err != nil {
		fmt.Printf("Invalid size %q: %v\n", *sizeFlag, err)
		os.Exit(1)
	}

	payload := make([]byte, size.Bytes())
	if _, err := rand.Read(payload); err != nil {
		fmt.Printf("Failed to generate payload: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("Chunked Upload Benchmark")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Server:  %s\n", *server)
	fmt.Printf("Payload: %s (%d bytes)\n", size.HumanReadable(), len(payload))
	fmt.Println()

	fmt.Printf("%-12s %8s %15s %15s\n", "Chunk size", "Chunks", "Time", "Throughput")
	fmt.Println(strings.Repeat("-", 70))

	for _, chunkSize := range []datasize.ByteSize{1 * datasize.MB, 5 * datasize.MB, 10 * datasize.MB, 25 * datasize.MB} {
		client := sdk.NewClient(*server, sdk.WithChunkSize(int64(chunkSize.Bytes())))

		start := time.Now()
		res, err := client.UploadFile(context.Background(), sdk.UploadRequest{
			File:     bytes.NewReader(payload),
			Size:     int64(len(payload)),
			FileName: "benchmark.bin",
		})
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%-12s failed: %v\n", chunkSize.HumanReadable(), err)
			continue
		}

		chunks := (uint64(len(payload)) + chunkSize.Bytes() - 1) / chunkSize.Bytes()
		throughput := datasize.ByteSize(float64(res.Size) / elapsed.Seconds())
		fmt.Printf("%-12s %8d %15s %13s/s\n", chunkSize.HumanReadable(), chunks, elapsed.Round(time.Millisecond), throughput.HumanReadable())
	}
}
