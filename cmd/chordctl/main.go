// Command chordctl is a small CLI client for a running ring: bulk CSV
// insert, key lookup, and membership/status reporting against the
// coordinator's HTTP endpoints. Grounded on KoordeDHT's cmd/client and
// cmd/tester layout and its internal/client package.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

func main() {
	coordinator := flag.String("coordinator", "http://127.0.0.1:9000", "ring coordinator base URL")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var err error
	switch flag.Arg(0) {
	case "lookup":
		if flag.NArg() != 2 {
			usage()
			os.Exit(2)
		}
		err = lookup(client, *coordinator, flag.Arg(1))
	case "upload":
		if flag.NArg() != 2 {
			usage()
			os.Exit(2)
		}
		err = upload(client, *coordinator, flag.Arg(1))
	case "status":
		err = status(client, *coordinator)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "chordctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: chordctl [-coordinator url] lookup <key> | upload <file.csv> | status")
}

func lookup(client *http.Client, coordinator, key string) error {
	body, err := json.Marshal(struct {
		Key string `json:"key"`
	}{Key: key})
	if err != nil {
		return err
	}
	resp, err := client.Post(coordinator+"/lookup", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func upload(client *http.Client, coordinator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", path)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		mw.Close()
		pw.CloseWithError(err)
	}()

	resp, err := client.Post(coordinator+"/upload", mw.FormDataContentType(), pr)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func status(client *http.Client, coordinator string) error {
	resp, err := client.Get(coordinator + "/data")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err == nil {
		encoded, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}
	fmt.Println(string(data))
	return nil
}
