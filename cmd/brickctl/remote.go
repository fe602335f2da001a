package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

func statusCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/status"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		return err
	}
	return copyResponse(resp, stdout)
}

func sendCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	timeout := fs.Duration("timeout", 60*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	body, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/requests"
	cl := &http.Client{Timeout: *timeout}
	resp, err := cl.Post(u, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return copyResponse(resp, stdout)
}

func copyResponse(resp *http.Response, stdout io.Writer) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(stdout, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
