package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	host       = flag.String("host", "http://localhost:8080", "swap gateway host")
	flatPreset = flag.String("preset", "", "preset to execute (balance|swap)")
	address    = flag.String("address", "", "owner address for balance, signer address for swap")
	assetID    = flag.String("asset", "SOL", "asset symbol or mint address for balance")
	from       = flag.String("from", "SOL", "asset to sell")
	to         = flag.String("to", "USDC", "asset to buy")
	amount     = flag.String("amount", "0.001", "human amount of the asset to sell")
	deadline   = flag.Duration("deadline", 90*time.Second, "request deadline")
)

var presets = map[string]func(context.Context) error{
	"balance": presetBalance,
	"swap":    presetSwap,
}

func main() {
	flag.Parse()

	if *flatPreset == "" {
		panic("preset is required")
	}
	preset, ok := presets[*flatPreset]
	if !ok {
		panic(fmt.Sprintf("unknown preset: %s", *flatPreset))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *deadline+5*time.Second)
	defer cancel()

	err := preset(ctx)
	if err != nil {
		panic(err)
	}
}

func call(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, *host+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make http call: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return res.StatusCode, resBody, nil
}

func presetBalance(ctx context.Context) error {
	if *address == "" {
		return fmt.Errorf("-address is required")
	}

	q := url.Values{}
	q.Set("asset", *assetID)
	q.Set("deadlineMs", fmt.Sprint(deadline.Milliseconds()))

	code, body, err := call(ctx, http.MethodGet, "/v1/balance/"+url.PathEscape(*address)+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return printResponse(code, body)
}

func presetSwap(ctx context.Context) error {
	code, body, err := call(ctx, http.MethodPost, "/v1/swap", map[string]any{
		"fromAsset":     *from,
		"toAsset":       *to,
		"amount":        *amount,
		"signerAddress": *address,
		"deadlineMs":    deadline.Milliseconds(),
	})
	if err != nil {
		return err
	}
	return printResponse(code, body)
}

func printResponse(code int, body []byte) error {
	var out bytes.Buffer
	err := json.Indent(&out, body, "", "  ")
	if err != nil {
		out.Reset()
		out.Write(body)
	}
	fmt.Printf("HTTP %d\n%s\n", code, out.String())
	return nil
}
