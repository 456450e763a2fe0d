package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// call はAPIを呼び出し、期待するステータスでなければエラーを返す。
// out が nil でなければレスポンスをデコードする。生のボディも返す。
func call(method, path string, in any, want int, out any) ([]byte, error) {
	return request(method, path, in, out, want)
}

func request(method, path string, in, out any, want ...int) ([]byte, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("--api-url is required (or set VAULT_URL)")
	}
	if token == "" {
		return nil, fmt.Errorf("--token is required (or set VAULT_TOKEN)")
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, strings.TrimRight(apiURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if !slices.Contains(want, resp.StatusCode) {
		return nil, handleErrorResponse(resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
	}
	return raw, nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		if errResp.Reason != "" {
			return fmt.Errorf("%s (%s)", errResp.Message, errResp.Reason)
		}
		return fmt.Errorf("%s", errResp.Message)
	}
	return fmt.Errorf("server returned status %d", statusCode)
}
