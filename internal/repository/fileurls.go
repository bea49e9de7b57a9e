package repository

import (
	"encoding/json"
	"fmt"
)

// EncodeFileURLs serializes the ordered URL list for the file_urls column.
func EncodeFileURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("failed to encode file urls: %w", err)
	}
	return string(b), nil
}

// DecodeFileURLs parses the file_urls column.
func DecodeFileURLs(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, fmt.Errorf("failed to decode file urls: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}
