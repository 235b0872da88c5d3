package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// exportedCookie is one entry of a browser extension's JSON cookie export.
type exportedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// loadCookies reads the account cookie file. Two formats are accepted: a
// JSON array as exported by browser extensions, or a raw Cookie header
// line as copied from the browser's network inspector.
func loadCookies(path string) ([]*http.Cookie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cookie file: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("cookie file %s is empty", path)
	}

	var cookies []*http.Cookie
	if trimmed[0] == '[' {
		var exported []exportedCookie
		if err := json.Unmarshal(trimmed, &exported); err != nil {
			return nil, fmt.Errorf("parsing cookie export: %w",
				err)
		}

		for _, c := range exported {
			cookies = append(cookies, &http.Cookie{
				Name:  c.Name,
				Value: c.Value,
			})
		}
	} else {
		cookies, err = http.ParseCookie(string(trimmed))
		if err != nil {
			return nil, fmt.Errorf("parsing cookie header: %w",
				err)
		}
	}

	if !hasCookie(cookies, "auth_token") {
		return nil, fmt.Errorf("cookie file %s has no auth_token "+
			"cookie", path)
	}

	return cookies, nil
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}

	return false
}
