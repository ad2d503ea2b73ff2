// Package main provides a CI-friendly HTTP smoke test for the fansite auth API.
//
// It validates, against a running server:
//   - register returns a token pair and a User profile
//   - duplicate register is rejected
//   - /me accepts the access token
//   - refresh rotates the refresh token; replaying the old one fails
//   - logout invalidates the current refresh token
//   - login issues a fresh pair; logout-all revokes it
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type authResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type smokeClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		password = flag.String("password", "Smoke-Passw0rd", "Password for the throwaway account")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}
	email := "smoke-" + uuid.NewString() + "@example.com"
	creds := map[string]string{"email": email, "password": *password}

	var reg authResponse
	c.mustDo(http.MethodPost, "/api/auth/register", creds, "", http.StatusOK, &reg)
	if reg.AccessToken == "" || reg.RefreshToken == "" || reg.User.Role != "User" {
		fatalf("register: unexpected response: %+v", reg)
	}

	c.mustDo(http.MethodPost, "/api/auth/register", creds, "", http.StatusConflict, nil)
	c.mustDo(http.MethodGet, "/api/auth/me", nil, reg.AccessToken, http.StatusOK, nil)

	var r1 authResponse
	c.mustDo(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": reg.RefreshToken}, "", http.StatusOK, &r1)
	if r1.RefreshToken == reg.RefreshToken {
		fatalf("refresh: token was not rotated")
	}
	c.mustDo(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": reg.RefreshToken}, "", http.StatusUnauthorized, nil)

	c.mustDo(http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": r1.RefreshToken}, "", http.StatusNoContent, nil)
	c.mustDo(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": r1.RefreshToken}, "", http.StatusUnauthorized, nil)

	var login authResponse
	c.mustDo(http.MethodPost, "/api/auth/login", creds, "", http.StatusOK, &login)
	c.mustDo(http.MethodPost, "/api/auth/logout-all", nil, login.AccessToken, http.StatusNoContent, nil)
	c.mustDo(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, "", http.StatusUnauthorized, nil)

	fmt.Printf("OK: user_id=%s email=%s\n", reg.User.ID, email)
}

func (c *smokeClient) mustDo(method, path string, body any, bearer string, wantStatus int, out any) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s: %v", path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		fatalf("request %s: %v", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read body: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d\n", method, path, res.StatusCode)
	}
	if res.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, res.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
