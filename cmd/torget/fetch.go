package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/torhttp"
	"github.com/nao1215/torhttp/internal/config"
	"github.com/nao1215/torhttp/internal/history"
	"github.com/nao1215/torhttp/internal/log"
	"github.com/nao1215/torhttp/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [url]...",
		Short: "Fetch one or more URLs through Tor",
		Long: `Fetch retrieves HTTP and HTTPS URLs through the Tor network.
Onion services are validated before any stream is opened, so typos in
v3 addresses fail fast instead of timing out.

Examples:
  # Fetch a single page to stdout
  torget fetch http://duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion/

  # Save the body to a file
  torget fetch -o page.html https://example.com/

  # Use an external Tor proxy instead of the embedded daemon
  torget fetch --external-tor 127.0.0.1:9150 http://example.onion/

  # Fetch many URLs concurrently from a list file
  torget fetch --list urls.txt --output-dir ./pages

  # Send a POST request
  torget fetch -X POST -d '{"q":"hello"}' --content-type application/json http://example.onion/api

Configuration file (.torget) example:
  defaults:
    userAgent: "torget/1.0"
  hosts:
    example.onion:
      cookie: "session=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runFetchCmd,
	}

	// Tor connection flags
	cmd.Flags().StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9150)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Request flags
	cmd.Flags().StringP("method", "X", "GET",
		"HTTP method: GET, POST, or HEAD")
	cmd.Flags().StringP("data", "d", "",
		"Request body for POST")
	cmd.Flags().String("content-type", "application/octet-stream",
		"Content-Type for POST bodies")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each fetch")
	cmd.Flags().IntP("max-redirects", "r", 0,
		"Follow up to this many redirects (0 returns 3xx responses as-is)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().StringP("user-agent", "A", "",
		"User-Agent header (empty sends none)")
	cmd.Flags().BoolP("insecure", "k", false,
		"Skip TLS certificate verification")

	// Batch flags
	cmd.Flags().StringP("list", "l", "",
		"File with one URL per line")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent fetches")

	// Config and output flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .torget in current or home directory)")
	cmd.Flags().StringP("output", "o", "",
		"Write the response body to this file (single URL only)")
	cmd.Flags().StringP("output-dir", "O", "",
		"Write each response body to a file under this directory")
	cmd.Flags().Bool("no-history", false,
		"Do not record fetches in the history database")

	return cmd
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, method, body, contentType, outputDir, err := buildFetchConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runFetch(ctx, cfg, &fetchRequest{
		method:      method,
		body:        body,
		contentType: contentType,
		outputDir:   outputDir,
	}, logger)
}

// fetchRequest carries the per-invocation request shape, separate from
// the long-lived Config.
type fetchRequest struct {
	method      string
	body        []byte
	contentType string
	outputDir   string
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildFetchConfig creates a Config from cobra command flags.
func buildFetchConfig(cmd *cobra.Command, args []string) (cfg *config.Config, method string, body []byte, contentType, outputDir string, err error) {
	cfg = config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	externalTor, err := cmd.Flags().GetString("external-tor")
	if err != nil {
		return nil, "", nil, "", "", err
	}
	if externalTor != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}

	if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.MaxRedirects, err = cmd.Flags().GetInt("max-redirects"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.Insecure, err = cmd.Flags().GetBool("insecure"); err != nil {
		return nil, "", nil, "", "", err
	}
	if cfg.OutputFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, "", nil, "", "", err
	}
	if outputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return nil, "", nil, "", "", err
	}

	if method, err = cmd.Flags().GetString("method"); err != nil {
		return nil, "", nil, "", "", err
	}
	method = strings.ToUpper(method)
	switch method {
	case "GET", "POST", "HEAD":
	default:
		return nil, "", nil, "", "", fmt.Errorf("unsupported method %q: use GET, POST, or HEAD", method)
	}

	data, err := cmd.Flags().GetString("data")
	if err != nil {
		return nil, "", nil, "", "", err
	}
	if data != "" {
		if method != "POST" {
			return nil, "", nil, "", "", fmt.Errorf("--data requires -X POST")
		}
		body = []byte(data)
	}
	if contentType, err = cmd.Flags().GetString("content-type"); err != nil {
		return nil, "", nil, "", "", err
	}

	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, "", nil, "", "", err
	}
	if err = loadHostConfigs(cfg); err != nil {
		return nil, "", nil, "", "", err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, "", nil, "", "", err
	}
	if !noHistory {
		cfg.HistoryDir = config.XDGDataDir()
	}

	cfg.Targets = args
	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, "", nil, "", "", err
	}
	if listFile != "" {
		listed, err := readURLList(listFile)
		if err != nil {
			return nil, "", nil, "", "", err
		}
		cfg.Targets = append(cfg.Targets, listed...)
	}

	if cfg.OutputFile != "" && len(cfg.Targets) > 1 {
		return nil, "", nil, "", "", fmt.Errorf("--output works with a single URL; use --output-dir for multiple")
	}

	return cfg, method, body, contentType, outputDir, nil
}

// loadHostConfigs resolves and parses the .torget file. An explicit
// --config path must exist; the default search may come up empty.
func loadHostConfigs(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)

	if path != "" {
		hosts, err := config.LoadConfigFile(path)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.Hosts = hosts
		return nil
	}
	if explicit {
		return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}
	cfg.Hosts = &config.File{Hosts: make(map[string]config.HostConfig)}
	return nil
}

// readURLList reads one URL per line, skipping blanks and # comments.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

// runFetch builds the client and dispatches sequential or batch mode.
func runFetch(ctx context.Context, cfg *config.Config, req *fetchRequest, logger *slog.Logger) error {
	logger.Info("starting fetch",
		"targets", len(cfg.Targets),
		"useExternalTor", cfg.UseExternalTor,
		"batchSize", cfg.BatchSize,
	)

	var db *history.DB
	if cfg.HistoryDir != "" {
		var err error
		db, err = history.Open(cfg.HistoryDir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
	}

	client, embedded, err := buildClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	if embedded != nil {
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}

	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		return runBatchFetch(ctx, cfg, req, client, db, logger)
	}
	return runSequentialFetch(ctx, cfg, req, client, db, logger)
}

// buildClient wires a torhttp.Client against an external proxy or an
// embedded Tor daemon. The caller stops the returned daemon when non-nil.
func buildClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*torhttp.Client, *transport.EmbeddedTor, error) {
	var tlsConfig *tls.Config
	if cfg.Insecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Explicitly requested via --insecure
	}

	proxyAddress := cfg.TorProxyAddress
	var embedded *transport.EmbeddedTor

	if cfg.UseExternalTor {
		status := transport.CheckProxy(ctx, proxyAddress)
		if status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, proxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", proxyAddress)
	} else {
		embedded = transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		logger.Info("starting embedded Tor daemon (this may take a few minutes)...")
		if err := embedded.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		proxyAddress = embedded.SocksAddr()
		logger.Info("embedded Tor ready", "socksAddr", proxyAddress)
	}

	clientCfg, err := torhttp.NewClientConfigBuilder().
		TLSConfig(tlsConfig).
		TorConfig(torhttp.TorConfig{
			ProxyAddress:   proxyAddress,
			AllowOnion:     true,
			ConnectTimeout: cfg.Timeout,
		}).
		RequestTimeout(cfg.Timeout).
		MaxBodySize(cfg.MaxBodySize).
		UserAgent(cfg.UserAgent).
		Build()
	if err != nil {
		stopEmbedded(embedded, logger)
		return nil, nil, fmt.Errorf("failed to build client config: %w", err)
	}

	client, err := torhttp.NewWithConfig(clientCfg, torhttp.WithLogger(logger))
	if err != nil {
		stopEmbedded(embedded, logger)
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, embedded, nil
}

func stopEmbedded(embedded *transport.EmbeddedTor, logger *slog.Logger) {
	if embedded == nil {
		return
	}
	if err := embedded.Stop(); err != nil {
		logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// runSequentialFetch fetches targets one at a time.
func runSequentialFetch(ctx context.Context, cfg *config.Config, req *fetchRequest, client *torhttp.Client, db *history.DB, logger *slog.Logger) error {
	var failed int
	for _, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fetchOne(ctx, cfg, req, client, db, logger, target); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Fetch error for %s: %v\n", target, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(cfg.Targets))
	}
	return nil
}

// runBatchFetch fetches targets concurrently, bounded by BatchSize.
func runBatchFetch(ctx context.Context, cfg *config.Config, req *fetchRequest, client *torhttp.Client, db *history.DB, logger *slog.Logger) error {
	fmt.Printf("Fetching %d URLs (concurrency: %d)...\n", len(cfg.Targets), cfg.BatchSize)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BatchSize)

	results := make([]error, len(cfg.Targets))
	for i, target := range cfg.Targets {
		g.Go(func() error {
			results[i] = fetchOne(gctx, cfg, req, client, db, logger, target)
			// Keep going; per-URL failures are reported at the end.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var failed int
	for i, err := range results {
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Fetch error for %s: %v\n", cfg.Targets[i], err)
		}
	}
	fmt.Printf("Done in %s: %d succeeded, %d failed\n",
		time.Since(startTime).Round(time.Millisecond), len(cfg.Targets)-failed, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(cfg.Targets))
	}
	return nil
}

// fetchOne performs a single fetch, following redirects up to the
// configured budget, then writes the body and records history.
func fetchOne(ctx context.Context, cfg *config.Config, req *fetchRequest, client *torhttp.Client, db *history.DB, logger *slog.Logger, target string) error {
	startTime := time.Now()
	resp, finalURL, err := fetchWithRedirects(ctx, cfg, req, client, target)
	elapsed := time.Since(startTime)

	if db != nil {
		record := &history.FetchRecord{
			URL:      target,
			Host:     hostOf(target),
			Method:   req.method,
			Duration: elapsed,
		}
		if err != nil {
			record.Error = err.Error()
		} else {
			record.StatusCode = resp.StatusCode
			record.ContentType = resp.ContentType()
			record.BodySize = int64(len(resp.Body))
			record.Headers = headerMap(resp)
		}
		if _, saveErr := db.SaveFetch(ctx, record); saveErr != nil {
			logger.Error("failed to save fetch record", "url", target, "error", saveErr)
		}
	}

	if err != nil {
		return err
	}

	logger.Debug("fetch complete",
		"url", finalURL,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
		"elapsed", elapsed,
	)
	return writeBody(cfg, req, target, resp)
}

// fetchWithRedirects issues the request and follows Location headers up
// to cfg.MaxRedirects hops. Each hop revalidates the URL, so a redirect
// cannot smuggle the client onto an unsupported scheme.
func fetchWithRedirects(ctx context.Context, cfg *config.Config, req *fetchRequest, client *torhttp.Client, target string) (*torhttp.Response, string, error) {
	current := target
	for hop := 0; ; hop++ {
		resp, err := doRequest(ctx, cfg, req, client, current)
		if err != nil {
			return nil, current, err
		}
		if !resp.IsRedirect() || hop >= cfg.MaxRedirects {
			return resp, current, nil
		}

		location := resp.Location()
		if location == "" {
			return resp, current, nil
		}
		next, err := resolveRedirect(current, location)
		if err != nil {
			return nil, current, fmt.Errorf("bad redirect from %s: %w", current, err)
		}
		current = next
	}
}

// doRequest builds the request with per-host overrides applied.
func doRequest(ctx context.Context, cfg *config.Config, req *fetchRequest, client *torhttp.Client, target string) (*torhttp.Response, error) {
	method := torhttp.MethodGet
	switch req.method {
	case "POST":
		method = torhttp.MethodPost
	case "HEAD":
		method = torhttp.MethodHead
	}

	request, err := torhttp.NewRequest(method, target, req.body)
	if err != nil {
		return nil, err
	}
	if method == torhttp.MethodPost {
		request.Header.Set("Content-Type", req.contentType)
	}

	hc := cfg.Hosts.GetHostConfig(request.Origin.Host)
	if hc.Cookie != "" {
		request.Header.Set("Cookie", hc.Cookie)
	}
	if hc.UserAgent != "" {
		request.Header.Set("User-Agent", hc.UserAgent)
	}
	for name, value := range hc.Headers {
		request.Header.Set(name, value)
	}

	return client.Do(ctx, request)
}

// resolveRedirect resolves location against base, which may be relative.
func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	locationURL, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(locationURL).String(), nil
}

// hostOf extracts the hostname for history records. Falls back to the
// raw string when the URL does not parse.
func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return target
	}
	return u.Hostname()
}

// headerMap flattens response headers for history storage.
func headerMap(resp *torhttp.Response) map[string][]string {
	m := make(map[string][]string, resp.Header.Len())
	for _, field := range resp.Header.Fields() {
		m[field.Name] = append(m[field.Name], field.Value)
	}
	return m
}

// writeBody delivers the response body to stdout, --output, or a file
// under --output-dir named after the target URL.
func writeBody(cfg *config.Config, req *fetchRequest, target string, resp *torhttp.Response) error {
	switch {
	case req.outputDir != "":
		if err := os.MkdirAll(req.outputDir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path := filepath.Join(req.outputDir, fileNameFor(target))
		if err := os.WriteFile(path, resp.Body, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("%s -> %s (%d, %d bytes)\n", target, path, resp.StatusCode, len(resp.Body))
		return nil
	case cfg.OutputFile != "":
		if dir := filepath.Dir(cfg.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(cfg.OutputFile, resp.Body, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", cfg.OutputFile, err)
		}
		return nil
	default:
		_, err := os.Stdout.Write(resp.Body)
		return err
	}
}

// fileNameFor derives a filesystem-safe name from a URL.
func fileNameFor(target string) string {
	name := strings.TrimPrefix(target, "http://")
	name = strings.TrimPrefix(name, "https://")
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.Trim(name, "_")
	if name == "" {
		name = "index"
	}
	if len(name) > 128 {
		name = name[:128]
	}
	return name
}
