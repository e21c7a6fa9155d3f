package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/torhttp/internal/model"
)

const (
	// maxHeaderBytes bounds the response status line plus header block.
	// A peer sending more is treated as malformed rather than allowed to
	// exhaust memory.
	maxHeaderBytes = 64 * 1024

	// readerBufferSize is the bufio buffer for response parsing. Header
	// lines longer than this are rejected, which maxHeaderBytes already
	// implies.
	readerBufferSize = 64 * 1024
)

// Session drives single HTTP/1.1 exchanges. The zero value is usable;
// fields customize header synthesis and body limits.
type Session struct {
	// UserAgent is sent when the request carries no User-Agent field.
	// Empty means no User-Agent is synthesized.
	UserAgent string

	// MaxBodySize caps the response body in bytes. Zero or less means
	// unlimited. A response exceeding the cap is a protocol error and
	// poisons the connection.
	MaxBodySize int64
}

// Exchange sends req over conn and reads the response. It returns the
// parsed response, a verdict on whether conn can be reused for another
// exchange, and an error classified per the client taxonomy.
//
// The exchange is bounded by ctx's deadline, applied to conn as an I/O
// deadline covering both the write and the read. On any error the
// verdict is false and the caller must discard conn, since the stream
// position is unknown.
func (s *Session) Exchange(ctx context.Context, conn net.Conn, req *model.Request) (*model.Response, bool, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, false, model.Classify(model.ErrProtocol, err)
		}
		defer conn.SetDeadline(time.Time{}) //nolint:errcheck // Clearing a deadline on a dead conn is harmless
	}

	if err := s.writeRequest(conn, req); err != nil {
		return nil, false, classifyIO(err)
	}

	resp, reusable, err := s.readResponse(conn, req)
	if err != nil {
		return nil, false, err
	}
	return resp, reusable, nil
}

// writeRequest serializes the request line, header block, and body.
// Host, User-Agent, and Content-Length are synthesized when the caller
// did not supply them; Content-Length is always computed from the actual
// body so the framing can never lie.
func (s *Session) writeRequest(conn net.Conn, req *model.Request) error {
	w := bufio.NewWriter(conn)

	fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", req.Method, req.Target)

	host := req.Header.Get("Host")
	if host == "" {
		host = req.Origin.HostHeader()
	}
	fmt.Fprintf(w, "Host: %s\r\n", host)

	for _, f := range req.Header.Fields() {
		// Host is already written; Content-Length is owned by the framer.
		if strings.EqualFold(f.Name, "Host") || strings.EqualFold(f.Name, "Content-Length") {
			continue
		}
		fmt.Fprintf(w, "%s: %s\r\n", f.Name, f.Value)
	}

	if s.UserAgent != "" && !req.Header.Has("User-Agent") {
		fmt.Fprintf(w, "User-Agent: %s\r\n", s.UserAgent)
	}

	// Bodyless methods carry no Content-Length at all.
	if !req.Method.Bodyless() {
		fmt.Fprintf(w, "Content-Length: %d\r\n", len(req.Body))
	}

	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	if len(req.Body) > 0 {
		if _, err := w.Write(req.Body); err != nil {
			return err
		}
	}
	return w.Flush()
}

// readResponse parses the status line, header block, and body.
func (s *Session) readResponse(conn net.Conn, req *model.Request) (*model.Response, bool, error) {
	r := bufio.NewReaderSize(conn, readerBufferSize)

	var headerBytes int

	statusLine, err := readLine(r, &headerBytes)
	if err != nil {
		return nil, false, classifyIO(err)
	}

	proto, status, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, false, model.Classify(model.ErrProtocol, err)
	}

	header, err := readHeaderBlock(r, &headerBytes)
	if err != nil {
		return nil, false, classifyIO(err)
	}

	resp := &model.Response{
		StatusCode: status,
		Proto:      proto,
		Header:     header,
	}

	body, framingReusable, err := s.readBody(r, req, resp)
	if err != nil {
		return nil, false, err
	}
	resp.Body = body

	return resp, framingReusable && wantKeepAlive(proto, &resp.Header), nil
}

// readBody reads the response body per HTTP/1.1 framing rules and
// reports whether the framing was self-delimiting (a prerequisite for
// connection reuse).
//
// HEAD responses and 1xx/204/304 statuses never have a body, regardless
// of any Content-Length or Transfer-Encoding the peer declares.
func (s *Session) readBody(r *bufio.Reader, req *model.Request, resp *model.Response) ([]byte, bool, error) {
	if req.Method == model.MethodHead || bodylessStatus(resp.StatusCode) {
		return nil, true, nil
	}

	if te := resp.Header.Get("Transfer-Encoding"); te != "" {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return nil, false, model.Classifyf(model.ErrProtocol, "unsupported transfer encoding %q", te)
		}
		body, err := s.readChunked(r)
		if err != nil {
			return nil, false, err
		}
		return body, true, nil
	}

	if resp.Header.Has("Content-Length") {
		n, err := contentLength(&resp.Header)
		if err != nil {
			return nil, false, model.Classify(model.ErrProtocol, err)
		}
		if s.MaxBodySize > 0 && n > s.MaxBodySize {
			return nil, false, model.Classifyf(model.ErrProtocol, "declared body of %d bytes exceeds limit of %d", n, s.MaxBodySize)
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, false, classifyIO(err)
		}
		return body, true, nil
	}

	// No framing headers: HTTP/1.0-style read-to-close. The connection
	// cannot be reused because only EOF delimits the body.
	limit := int64(-1)
	if s.MaxBodySize > 0 {
		limit = s.MaxBodySize
	}
	var body []byte
	var err error
	if limit < 0 {
		body, err = io.ReadAll(r)
	} else {
		body, err = io.ReadAll(io.LimitReader(r, limit+1))
		if err == nil && int64(len(body)) > limit {
			return nil, false, model.Classifyf(model.ErrProtocol, "response body exceeds limit of %d bytes", limit)
		}
	}
	if err != nil {
		return nil, false, classifyIO(err)
	}
	return body, false, nil
}

// readChunked decodes a chunked transfer coding body, including the
// trailer section, which is read and discarded.
func (s *Session) readChunked(r *bufio.Reader) ([]byte, error) {
	var body []byte
	var lineBytes int

	for {
		lineBytes = 0
		sizeLine, err := readLine(r, &lineBytes)
		if err != nil {
			return nil, classifyIO(err)
		}

		// Chunk extensions after ";" are ignored.
		if i := strings.IndexByte(sizeLine, ';'); i >= 0 {
			sizeLine = sizeLine[:i]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(sizeLine), 16, 63)
		if err != nil {
			return nil, model.Classifyf(model.ErrProtocol, "invalid chunk size line %q", sizeLine)
		}

		if size == 0 {
			// Trailer section: header lines until the final empty line.
			var trailerBytes int
			for {
				line, err := readLine(r, &trailerBytes)
				if err != nil {
					return nil, classifyIO(err)
				}
				if line == "" {
					return body, nil
				}
			}
		}

		if s.MaxBodySize > 0 && int64(len(body))+int64(size) > s.MaxBodySize {
			return nil, model.Classifyf(model.ErrProtocol, "chunked body exceeds limit of %d bytes", s.MaxBodySize)
		}

		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, classifyIO(err)
		}
		body = append(body, chunk...)

		// Each chunk is terminated by CRLF.
		lineBytes = 0
		terminator, err := readLine(r, &lineBytes)
		if err != nil {
			return nil, classifyIO(err)
		}
		if terminator != "" {
			return nil, model.Classifyf(model.ErrProtocol, "missing CRLF after chunk")
		}
	}
}

// readLine reads one CRLF-terminated line, tolerating bare LF. The
// running byte count guards against unbounded header blocks.
func readLine(r *bufio.Reader, total *int) (string, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return "", model.Classifyf(model.ErrProtocol, "header line exceeds %d bytes", readerBufferSize)
		}
		return "", err
	}

	*total += len(line)
	if *total > maxHeaderBytes {
		return "", model.Classifyf(model.ErrProtocol, "header block exceeds %d bytes", maxHeaderBytes)
	}

	s := strings.TrimSuffix(string(line), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// parseStatusLine parses "HTTP/1.1 200 OK" into protocol and status.
// The reason phrase may be empty; anything else malformed is rejected.
func parseStatusLine(line string) (proto string, status int, err error) {
	rest := line
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		proto, rest = rest[:i], rest[i+1:]
	} else {
		return "", 0, fmt.Errorf("malformed status line %q", line)
	}

	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return "", 0, fmt.Errorf("unsupported protocol %q", proto)
	}

	statusField := rest
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		statusField = rest[:i]
	}
	if len(statusField) != 3 {
		return "", 0, fmt.Errorf("malformed status code %q", statusField)
	}
	status, convErr := strconv.Atoi(statusField)
	if convErr != nil || status < 100 || status > 599 {
		return "", 0, fmt.Errorf("malformed status code %q", statusField)
	}

	return proto, status, nil
}

// readHeaderBlock reads header lines until the terminating empty line,
// preserving field order and duplicates.
func readHeaderBlock(r *bufio.Reader, total *int) (model.Header, error) {
	var header model.Header
	for {
		line, err := readLine(r, total)
		if err != nil {
			return model.Header{}, err
		}
		if line == "" {
			return header, nil
		}

		// Obsolete line folding is rejected, as net/http does.
		if line[0] == ' ' || line[0] == '\t' {
			return model.Header{}, model.Classifyf(model.ErrProtocol, "folded header line %q", line)
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return model.Header{}, model.Classifyf(model.ErrProtocol, "malformed header line %q", line)
		}
		name := line[:colon]
		if strings.ContainsAny(name, " \t") {
			return model.Header{}, model.Classifyf(model.ErrProtocol, "whitespace in header name %q", name)
		}
		value := strings.Trim(line[colon+1:], " \t")
		header.Add(name, value)
	}
}

// contentLength extracts and validates the Content-Length value.
// Duplicate fields are tolerated only when they agree, matching the
// robustness rule in RFC 9112.
func contentLength(h *model.Header) (int64, error) {
	values := h.Values("Content-Length")
	first := strings.TrimSpace(values[0])
	for _, v := range values[1:] {
		if strings.TrimSpace(v) != first {
			return 0, fmt.Errorf("conflicting Content-Length values %v", values)
		}
	}
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid Content-Length %q", first)
	}
	return n, nil
}

// bodylessStatus reports whether the status code forbids a body.
func bodylessStatus(status int) bool {
	return (status >= 100 && status < 200) || status == 204 || status == 304
}

// wantKeepAlive applies the Connection header and protocol default:
// HTTP/1.1 persists unless "close" is sent, HTTP/1.0 closes unless
// "keep-alive" is sent.
func wantKeepAlive(proto string, h *model.Header) bool {
	conn := strings.ToLower(h.Get("Connection"))
	if strings.Contains(conn, "close") {
		return false
	}
	if proto == "HTTP/1.0" {
		return strings.Contains(conn, "keep-alive")
	}
	return true
}

// classifyIO maps transport errors to the client taxonomy: deadline
// expiry becomes ErrTimeout, anything else mid-exchange (unexpected EOF,
// reset, short read) becomes ErrProtocol.
func classifyIO(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrProtocol) || errors.Is(err, model.ErrTimeout) {
		return err
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return model.Classify(model.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.Classify(model.ErrTimeout, err)
	}
	return model.Classify(model.ErrProtocol, err)
}
