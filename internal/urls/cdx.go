// Package urls reads crawl targets out of CDX index files.
package urls

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
)

// maxLineSize bounds a single CDX record.
const maxLineSize = 1 << 20

// ErrMalformedLine is returned by ParseLine when no URL can be recovered.
var ErrMalformedLine = errors.New("malformed cdx line")

type cdxBlock struct {
	URL string `json:"url"`
}

// ParseLine returns the URL of one CDX record. The JSON block's "url" field
// wins; otherwise the fourth space-separated field is used with its
// surrounding quote and trailing `",` removed.
func ParseLine(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformedLine)
	}
	if i := strings.IndexByte(line, '{'); i >= 0 {
		var block cdxBlock
		if err := json.Unmarshal([]byte(line[i:]), &block); err == nil && block.URL != "" {
			return block.URL, nil
		}
	}
	fields := strings.Split(line, " ")
	if len(fields) < 4 || len(fields[3]) < 3 {
		return "", fmt.Errorf("%w: %d fields", ErrMalformedLine, len(fields))
	}
	return fields[3][1 : len(fields[3])-2], nil
}

// ExtractURLs returns the URL of every well-formed record in the CDX file at
// path, in file order. Malformed records are skipped with a warning.
func ExtractURLs(path string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("open cdx %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	err = eachLine(f, func(n int, line string) {
		u, perr := ParseLine(line)
		if perr != nil {
			logger.Warn("skip cdx record", zap.Int("line", n), zap.Error(perr))
			return
		}
		out = append(out, u)
	})
	if err != nil {
		return nil, fmt.Errorf("read cdx %s: %w", path, err)
	}
	return out, nil
}

// DistinctByHost copies one record per host from in to out. Each host's record
// is picked uniformly at random with reservoir sampling and hosts are written
// in order of first appearance. Records whose URL cannot be parsed share the
// empty host. It returns the number of records written.
func DistinctByHost(in io.Reader, out io.Writer, rng *rand.Rand) (int, error) {
	type pick struct {
		line string
		seen int
	}
	picks := map[string]*pick{}
	var order []string

	err := eachLine(in, func(_ int, line string) {
		if strings.TrimSpace(line) == "" {
			return
		}
		host := hostOf(line)
		p, ok := picks[host]
		if !ok {
			picks[host] = &pick{line: line, seen: 1}
			order = append(order, host)
			return
		}
		p.seen++
		if rng.Intn(p.seen) == 0 {
			p.line = line
		}
	})
	if err != nil {
		return 0, fmt.Errorf("read records: %w", err)
	}

	w := bufio.NewWriter(out)
	for _, host := range order {
		if _, err := w.WriteString(picks[host].line + "\n"); err != nil {
			return 0, fmt.Errorf("write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flush records: %w", err)
	}
	return len(order), nil
}

// Shuffle permutes urls in place with a generator seeded by seed.
func Shuffle(urls []string, seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible ordering
	rng.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
}

func hostOf(line string) string {
	raw, err := ParseLine(line)
	if err != nil {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func eachLine(r io.Reader, fn func(n int, line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for sc.Scan() {
		n++
		fn(n, sc.Text())
	}
	return sc.Err()
}
