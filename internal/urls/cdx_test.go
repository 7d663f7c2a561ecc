package urls

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	jsonRecord = `com,example)/ 20240101000000 {"url": "https://example.com/", "mime": "text/html", "status": "200"}`
	bareRecord = `org,example)/a 20240101000000 {"url": "https://example.org/a", "status": "200"}`
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    string
		wantErr bool
	}{
		{name: "json block", line: jsonRecord, want: "https://example.com/"},
		{name: "positional", line: `com,x)/ 2024 {"url": "https://x.com/p", broken`, want: "https://x.com/p"},
		{name: "trailing newline", line: bareRecord + "\n", want: "https://example.org/a"},
		{name: "empty", line: "   ", wantErr: true},
		{name: "too few fields", line: "com,x)/ 2024", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedLine)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExtractURLsSkipsMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cdx")
	body := strings.Join([]string{jsonRecord, "garbage", bareRecord, ""}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	got, err := ExtractURLs(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/", "https://example.org/a"}, got)
}

func TestExtractURLsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ExtractURLs(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
}

func record(u string) string {
	return `key 2024 {"url": "` + u + `"}`
}

func TestDistinctByHostKeepsOnePerHost(t *testing.T) {
	t.Parallel()

	lines := []string{
		record("https://a.com/1"),
		record("https://b.com/1"),
		record("https://a.com/2"),
		record("https://a.com/3"),
		record("https://c.com/"),
		record("https://b.com/2"),
	}
	var out bytes.Buffer
	n, err := DistinctByHost(strings.NewReader(strings.Join(lines, "\n")), &out, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	written := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, written, 3)
	hosts := make([]string, 0, len(written))
	for _, line := range written {
		hosts = append(hosts, hostOf(line))
	}
	require.Equal(t, []string{"a.com", "b.com", "c.com"}, hosts)
}

func TestDistinctByHostSamplesEveryRecord(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{record("https://a.com/1"), record("https://a.com/2"), record("https://a.com/3")}, "\n")
	rng := rand.New(rand.NewSource(7))
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		var out bytes.Buffer
		_, err := DistinctByHost(strings.NewReader(in), &out, rng)
		require.NoError(t, err)
		seen[strings.TrimSpace(out.String())] = true
	}
	require.Len(t, seen, 3)
}

func TestShuffleIsSeeded(t *testing.T) {
	t.Parallel()

	base := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	first := append([]string(nil), base...)
	second := append([]string(nil), base...)
	Shuffle(first, 42)
	Shuffle(second, 42)

	require.Equal(t, first, second)
	require.ElementsMatch(t, base, first)
}
