package refresh

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Rewrite failures. Both are terminal for the entry, never for the cycle.
var (
	ErrMalformedURL      = errors.New("url missing scheme or host")
	ErrTimestampNotFound = errors.New("timestamp parameter not present in url")
)

// RewriteTimestamp returns a copy of rawURL with the tsParam query
// parameter set to now in milliseconds since epoch. Parameters are
// re-serialized in the order given by paramOrder so the output is
// deterministic regardless of the input's query order; parameters not
// named in paramOrder follow, in their original relative order.
func RewriteTimestamp(rawURL string, paramOrder []string, tsParam string, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q: %w", rawURL, ErrMalformedURL)
	}

	keys, values, err := parseQueryOrdered(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("parse query of %q: %w", rawURL, err)
	}
	if _, ok := values[tsParam]; !ok {
		return "", fmt.Errorf("url %q param %q: %w", rawURL, tsParam, ErrTimestampNotFound)
	}
	values[tsParam] = strconv.FormatInt(now.UnixMilli(), 10)

	var sb strings.Builder
	emitted := make(map[string]bool, len(keys))
	emit := func(key string) {
		v, ok := values[key]
		if !ok || emitted[key] {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(v))
		emitted[key] = true
	}
	for _, key := range paramOrder {
		emit(key)
	}
	for _, key := range keys {
		emit(key)
	}

	u.RawQuery = sb.String()
	return u.String(), nil
}

// parseQueryOrdered decodes a raw query string keeping first-seen key
// order. A repeated key keeps its last value, matching how the upstream
// endpoints interpret their parameters.
func parseQueryOrdered(rawQuery string) ([]string, map[string]string, error) {
	keys := make([]string, 0, 4)
	values := make(map[string]string, 4)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, val, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, nil, fmt.Errorf("unescape key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(val)
		if err != nil {
			return nil, nil, fmt.Errorf("unescape value %q: %w", val, err)
		}
		if _, seen := values[k]; !seen {
			keys = append(keys, k)
		}
		values[k] = v
	}
	return keys, values, nil
}
