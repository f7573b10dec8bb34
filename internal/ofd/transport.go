package ofd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abeknur/ofd-check/internal/receipt"
)

// Without a browser User-Agent some operators answer with a bot wall
// instead of the check payload.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/97.0.4692.71 Safari/537.36"

// maxResponseBytes caps how much of an upstream body is read. Real
// check payloads are a few kilobytes.
const maxResponseBytes = int64(10 << 20)

// DefaultTimeout bounds one fetch call including the single manual
// redirect operator A performs.
const DefaultTimeout = 15 * time.Second

// get issues one GET with the browser User-Agent and returns the body
// capped at maxResponseBytes. The response body is already closed.
func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}
	return body, resp, nil
}

// almaty is the timezone check timestamps are printed in when the wire
// format carries no offset of its own.
var almaty = loadAlmaty()

func loadAlmaty() *time.Location {
	loc, err := time.LoadLocation("Asia/Almaty")
	if err != nil {
		return time.FixedZone("ALMT", 5*60*60)
	}
	return loc
}

var sumTolerance = decimal.RequireFromString("0.01")

// warnSumMismatch logs when count*price drifts from the printed line
// sum by more than a tiyn. Parsed values are kept verbatim; upstream
// rounding differences are accepted, not corrected.
func warnSumMismatch(operator string, item receipt.Item) {
	expected := item.Count.Mul(item.Price)
	if expected.Sub(item.Sum).Abs().GreaterThan(sumTolerance) {
		slog.Warn("item sum differs from count*price",
			"operator", operator,
			"item", item.Name,
			"count", item.Count,
			"price", item.Price,
			"sum", item.Sum,
		)
	}
}
