package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
)

var (
	// one Link entry: the <url> and the parameters up to the next entry
	linkEntryPattern = regexp.MustCompile(`<([^>]*)>([^<]*)`)
	relNextPattern   = regexp.MustCompile(`;\s*rel\s*=\s*"?next"?\s*(?:[;,]|$)`)
)

// nextLink extracts the rel="next" URL from a Link header. Entries are
// matched as <url>; params segments, so commas inside a url are kept.
func nextLink(header http.Header) string {
	for _, value := range header.Values("Link") {
		for _, m := range linkEntryPattern.FindAllStringSubmatch(value, -1) {
			if relNextPattern.MatchString(strings.TrimSpace(m[2])) {
				return strings.TrimSpace(m[1])
			}
		}
	}
	return ""
}

// decodeEnvelope extracts the array named after the resource
func decodeEnvelope(resp *Response, resource integration.Resource) ([]json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope[resource.String()]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q field", integration.ErrPlatformInvalidResponse, resource)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %q is not an array", integration.ErrPlatformInvalidResponse, resource)
	}
	return records, nil
}

// recordID reads the id field of a raw record; unreadable ids yield ""
func recordID(raw json.RawMessage) string {
	var head struct {
		ID flexString `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return string(head.ID)
}

// pageCollector accumulates records and drops ids already seen
type pageCollector struct {
	seen    map[string]struct{}
	records []json.RawMessage
}

func newPageCollector() *pageCollector {
	return &pageCollector{seen: make(map[string]struct{})}
}

func (p *pageCollector) add(records []json.RawMessage) {
	for _, r := range records {
		if id := recordID(r); id != "" {
			if _, dup := p.seen[id]; dup {
				continue
			}
			p.seen[id] = struct{}{}
		}
		p.records = append(p.records, r)
	}
}

// FetchAll walks every page of resource. The returned error is non-nil only
// when nothing could be fetched; later failures are reported on the result.
func (c *ShopifyClient) FetchAll(ctx context.Context, conn *integration.Connection, resource integration.Resource) (*integration.FetchResult, error) {
	if !resource.IsValid() {
		return nil, fmt.Errorf("shopify: unsupported resource %q", resource)
	}

	result := &integration.FetchResult{Resource: resource, FetchedAt: time.Now()}
	collector := newPageCollector()
	log := c.logger.With(
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("resource", resource.String()),
	)

	firstEndpoint := fmt.Sprintf("%s.json?limit=%d", resource, c.config.PageSize)
	resp, records, err := c.fetchPage(ctx, conn, resource, firstEndpoint)
	if err != nil {
		return c.fallback(ctx, conn, resource, err, log)
	}
	collector.add(records)
	result.Pages = 1

	cursor := nextLink(resp.Header)
	cursorMode := resp.Header.Get("Link") != ""
	lastPageFull := len(records) >= c.config.PageSize

	for {
		var endpoint string
		switch {
		case cursorMode && cursor != "":
			endpoint = cursor
		case !cursorMode && lastPageFull:
			endpoint = fmt.Sprintf("%s.json?limit=%d&page=%d", resource, c.config.PageSize, result.Pages+1)
		}
		if endpoint == "" {
			break
		}
		if result.Pages >= c.config.MaxPages {
			result.PageLimitReached = true
			log.Warn("Page ceiling reached, stopping pagination", zap.Int("pages", result.Pages))
			break
		}

		if err := c.sleep(ctx, c.config.PageDelay); err != nil {
			result.Partial = true
			result.Err = err
			break
		}

		resp, records, err = c.fetchPage(ctx, conn, resource, endpoint)
		if err != nil {
			log.Warn("Page fetch failed, keeping partial results",
				zap.Int("page", result.Pages+1),
				zap.Int("records", len(collector.records)),
				zap.Error(err),
			)
			result.Partial = true
			result.Err = err
			break
		}
		collector.add(records)
		result.Pages++

		cursor = nextLink(resp.Header)
		lastPageFull = len(records) >= c.config.PageSize
	}

	result.Records = collector.records
	log.Debug("Pagination finished",
		zap.Int("pages", result.Pages),
		zap.Int("records", len(result.Records)),
		zap.Bool("partial", result.Partial),
	)
	return result, nil
}

// fetchPage requests one page and decodes its envelope. A 403 marks the
// resource as denied on the connection.
func (c *ShopifyClient) fetchPage(ctx context.Context, conn *integration.Connection, resource integration.Resource, endpoint string) (*Response, []json.RawMessage, error) {
	resp, err := c.Request(ctx, conn, http.MethodGet, endpoint, nil)
	if err != nil {
		if errors.Is(err, integration.ErrPlatformForbidden) {
			conn.MarkDenied(resource)
		}
		return nil, nil, err
	}
	records, err := decodeEnvelope(resp, resource)
	if err != nil {
		return nil, nil, err
	}
	return resp, records, nil
}

// fallback retries a failed first page once without pagination parameters
func (c *ShopifyClient) fallback(ctx context.Context, conn *integration.Connection, resource integration.Resource, firstErr error, log *zap.Logger) (*integration.FetchResult, error) {
	if errors.Is(firstErr, integration.ErrPlatformForbidden) ||
		errors.Is(firstErr, context.Canceled) ||
		errors.Is(firstErr, context.DeadlineExceeded) {
		return nil, firstErr
	}

	log.Warn("Paginated fetch failed, trying unpaginated request", zap.Error(firstErr))

	fetchedAt := time.Now()
	_, records, err := c.fetchPage(ctx, conn, resource, resource.String()+".json")
	if err != nil {
		log.Error("Unpaginated fallback failed", zap.Error(err))
		return nil, firstErr
	}

	collector := newPageCollector()
	collector.add(records)
	return &integration.FetchResult{
		Resource:  resource,
		Records:   collector.records,
		Pages:     1,
		Fallback:  true,
		FetchedAt: fetchedAt,
	}, nil
}
