package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelTenantID  = "tenant_id"
	ProfilingLabelResource  = "resource"
	ProfilingLabelTrigger   = "trigger"
	ProfilingLabelMethod    = "method"
	ProfilingLabelRoute     = "route"
)

// MaxLabelValueLength bounds label values to keep profile cardinality in check.
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels.
// tenant_id is allowed: fleets are sized in the hundreds, not millions.
var HighCardinalityLabels = map[string]bool{
	"request_id":  true,
	"delivery_id": true,
	"order_id":    true,
	"external_id": true,
	"job_id":      true,
	"trace_id":    true,
}

// WithProfilingLabels runs fn with pprof labels attached so CPU samples
// taken inside fn can be filtered by label in Pyroscope.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// SyncLabels builds the label set for one tenant sync
func SyncLabels(operation, tenantID, trigger string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if tenantID != "" {
		labels[ProfilingLabelTenantID] = tenantID
	}
	if trigger != "" {
		labels[ProfilingLabelTrigger] = trigger
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs with empty and
// high-cardinality entries removed and long values truncated.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		sanitized := sanitizeLabelKey(key)
		if sanitized == "" {
			continue
		}
		pairs = append(pairs, sanitized, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases and snake_cases a key, dropping other characters
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
