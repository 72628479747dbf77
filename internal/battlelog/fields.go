package battlelog

import (
	"github.com/tidwall/gjson"
)

// Fields returns the raw JSON bytes found at each path in doc, in order.
// An entry is nil when the path is absent or holds null. String values keep
// their quotes; use Text to decode them.
func Fields(doc []byte, paths ...string) [][]byte {
	results := gjson.GetManyBytes(doc, paths...)
	out := make([][]byte, len(results))
	for i, r := range results {
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		out[i] = []byte(r.Raw)
	}
	return out
}

// Text decodes a raw value returned by Fields into a string.
// A nil value decodes to "".
func Text(raw []byte) string {
	if raw == nil {
		return ""
	}
	return gjson.ParseBytes(raw).String()
}
