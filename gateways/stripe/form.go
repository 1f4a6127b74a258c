package stripe

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// encodeForm flattens a nested body into Stripe's bracketed form encoding:
// maps become parent[child], slices become parent[0], parent[1] and so on.
// Map keys are emitted in sorted order so encodings are stable.
func encodeForm(body map[string]any) url.Values {
	values := url.Values{}
	addFormValue(values, "", body)
	return values
}

func addFormValue(dst url.Values, key string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if key != "" {
				child = key + "[" + k + "]"
			}
			addFormValue(dst, child, v[k])
		}
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if key != "" {
				child = key + "[" + k + "]"
			}
			dst.Add(child, v[k])
		}
	case []any:
		for i, item := range v {
			addFormValue(dst, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []string:
		for i, item := range v {
			dst.Add(fmt.Sprintf("%s[%d]", key, i), item)
		}
	case string:
		dst.Add(key, v)
	case bool:
		dst.Add(key, strconv.FormatBool(v))
	case int:
		dst.Add(key, strconv.Itoa(v))
	case int64:
		dst.Add(key, strconv.FormatInt(v, 10))
	case float64:
		dst.Add(key, strconv.FormatFloat(v, 'f', -1, 64))
	default:
		dst.Add(key, fmt.Sprint(v))
	}
}
