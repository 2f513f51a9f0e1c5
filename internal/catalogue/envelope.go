package catalogue

import (
	"encoding/json"
)

// The upstream API has shipped at least two envelope shapes for the same
// payload: {"data":{"animes":[...]}} and {"animes":[...]}. Rather than ad hoc
// key probing at every call site, each operation declares an ordered rule
// list; the first rule whose path resolves to a present list wins. A present
// empty list is a valid (empty) result.

type extractRule struct {
	path []string
}

func rules(paths ...[]string) []extractRule {
	out := make([]extractRule, 0, len(paths))
	for _, p := range paths {
		out = append(out, extractRule{path: p})
	}
	return out
}

var (
	searchRules  = rules([]string{"data", "animes"}, []string{"animes"})
	episodeRules = rules([]string{"data", "episodes"}, []string{"episodes"})
	sourceRules  = rules([]string{"data", "sources"}, []string{"sources"})
	trackRules   = rules([]string{"data", "tracks"}, []string{"tracks"})
)

// extractList applies rs in order against the JSON object in body and returns
// the first list found. ok is false when no rule matched (the caller decides
// whether that is a contract violation or an empty payload).
func extractList(body []byte, rs []extractRule) (items []json.RawMessage, ok bool, err error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, false, err
	}
	for _, r := range rs {
		node := root
		var raw json.RawMessage
		found := true
		for i, key := range r.path {
			v, present := node[key]
			if !present {
				found = false
				break
			}
			if i == len(r.path)-1 {
				raw = v
				break
			}
			var next map[string]json.RawMessage
			if json.Unmarshal(v, &next) != nil {
				found = false
				break
			}
			node = next
		}
		if !found {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			// Key present but not a list: try the next rule rather than
			// failing, some deployments null the field out.
			continue
		}
		return list, true, nil
	}
	return nil, false, nil
}
