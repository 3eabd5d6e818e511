package pipeline

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// HistoryEntry records one successfully applied action and when it was
// applied. The log is for inspection only and is never replayed.
type HistoryEntry struct {
	At     time.Time
	Action Action
}

type historyJSON struct {
	At     time.Time       `json:"at"`
	Action json.RawMessage `json:"action"`
}

func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	raw, err := MarshalAction(h.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(historyJSON{At: h.At, Action: raw})
}

func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	var hj historyJSON
	if err := json.Unmarshal(data, &hj); err != nil {
		return err
	}
	a, err := UnmarshalAction(hj.Action)
	if err != nil {
		return err
	}
	h.At = hj.At.UTC()
	h.Action = a
	return nil
}

// String renders the entry as one line, e.g.
// "2024-05-01T10:00:00Z DeleteStage".
func (h HistoryEntry) String() string {
	return fmt.Sprintf("%s %s", h.At.Format(time.RFC3339), h.Action.Kind())
}

// Recent returns the history newest first, at most limit entries (all of
// them when limit <= 0).
func (s State) Recent(limit int) []HistoryEntry {
	out := slices.Clone(s.Actions)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func stamp(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// recorded returns the copy of a that is kept in the history. Payloads are
// cloned and empty lists cleared, as the reducer stores them, so an entry
// reads back from a document unchanged.
func recorded(a Action) Action {
	switch a := a.(type) {
	case SetAssets:
		a.Assets = cloneSet(a.Assets, canonicalAsset)
		return a
	case UpdateAsset:
		a.Asset = canonicalAsset(a.Asset)
		return a
	case AddStage:
		a.Stage = canonicalStage(a.Stage)
		return a
	case SetStages:
		a.Stages = cloneSet(a.Stages, canonicalStage)
		return a
	case UpdateStage:
		a.Volumes = slices.Clone(a.Volumes)
		return a
	case SetEdges:
		a.Edges = maps.Clone(a.Edges)
		return a
	}
	return a
}

func cloneSet[V any](in map[ID]V, fn func(V) V) map[ID]V {
	if in == nil {
		return nil
	}
	out := make(map[ID]V, len(in))
	for id, v := range in {
		out[id] = fn(v)
	}
	return out
}

func canonicalAsset(a Asset) Asset {
	a = a.clone()
	if len(a.Methods) == 0 {
		a.Methods = nil
	}
	for i := range a.Methods {
		a.Methods[i].RequestType = normalizeType(a.Methods[i].RequestType)
		a.Methods[i].ResponseType = normalizeType(a.Methods[i].ResponseType)
	}
	return a
}

func canonicalStage(st Stage) Stage {
	st = st.clone()
	if len(st.Volumes) == 0 {
		st.Volumes = nil
	}
	st.Requester.Type = normalizeType(st.Requester.Type)
	st.Responder.Type = normalizeType(st.Responder.Type)
	return st
}
