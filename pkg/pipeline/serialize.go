package pipeline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/xeipuuv/gojsonschema"
)

// DocumentVersion is the version tag written into every state document.
const DocumentVersion = 1

//go:embed schema/state.schema.json
var documentSchema []byte

// DocumentSchema returns the JSON Schema every state document must satisfy.
func DocumentSchema() []byte { return slices.Clone(documentSchema) }

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
})

// document is the persisted shape of a State. Sets are JSON objects keyed by
// identifier; the history is a JSON array.
type document struct {
	Version  int            `json:"version"`
	Assets   map[ID]Asset   `json:"assets"`
	Stages   map[ID]Stage   `json:"stages"`
	Edges    map[ID]Edge    `json:"edges"`
	Counters map[ID]int     `json:"counters"`
	Actions  []HistoryEntry `json:"actions"`
}

func (s State) MarshalJSON() ([]byte, error) {
	s = normalizeState(s)
	doc := document{
		Version:  DocumentVersion,
		Assets:   s.Assets,
		Stages:   s.Stages,
		Edges:    s.Edges,
		Counters: s.Counters,
		Actions:  s.Actions,
	}
	if doc.Actions == nil {
		doc.Actions = []HistoryEntry{}
	}
	return json.Marshal(doc)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Version != DocumentVersion {
		return fmt.Errorf("unsupported document version %d", doc.Version)
	}
	*s = normalizeState(State{
		Assets:   doc.Assets,
		Stages:   doc.Stages,
		Edges:    doc.Edges,
		Counters: doc.Counters,
		Actions:  doc.Actions,
	})
	return nil
}

// Serialize renders s as an indented state document.
func Serialize(s State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	return append(data, '\n'), nil
}

// Deserialize validates data against the document schema and decodes it.
// Any failure is a ParsingError; Deserialize(Serialize(s)) equals s.
func Deserialize(data []byte) (State, error) {
	if err := validateDocument(data); err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, wrapError(KindParsing, "state document", err)
	}
	return s, nil
}

func validateDocument(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile document schema: %w", err)
	}
	res, err := sch.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return wrapError(KindParsing, "state document", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	slices.Sort(msgs)
	return newError(KindParsing, "", "state document does not match schema:\n  "+strings.Join(msgs, "\n  "))
}

// Diff renders a line diff between the documents of a and b. Unchanged
// lines are prefixed with two spaces, removals with "- " and additions
// with "+ ". Equal states yield "".
func Diff(a, b State) (string, error) {
	da, err := Serialize(a)
	if err != nil {
		return "", err
	}
	db, err := Serialize(b)
	if err != nil {
		return "", err
	}
	return DiffDocuments(da, db), nil
}

// DiffDocuments is Diff over two already serialised documents.
func DiffDocuments(a, b []byte) string {
	if string(a) == string(b) {
		return ""
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
