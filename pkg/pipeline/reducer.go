package pipeline

import (
	"fmt"
	"slices"
	"time"
)

// InterfaceParser extracts remote method signatures from interface
// definition source text. Returned methods may leave ID empty; the reducer
// assigns fresh identifiers.
type InterfaceParser interface {
	Parse(source string) ([]RemoteMethod, error)
}

// InterfaceParserFunc adapts a function to InterfaceParser.
type InterfaceParserFunc func(source string) ([]RemoteMethod, error)

func (f InterfaceParserFunc) Parse(source string) ([]RemoteMethod, error) { return f(source) }

// Reducer applies actions to states. It holds no state of its own; the zero
// value is usable except for CreateAsset, which needs a Parser.
type Reducer struct {
	Parser InterfaceParser
	NewID  func() ID        // defaults to NewID
	Now    func() time.Time // defaults to time.Now
}

func (r Reducer) newID() ID {
	if r.NewID != nil {
		return r.NewID()
	}
	return NewID()
}

func (r Reducer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Apply reduces a against s and, on success, records it in the history.
// RestoreState installs the restored history and ClearState empties it.
// On failure s is returned unchanged together with the error.
func (r Reducer) Apply(s State, a Action) (State, error) {
	next, err := r.Reduce(s, a)
	if err != nil {
		return s, err
	}
	switch a.(type) {
	case RestoreState, ClearState:
	default:
		next.Actions = append(next.Actions, HistoryEntry{At: stamp(r.now()), Action: recorded(a)})
	}
	return next, nil
}

// Reduce computes the state that results from applying a to s. The input is
// never modified. On error the zero State is returned.
func (r Reducer) Reduce(s State, a Action) (State, error) {
	if a == nil {
		return State{}, fmt.Errorf("reduce: nil action")
	}
	if restore, ok := a.(RestoreState); ok {
		return normalizeState(restore.State.Clone()), nil
	}
	if _, ok := a.(ClearState); ok {
		return NewState(), nil
	}

	next := s.Clone()
	if err := r.reduce(&next, a); err != nil {
		return State{}, err
	}
	if err := ensureUnique(next); err != nil {
		return State{}, err
	}
	return next, nil
}

func (r Reducer) reduce(s *State, a Action) error {
	switch a := a.(type) {
	case CreateAsset:
		return r.createAsset(s, a)

	case SetAssets:
		assets, err := rekey(a.Assets, func(v *Asset) *ID { return &v.ID }, r.newID)
		if err != nil {
			return err
		}
		for id, asset := range assets {
			assets[id] = r.normalizeAsset(asset.clone())
		}
		s.Assets = assets

	case UpdateAsset:
		if _, ok := s.Assets[a.Asset.ID]; !ok {
			return newError(KindAssetNotFound, a.Asset.ID, "")
		}
		s.Assets[a.Asset.ID] = r.normalizeAsset(a.Asset.clone())

	case DeleteAsset:
		if _, ok := s.Assets[a.AssetID]; !ok {
			return newError(KindAssetNotFound, a.AssetID, "")
		}
		delete(s.Assets, a.AssetID)

	case AddStage:
		st := r.normalizeStage(a.Stage.clone())
		if _, dup := s.Stages[st.ID]; dup {
			return newError(KindDuplicateIdentifier, st.ID, "stage already exists")
		}
		s.Stages[st.ID] = st

	case SetStages:
		stages, err := rekey(a.Stages, func(v *Stage) *ID { return &v.ID }, r.newID)
		if err != nil {
			return err
		}
		for id, st := range stages {
			stages[id] = r.normalizeStage(st.clone())
		}
		s.Stages = stages
		pruneEdges(s)

	case InstantiateStage:
		return r.instantiate(s, a)

	case DeleteStage:
		if _, ok := s.Stages[a.StageID]; !ok {
			return newError(KindStageNotFound, a.StageID, "")
		}
		delete(s.Stages, a.StageID)
		for id, e := range s.Edges {
			if e.References(a.StageID) {
				delete(s.Edges, id)
			}
		}

	case UpdateStage:
		st, ok := s.Stages[a.StageID]
		if !ok {
			return newError(KindStageNotFound, a.StageID, "")
		}
		mergeStage(&st, a)
		s.Stages[st.ID] = r.normalizeStage(st)

	case AddVolume:
		st, ok := s.Stages[a.StageID]
		if !ok {
			return newError(KindStageNotFound, a.StageID, "")
		}
		st.Volumes = append(st.Volumes, a.Volume)
		s.Stages[st.ID] = r.normalizeStage(st)

	case RemoveVolume:
		st, ok := s.Stages[a.StageID]
		if !ok {
			return newError(KindStageNotFound, a.StageID, "")
		}
		i := slices.IndexFunc(st.Volumes, func(v Volume) bool { return v.ID == a.VolumeID })
		if i < 0 {
			return newError(KindVolumeNotFound, a.VolumeID, fmt.Sprintf("not on stage %s", a.StageID))
		}
		st.Volumes = slices.Delete(st.Volumes, i, i+1)
		s.Stages[st.ID] = r.normalizeStage(st)

	case AddEdge:
		e := a.Edge
		if e.ID == "" {
			e.ID = r.newID()
		}
		if _, dup := s.Edges[e.ID]; dup {
			return newError(KindDuplicateIdentifier, e.ID, "edge already exists")
		}
		if err := checkEdge(*s, e); err != nil {
			return err
		}
		s.Edges[e.ID] = e

	case RemoveEdge:
		if _, ok := s.Edges[a.EdgeID]; !ok {
			return newError(KindEdgeNotFound, a.EdgeID, "")
		}
		delete(s.Edges, a.EdgeID)

	case SetEdges:
		edges, err := rekey(a.Edges, func(v *Edge) *ID { return &v.ID }, r.newID)
		if err != nil {
			return err
		}
		s.Edges = edges
		for _, e := range s.SortedEdges() {
			if err := checkEdge(*s, e); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("reduce: unsupported action %T", a)
	}
	return nil
}

func (r Reducer) createAsset(s *State, a CreateAsset) error {
	if r.Parser == nil {
		return newError(KindParsing, "", "no interface parser configured")
	}
	methods, err := r.Parser.Parse(a.Source)
	if err != nil {
		return wrapError(KindParsing, fmt.Sprintf("asset %q", a.Name), err)
	}
	asset := Asset{ID: a.AssetID, Name: a.Name, Image: a.Image, Methods: slices.Clone(methods)}
	if asset.ID == "" {
		asset.ID = r.newID()
	}
	if _, dup := s.Assets[asset.ID]; dup {
		return newError(KindDuplicateIdentifier, asset.ID, "asset already exists")
	}
	s.Assets[asset.ID] = r.normalizeAsset(asset.clone())
	return nil
}

func (r Reducer) instantiate(s *State, a InstantiateStage) error {
	asset, ok := s.Assets[a.AssetID]
	if !ok {
		return newError(KindAssetNotFound, a.AssetID, "")
	}
	n := s.Counters[a.AssetID] + 1
	st, err := Instantiate(asset, a.RemoteMethodID, n, r.newID)
	if err != nil {
		return err
	}
	if a.StageID != "" {
		if _, dup := s.Stages[a.StageID]; dup {
			return newError(KindDuplicateIdentifier, a.StageID, "stage already exists")
		}
		st.ID = a.StageID
		st.Requester.StageID = st.ID
		st.Responder.StageID = st.ID
	}
	st.X, st.Y = a.X, a.Y
	s.Stages[st.ID] = st
	s.Counters[a.AssetID] = n
	return nil
}

func mergeStage(st *Stage, p UpdateStage) {
	if p.Name != nil {
		st.Name = *p.Name
	}
	if p.X != nil {
		st.X = *p.X
	}
	if p.Y != nil {
		st.Y = *p.Y
	}
	if p.RX != nil {
		st.RX = *p.RX
	}
	if p.RY != nil {
		st.RY = *p.RY
	}
	if p.Volumes != nil {
		st.Volumes = slices.Clone(p.Volumes)
	}
}

// pruneEdges drops edges whose endpoints no longer resolve or are no longer
// compatible.
func pruneEdges(s *State) {
	for id, e := range s.Edges {
		if checkEdge(*s, e) != nil {
			delete(s.Edges, id)
		}
	}
}

// rekey rebuilds a set keyed by each element's own identifier, allocating
// missing ones. Two elements claiming the same identifier is an error.
func rekey[V any](in map[ID]V, idOf func(*V) *ID, newID func() ID) (map[ID]V, error) {
	out := make(map[ID]V, len(in))
	for _, v := range in {
		id := idOf(&v)
		if *id == "" {
			*id = newID()
		}
		if _, dup := out[*id]; dup {
			return nil, newError(KindDuplicateIdentifier, *id, "")
		}
		out[*id] = v
	}
	return out, nil
}

// ─── Normalisation ────────────────────────────────────────────────────────────
//
// Empty lists are stored as nil so that a state survives a document round
// trip unchanged.

func (r Reducer) normalizeAsset(a Asset) Asset {
	if len(a.Methods) == 0 {
		a.Methods = nil
	}
	for i := range a.Methods {
		m := &a.Methods[i]
		if m.ID == "" {
			m.ID = r.newID()
		}
		m.RequestType = normalizeType(m.RequestType)
		m.ResponseType = normalizeType(m.ResponseType)
	}
	return a
}

func (r Reducer) normalizeStage(st Stage) Stage {
	if st.ID == "" {
		st.ID = r.newID()
	}
	for _, ap := range []*AccessPoint{&st.Requester, &st.Responder} {
		if ap.ID == "" {
			ap.ID = r.newID()
		}
		ap.StageID = st.ID
		ap.Type = normalizeType(ap.Type)
	}
	st.Requester.Role = RoleRequester
	st.Responder.Role = RoleResponder
	if len(st.Volumes) == 0 {
		st.Volumes = nil
	}
	for i := range st.Volumes {
		v := &st.Volumes[i]
		if v.ID == "" {
			v.ID = r.newID()
		}
		if v.Type == "" {
			v.Type = VolumeBind
		}
	}
	return st
}

func normalizeType(m MessageType) MessageType {
	if len(m.Fields) == 0 {
		m.Fields = nil
	}
	if len(m.Oneofs) == 0 {
		m.Oneofs = nil
	}
	return m
}

func normalizeState(s State) State {
	if s.Assets == nil {
		s.Assets = make(map[ID]Asset)
	}
	if s.Stages == nil {
		s.Stages = make(map[ID]Stage)
	}
	if s.Edges == nil {
		s.Edges = make(map[ID]Edge)
	}
	if s.Counters == nil {
		s.Counters = make(map[ID]int)
	}
	if len(s.Actions) == 0 {
		s.Actions = nil
	}
	return s
}

// ─── Identifier uniqueness ────────────────────────────────────────────────────

// ensureUnique fails if any asset, stage, access point, edge or volume
// identifier occurs more than once in s.
func ensureUnique(s State) error {
	seen := make(map[ID]string)
	claim := func(id ID, what string) error {
		if id == "" {
			return newError(KindDuplicateIdentifier, id, what+" has an empty identifier")
		}
		if prev, dup := seen[id]; dup {
			return newError(KindDuplicateIdentifier, id, fmt.Sprintf("used by %s and %s", prev, what))
		}
		seen[id] = what
		return nil
	}
	for _, a := range s.SortedAssets() {
		if err := claim(a.ID, "asset"); err != nil {
			return err
		}
	}
	for _, st := range s.SortedStages() {
		if err := claim(st.ID, "stage"); err != nil {
			return err
		}
		if err := claim(st.Requester.ID, "access point"); err != nil {
			return err
		}
		if err := claim(st.Responder.ID, "access point"); err != nil {
			return err
		}
		for _, v := range st.Volumes {
			if err := claim(v.ID, "volume"); err != nil {
				return err
			}
		}
	}
	for _, e := range s.SortedEdges() {
		if err := claim(e.ID, "edge"); err != nil {
			return err
		}
	}
	return nil
}
