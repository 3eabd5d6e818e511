package pipeline

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// ID is an opaque unique identifier. Identifiers are generated on creation
// and never reused.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Role says which side of a remote call an AccessPoint models.
type Role string

const (
	// RoleRequester models an outbound call.
	RoleRequester Role = "Requester"
	// RoleResponder models an inbound handler.
	RoleResponder Role = "Responder"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleRequester || r == RoleResponder
}

// VolumeType identifies how a volume is mounted into a stage.
type VolumeType string

const VolumeBind VolumeType = "bind"

// Field is one field of a message schema.
type Field struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	ID      int    `json:"id"`
	Rule    string `json:"rule,omitempty"`    // "repeated", "optional", "required" or empty
	KeyType string `json:"keyType,omitempty"` // set for map fields
}

// MessageType is a structural description of a request or response payload.
type MessageType struct {
	Name     string              `json:"name"`
	Streamed bool                `json:"streamed"`
	Fields   []Field             `json:"fields,omitempty"`
	Oneofs   map[string][]string `json:"oneofs,omitempty"`
}

// Equal reports deep structural equality. Field order is not significant;
// fields are compared by field number.
func (m MessageType) Equal(o MessageType) bool {
	if m.Name != o.Name || m.Streamed != o.Streamed {
		return false
	}
	if len(m.Fields) != len(o.Fields) || len(m.Oneofs) != len(o.Oneofs) {
		return false
	}
	if !slices.Equal(sortedFields(m.Fields), sortedFields(o.Fields)) {
		return false
	}
	for name, members := range m.Oneofs {
		other, ok := o.Oneofs[name]
		if !ok {
			return false
		}
		a, b := slices.Clone(members), slices.Clone(other)
		slices.Sort(a)
		slices.Sort(b)
		if !slices.Equal(a, b) {
			return false
		}
	}
	return true
}

func sortedFields(fs []Field) []Field {
	out := slices.Clone(fs)
	slices.SortFunc(out, func(a, b Field) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
	})
	return out
}

func (m MessageType) clone() MessageType {
	out := m
	out.Fields = slices.Clone(m.Fields)
	if m.Oneofs != nil {
		out.Oneofs = make(map[string][]string, len(m.Oneofs))
		for k, v := range m.Oneofs {
			out.Oneofs[k] = slices.Clone(v)
		}
	}
	return out
}

// RemoteMethod is a named RPC signature. It is immutable once parsed.
type RemoteMethod struct {
	ID           ID          `json:"remoteMethodId"`
	Name         string      `json:"name"`
	RequestType  MessageType `json:"requestType"`
	ResponseType MessageType `json:"responseType"`
}

// Signature renders the method as "Name(Request): Response".
func (m RemoteMethod) Signature() string {
	return fmt.Sprintf("%s(%s): %s", m.Name, m.RequestType.Name, m.ResponseType.Name)
}

// Asset is a reusable service template. It owns its RemoteMethods.
type Asset struct {
	ID      ID             `json:"assetId"`
	Name    string         `json:"name"`
	Image   string         `json:"image"` // e.g. sipgisr/image-source:latest
	Methods []RemoteMethod `json:"methods,omitempty"`
}

// Method returns the asset's method with the given id.
func (a Asset) Method(id ID) (RemoteMethod, bool) {
	for _, m := range a.Methods {
		if m.ID == id {
			return m, true
		}
	}
	return RemoteMethod{}, false
}

// MethodByName returns the first method called name.
func (a Asset) MethodByName(name string) (RemoteMethod, bool) {
	for _, m := range a.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return RemoteMethod{}, false
}

func (a Asset) clone() Asset {
	out := a
	if a.Methods != nil {
		out.Methods = make([]RemoteMethod, len(a.Methods))
		for i, m := range a.Methods {
			m.RequestType = m.RequestType.clone()
			m.ResponseType = m.ResponseType.clone()
			out.Methods[i] = m
		}
	}
	return out
}

// AccessPoint is a typed connection point on a Stage. The Type is the
// request type for a Requester and the response type for a Responder.
type AccessPoint struct {
	ID             ID          `json:"accessPointId"`
	StageID        ID          `json:"stageId"`
	RemoteMethodID ID          `json:"remoteMethodId"`
	Role           Role        `json:"role"`
	Type           MessageType `json:"type"`
	Name           string      `json:"name"`
}

// Endpoint addresses one AccessPoint on one Stage.
type Endpoint struct {
	StageID       ID `json:"stageId"`
	AccessPointID ID `json:"accessPointId"`
}

// Edge is a validated connection between a Requester and a Responder.
type Edge struct {
	ID        ID       `json:"edgeId"`
	Requester Endpoint `json:"requesterId"`
	Responder Endpoint `json:"responderId"`
}

// References reports whether either end of the edge sits on stageID.
func (e Edge) References(stageID ID) bool {
	return e.Requester.StageID == stageID || e.Responder.StageID == stageID
}

// Volume is a path mounted into a stage's container.
type Volume struct {
	ID     ID         `json:"volumeId"`
	Type   VolumeType `json:"type"`
	Source string     `json:"source"`
	Target string     `json:"target"`
}

// Stage is a live instance of one Asset method. It exclusively owns its
// access points and volumes.
type Stage struct {
	ID        ID          `json:"stageId"`
	AssetID   ID          `json:"assetId"`
	Name      string      `json:"name"`
	Requester AccessPoint `json:"requester"`
	Responder AccessPoint `json:"responder"`
	Volumes   []Volume    `json:"volumes,omitempty"`

	// Layout only; nothing in the model depends on these.
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
}

// AccessPoint returns the stage's access point with the given id.
func (s Stage) AccessPoint(id ID) (AccessPoint, bool) {
	switch id {
	case s.Requester.ID:
		return s.Requester, true
	case s.Responder.ID:
		return s.Responder, true
	}
	return AccessPoint{}, false
}

func (s Stage) clone() Stage {
	out := s
	out.Requester.Type = s.Requester.Type.clone()
	out.Responder.Type = s.Responder.Type.clone()
	out.Volumes = slices.Clone(s.Volumes)
	return out
}

// State is the aggregate root of the editor.
type State struct {
	Assets map[ID]Asset
	Stages map[ID]Stage
	Edges  map[ID]Edge
	// Counters holds the running instance number per asset id. It survives
	// stage and asset deletion.
	Counters map[ID]int
	Actions  []HistoryEntry
}

// NewState returns the empty initial state.
func NewState() State {
	return State{
		Assets:   make(map[ID]Asset),
		Stages:   make(map[ID]Stage),
		Edges:    make(map[ID]Edge),
		Counters: make(map[ID]int),
	}
}

// Clone returns a deep copy of s that shares no mutable memory with it.
func (s State) Clone() State {
	out := State{
		Assets:   make(map[ID]Asset, len(s.Assets)),
		Stages:   make(map[ID]Stage, len(s.Stages)),
		Edges:    maps.Clone(s.Edges),
		Counters: maps.Clone(s.Counters),
		Actions:  slices.Clone(s.Actions),
	}
	for id, a := range s.Assets {
		out.Assets[id] = a.clone()
	}
	for id, st := range s.Stages {
		out.Stages[id] = st.clone()
	}
	if out.Edges == nil {
		out.Edges = make(map[ID]Edge)
	}
	if out.Counters == nil {
		out.Counters = make(map[ID]int)
	}
	return out
}

// Resolve looks up the access point an endpoint refers to.
func (s State) Resolve(ep Endpoint) (Stage, AccessPoint, error) {
	st, ok := s.Stages[ep.StageID]
	if !ok {
		return Stage{}, AccessPoint{}, newError(KindStageNotFound, ep.StageID, "")
	}
	ap, ok := st.AccessPoint(ep.AccessPointID)
	if !ok {
		return st, AccessPoint{}, newError(KindAccessPointNotFound, ep.AccessPointID,
			fmt.Sprintf("not on stage %s", ep.StageID))
	}
	return st, ap, nil
}

// SortedStages returns the stages ordered by name, then id.
func (s State) SortedStages() []Stage {
	out := slices.Collect(maps.Values(s.Stages))
	slices.SortFunc(out, func(a, b Stage) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// SortedAssets returns the assets ordered by name, then id.
func (s State) SortedAssets() []Asset {
	out := slices.Collect(maps.Values(s.Assets))
	slices.SortFunc(out, func(a, b Asset) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// SortedEdges returns the edges ordered by id.
func (s State) SortedEdges() []Edge {
	out := slices.Collect(maps.Values(s.Edges))
	slices.SortFunc(out, func(a, b Edge) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func sortedEntries[V any](m map[ID]V) iter.Seq2[ID, V] {
	return func(yield func(ID, V) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
