package pipeline

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ActionKind names an Action variant. It is the "type" tag of an action in
// the persisted document.
type ActionKind string

const (
	ActionCreateAsset      ActionKind = "CreateAsset"
	ActionSetAssets        ActionKind = "SetAssets"
	ActionUpdateAsset      ActionKind = "UpdateAsset"
	ActionDeleteAsset      ActionKind = "DeleteAsset"
	ActionAddStage         ActionKind = "AddStage"
	ActionSetStages        ActionKind = "SetStages"
	ActionInstantiateStage ActionKind = "InstantiateStage"
	ActionDeleteStage      ActionKind = "DeleteStage"
	ActionUpdateStage      ActionKind = "UpdateStage"
	ActionAddVolume        ActionKind = "AddVolume"
	ActionRemoveVolume     ActionKind = "RemoveVolume"
	ActionAddEdge          ActionKind = "AddEdge"
	ActionRemoveEdge       ActionKind = "RemoveEdge"
	ActionSetEdges         ActionKind = "SetEdges"
	ActionRestoreState     ActionKind = "RestoreState"
	ActionClearState       ActionKind = "ClearState"
)

// Action is a user intent dispatched to the Reducer. The set of actions is
// closed; every variant is declared in this file.
type Action interface {
	Kind() ActionKind
	action()
}

// CreateAsset parses Source and adds a new Asset. AssetID may be preset by
// the caller; otherwise one is allocated.
type CreateAsset struct {
	AssetID ID     `json:"assetId,omitempty"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Source  string `json:"source"`
}

// SetAssets replaces the whole asset set.
type SetAssets struct {
	Assets map[ID]Asset `json:"assets"`
}

// UpdateAsset replaces an existing asset, matched by id.
type UpdateAsset struct {
	Asset Asset `json:"asset"`
}

// DeleteAsset removes an asset. Stages instantiated from it are kept.
type DeleteAsset struct {
	AssetID ID `json:"assetId"`
}

// AddStage inserts a prebuilt stage.
type AddStage struct {
	Stage Stage `json:"stage"`
}

// SetStages replaces the whole stage set. Edges left dangling or
// incompatible are dropped.
type SetStages struct {
	Stages map[ID]Stage `json:"stages"`
}

// InstantiateStage creates the next instance of one method of an asset.
type InstantiateStage struct {
	StageID        ID      `json:"stageId,omitempty"`
	AssetID        ID      `json:"assetId"`
	RemoteMethodID ID      `json:"remoteMethodId"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
}

// DeleteStage removes a stage and every edge touching it.
type DeleteStage struct {
	StageID ID `json:"stageId"`
}

// UpdateStage merges the non-nil fields into an existing stage. A non-nil
// Volumes replaces the volume list; an empty one clears it.
type UpdateStage struct {
	StageID ID       `json:"stageId"`
	Name    *string  `json:"name,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	RX      *float64 `json:"rx,omitempty"`
	RY      *float64 `json:"ry,omitempty"`
	Volumes []Volume `json:"volumes"`
}

// AddVolume appends a volume to a stage.
type AddVolume struct {
	StageID ID     `json:"stageId"`
	Volume  Volume `json:"volume"`
}

// RemoveVolume drops one volume from a stage.
type RemoveVolume struct {
	StageID  ID `json:"stageId"`
	VolumeID ID `json:"volumeId"`
}

// AddEdge inserts a compatibility-checked edge.
type AddEdge struct {
	Edge Edge `json:"edge"`
}

// RemoveEdge deletes one edge.
type RemoveEdge struct {
	EdgeID ID `json:"edgeId"`
}

// SetEdges replaces the whole edge set. Every edge is checked.
type SetEdges struct {
	Edges map[ID]Edge `json:"edges"`
}

// RestoreState installs a loaded state, history included.
type RestoreState struct {
	State State `json:"state"`
}

// ClearState resets to the empty state.
type ClearState struct{}

func (CreateAsset) Kind() ActionKind      { return ActionCreateAsset }
func (SetAssets) Kind() ActionKind        { return ActionSetAssets }
func (UpdateAsset) Kind() ActionKind      { return ActionUpdateAsset }
func (DeleteAsset) Kind() ActionKind      { return ActionDeleteAsset }
func (AddStage) Kind() ActionKind         { return ActionAddStage }
func (SetStages) Kind() ActionKind        { return ActionSetStages }
func (InstantiateStage) Kind() ActionKind { return ActionInstantiateStage }
func (DeleteStage) Kind() ActionKind      { return ActionDeleteStage }
func (UpdateStage) Kind() ActionKind      { return ActionUpdateStage }
func (AddVolume) Kind() ActionKind        { return ActionAddVolume }
func (RemoveVolume) Kind() ActionKind     { return ActionRemoveVolume }
func (AddEdge) Kind() ActionKind          { return ActionAddEdge }
func (RemoveEdge) Kind() ActionKind       { return ActionRemoveEdge }
func (SetEdges) Kind() ActionKind         { return ActionSetEdges }
func (RestoreState) Kind() ActionKind     { return ActionRestoreState }
func (ClearState) Kind() ActionKind       { return ActionClearState }

func (CreateAsset) action()      {}
func (SetAssets) action()        {}
func (UpdateAsset) action()      {}
func (DeleteAsset) action()      {}
func (AddStage) action()         {}
func (SetStages) action()        {}
func (InstantiateStage) action() {}
func (DeleteStage) action()      {}
func (UpdateStage) action()      {}
func (AddVolume) action()        {}
func (RemoveVolume) action()     {}
func (AddEdge) action()          {}
func (RemoveEdge) action()       {}
func (SetEdges) action()         {}
func (RestoreState) action()     {}
func (ClearState) action()       {}

// ─── Encoding ─────────────────────────────────────────────────────────────────

type actionEnvelope struct {
	Type    ActionKind      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var decoders = map[ActionKind]func(json.RawMessage) (Action, error){}

func register[T Action](kind ActionKind) {
	decoders[kind] = func(raw json.RawMessage) (Action, error) {
		var a T
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	}
}

func init() {
	register[CreateAsset](ActionCreateAsset)
	register[SetAssets](ActionSetAssets)
	register[UpdateAsset](ActionUpdateAsset)
	register[DeleteAsset](ActionDeleteAsset)
	register[AddStage](ActionAddStage)
	register[SetStages](ActionSetStages)
	register[InstantiateStage](ActionInstantiateStage)
	register[DeleteStage](ActionDeleteStage)
	register[UpdateStage](ActionUpdateStage)
	register[AddVolume](ActionAddVolume)
	register[RemoveVolume](ActionRemoveVolume)
	register[AddEdge](ActionAddEdge)
	register[RemoveEdge](ActionRemoveEdge)
	register[SetEdges](ActionSetEdges)
	register[RestoreState](ActionRestoreState)
	register[ClearState](ActionClearState)
}

// ActionKinds lists every registered kind in a stable order.
func ActionKinds() []ActionKind {
	out := make([]ActionKind, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// MarshalAction encodes a as {"type": kind, "payload": {...}}.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("marshal action: nil action")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", a.Kind(), err)
	}
	return json.Marshal(actionEnvelope{Type: a.Kind(), Payload: payload})
}

// UnmarshalAction decodes an envelope written by MarshalAction.
func UnmarshalAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, wrapError(KindParsing, "action envelope", err)
	}
	dec, ok := decoders[env.Type]
	if !ok {
		return nil, newError(KindParsing, "", fmt.Sprintf("unknown action type %q", env.Type))
	}
	a, err := dec(env.Payload)
	if err != nil {
		return nil, wrapError(KindParsing, fmt.Sprintf("%s payload", env.Type), err)
	}
	return a, nil
}
