package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func ap(role pipeline.Role, typ pipeline.MessageType) pipeline.AccessPoint {
	return pipeline.AccessPoint{ID: pipeline.NewID(), Role: role, Type: typ}
}

func TestCompatible(t *testing.T) {
	reordered := pipeline.MessageType{
		Name:   "Frame",
		Fields: []pipeline.Field{frameType.Fields[1], frameType.Fields[0]},
	}
	streamed := frameType
	streamed.Streamed = true

	tests := []struct {
		name string
		a, b pipeline.AccessPoint
		want bool
	}{
		{"requester to responder", ap(pipeline.RoleRequester, frameType), ap(pipeline.RoleResponder, frameType), true},
		{"field order is irrelevant", ap(pipeline.RoleRequester, frameType), ap(pipeline.RoleResponder, reordered), true},
		{"same role", ap(pipeline.RoleRequester, frameType), ap(pipeline.RoleRequester, frameType), false},
		{"both responders", ap(pipeline.RoleResponder, frameType), ap(pipeline.RoleResponder, frameType), false},
		{"different types", ap(pipeline.RoleRequester, frameType), ap(pipeline.RoleResponder, emptyType), false},
		{"same name different fields", ap(pipeline.RoleRequester, frameType), ap(pipeline.RoleResponder, otherFrameType), false},
		{"streamed differs", ap(pipeline.RoleRequester, frameType), ap(pipeline.RoleResponder, streamed), false},
		{"unknown role", ap("Sideways", frameType), ap(pipeline.RoleResponder, frameType), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pipeline.Compatible(tc.a, tc.b))
			assert.Equal(t, tc.want, pipeline.Compatible(tc.b, tc.a), "compatibility must be symmetric")
		})
	}
}

func TestMessageTypeEqual_Oneofs(t *testing.T) {
	a := pipeline.MessageType{Name: "Pick", Oneofs: map[string][]string{"choice": {"left", "right"}}}
	b := pipeline.MessageType{Name: "Pick", Oneofs: map[string][]string{"choice": {"right", "left"}}}
	c := pipeline.MessageType{Name: "Pick", Oneofs: map[string][]string{"other": {"left", "right"}}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(pipeline.MessageType{Name: "Pick"}))
}

func TestConnect_OrdersEndpoints(t *testing.T) {
	r := newReducer()
	s := twoStageState(t, r)
	src, dst := s.Stages["src"], s.Stages["dst"]
	resp := pipeline.Endpoint{StageID: src.ID, AccessPointID: src.Responder.ID}
	req := pipeline.Endpoint{StageID: dst.ID, AccessPointID: dst.Requester.ID}

	e1, err := pipeline.Connect(s, resp, req)
	require.NoError(t, err)
	e2, err := pipeline.Connect(s, req, resp)
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
	assert.Equal(t, req, e1.Requester)
	assert.Empty(t, e1.ID)

	_, err = pipeline.Connect(s, resp, pipeline.Endpoint{StageID: src.ID, AccessPointID: src.Requester.ID})
	require.ErrorIs(t, err, pipeline.ErrIncompatible)
	_, err = pipeline.Connect(s, resp, pipeline.Endpoint{StageID: "ghost", AccessPointID: "x"})
	require.ErrorIs(t, err, pipeline.ErrStageNotFound)
	_, err = pipeline.ConnectStages(s, "ghost", src.ID)
	require.ErrorIs(t, err, pipeline.ErrStageNotFound)
}

func TestInstantiate(t *testing.T) {
	asset := pipeline.Asset{
		ID:   "asset",
		Name: "Source",
		Methods: []pipeline.RemoteMethod{
			{ID: "emit", Name: "Emit", RequestType: emptyType, ResponseType: frameType},
		},
	}
	st, err := pipeline.Instantiate(asset, "emit", 1, seqIDs("n"))
	require.NoError(t, err)

	assert.Equal(t, "Source 1", st.Name)
	assert.Equal(t, pipeline.ID("asset"), st.AssetID)
	assert.Equal(t, pipeline.RoleRequester, st.Requester.Role)
	assert.Equal(t, pipeline.RoleResponder, st.Responder.Role)
	assert.True(t, st.Requester.Type.Equal(emptyType))
	assert.True(t, st.Responder.Type.Equal(frameType))
	assert.Equal(t, st.ID, st.Requester.StageID)
	assert.Equal(t, st.ID, st.Responder.StageID)
	assert.Equal(t, "Emit", st.Responder.Name)
	assert.Equal(t, pipeline.ID("emit"), st.Responder.RemoteMethodID)

	ids := map[pipeline.ID]bool{st.ID: true, st.Requester.ID: true, st.Responder.ID: true}
	assert.Len(t, ids, 3, "stage and access points need distinct identifiers")

	rx, ry := pipeline.Radii("Source 1")
	assert.Equal(t, 52.0, rx)
	assert.Equal(t, 25.0, ry)
	assert.Equal(t, rx, st.RX)

	_, err = pipeline.Instantiate(asset, "ghost", 1, nil)
	require.ErrorIs(t, err, pipeline.ErrRemoteMethodNotFound)
}

func TestInstantiate_TypesAreCopies(t *testing.T) {
	asset := pipeline.Asset{
		ID:      "asset",
		Name:    "Source",
		Methods: []pipeline.RemoteMethod{{ID: "emit", Name: "Emit", RequestType: emptyType, ResponseType: frameType}},
	}
	st, err := pipeline.Instantiate(asset, "emit", 1, nil)
	require.NoError(t, err)
	st.Responder.Type.Fields[0].Name = "mutated"
	assert.Equal(t, "data", asset.Methods[0].ResponseType.Fields[0].Name)
}

func TestStageName_Truncates(t *testing.T) {
	asset := pipeline.Asset{Name: "Abcdefghijklmnopqrstuvwxyz0123"}
	m := pipeline.RemoteMethod{Name: "Run"}
	asset.Methods = []pipeline.RemoteMethod{m}
	assert.Equal(t, "Abcdefghijklmnopqrstuvw… 7", pipeline.StageName(asset, m, 7))

	asset.Methods = append(asset.Methods, pipeline.RemoteMethod{Name: "Stop"})
	asset.Name = "Det"
	assert.Equal(t, "Det.Run 2", pipeline.StageName(asset, m, 2))
}
