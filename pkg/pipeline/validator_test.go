package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func lintMessages(errs []pipeline.LintError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func TestValidate_CleanState(t *testing.T) {
	s := richState(t)
	assert.Empty(t, pipeline.Validate(s))
	assert.NoError(t, pipeline.ValidateErr(s))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	s := twoStageState(t, newReducer())

	// RestoreState installs documents as-is, so a hand-edited file can carry
	// any of these.
	src := s.Stages["src"]
	src.Requester.Role = pipeline.RoleResponder
	src.Responder.StageID = "elsewhere"
	s.Stages["src"] = src

	clash := handStage("dup", "Dup", emptyType, emptyType)
	clash.Requester.ID = "dst-req"
	s.Stages["dup"] = clash

	s.Stages["wrong-key"] = handStage("other", "Other", emptyType, emptyType)
	s.Edges["dangling"] = pipeline.Edge{
		ID:        "dangling",
		Requester: pipeline.Endpoint{StageID: "ghost", AccessPointID: "x"},
		Responder: pipeline.Endpoint{StageID: "src", AccessPointID: "src-resp"},
	}
	s.Counters["asset"] = -1

	r := newReducer()
	restored, err := r.Apply(pipeline.NewState(), pipeline.RestoreState{State: s})
	require.NoError(t, err)

	errs := pipeline.Validate(restored)
	out := lintMessages(errs)
	for _, want := range []string{
		`"dst-req": identifier used by both access point and access point`,
		`"wrong-key": stage stored under foreign key`,
		`access point in Requester slot has role "Responder"`,
		`access point claims stage "elsewhere"`,
		`"dangling": StageNotFound "ghost"`,
		`negative instance counter -1`,
	} {
		assert.Contains(t, out, want)
	}

	err = pipeline.ValidateErr(restored)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state validation failed")
	assert.Equal(t, errs, pipeline.Validate(restored), "results are in a stable order")
}
