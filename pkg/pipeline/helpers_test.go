package pipeline_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

var (
	emptyType = pipeline.MessageType{Name: "Empty"}
	frameType = pipeline.MessageType{
		Name: "Frame",
		Fields: []pipeline.Field{
			{Name: "data", Type: "bytes", ID: 1},
			{Name: "width", Type: "int32", ID: 2},
		},
	}
	otherFrameType = pipeline.MessageType{
		Name:   "Frame",
		Fields: []pipeline.Field{{Name: "data", Type: "string", ID: 1}},
	}
)

var errSyntax = errors.New("syntax error at line 1")

// fakeParser understands three canned sources.
var fakeParser = pipeline.InterfaceParserFunc(func(src string) ([]pipeline.RemoteMethod, error) {
	switch src {
	case "source":
		return []pipeline.RemoteMethod{
			{Name: "Emit", RequestType: emptyType, ResponseType: frameType},
		}, nil
	case "sink":
		return []pipeline.RemoteMethod{
			{Name: "Show", RequestType: frameType, ResponseType: emptyType},
		}, nil
	case "detector":
		return []pipeline.RemoteMethod{
			{Name: "Predict", RequestType: frameType, ResponseType: frameType},
			{Name: "Reset", RequestType: emptyType, ResponseType: emptyType},
		}, nil
	}
	return nil, errSyntax
})

// seqIDs returns a deterministic identifier source.
func seqIDs(prefix string) func() pipeline.ID {
	n := 0
	return func() pipeline.ID {
		n++
		return pipeline.ID(fmt.Sprintf("%s-%d", prefix, n))
	}
}

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// tickingClock returns a clock advancing one second per call.
func tickingClock() func() time.Time {
	t := epoch
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newReducer() pipeline.Reducer {
	return pipeline.Reducer{Parser: fakeParser, NewID: seqIDs("id"), Now: tickingClock()}
}

// assetNamed returns the first asset called name.
func assetNamed(s pipeline.State, name string) (pipeline.Asset, bool) {
	for _, a := range s.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return pipeline.Asset{}, false
}

func stageNamed(s pipeline.State, name string) (pipeline.Stage, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return pipeline.Stage{}, false
}

// handStage builds a stage by hand, as a caller of AddStage would.
func handStage(id string, name string, req, resp pipeline.MessageType) pipeline.Stage {
	sid := pipeline.ID(id)
	return pipeline.Stage{
		ID:   sid,
		Name: name,
		Requester: pipeline.AccessPoint{
			ID: sid + "-req", StageID: sid, Role: pipeline.RoleRequester, Type: req, Name: name,
		},
		Responder: pipeline.AccessPoint{
			ID: sid + "-resp", StageID: sid, Role: pipeline.RoleResponder, Type: resp, Name: name,
		},
	}
}
