package pipeline

import "fmt"

// Compatible reports whether a and b may be joined by an Edge: exactly one
// of them is a Requester, the other a Responder, and their types are
// structurally equal. The check is symmetric.
func Compatible(a, b AccessPoint) bool {
	if !a.Role.Valid() || !b.Role.Valid() || a.Role == b.Role {
		return false
	}
	return a.Type.Equal(b.Type)
}

// Connect builds an Edge between two endpoints of s after checking that both
// resolve and are compatible. The endpoints may be given in either order.
// The returned Edge has no ID; the reducer assigns one on AddEdge.
func Connect(s State, a, b Endpoint) (Edge, error) {
	_, apA, err := s.Resolve(a)
	if err != nil {
		return Edge{}, err
	}
	_, apB, err := s.Resolve(b)
	if err != nil {
		return Edge{}, err
	}
	if !Compatible(apA, apB) {
		return Edge{}, incompatible(apA, apB)
	}
	if apA.Role == RoleResponder {
		a, b = b, a
	}
	return Edge{Requester: a, Responder: b}, nil
}

// ConnectStages joins the Requester of one stage to the Responder of another.
func ConnectStages(s State, requesterStage, responderStage ID) (Edge, error) {
	req, ok := s.Stages[requesterStage]
	if !ok {
		return Edge{}, newError(KindStageNotFound, requesterStage, "")
	}
	resp, ok := s.Stages[responderStage]
	if !ok {
		return Edge{}, newError(KindStageNotFound, responderStage, "")
	}
	return Connect(s,
		Endpoint{StageID: req.ID, AccessPointID: req.Requester.ID},
		Endpoint{StageID: resp.ID, AccessPointID: resp.Responder.ID},
	)
}

// checkEdge verifies that an existing or proposed edge is well formed in s:
// both ends resolve, the requester end is a Requester, and the types match.
func checkEdge(s State, e Edge) error {
	_, req, err := s.Resolve(e.Requester)
	if err != nil {
		return err
	}
	_, resp, err := s.Resolve(e.Responder)
	if err != nil {
		return err
	}
	if req.Role != RoleRequester || resp.Role != RoleResponder {
		return newError(KindIncompatible, e.ID, "requester and responder ends are swapped or share a role")
	}
	if !Compatible(req, resp) {
		return incompatible(req, resp)
	}
	return nil
}

func incompatible(a, b AccessPoint) *DomainError {
	return newError(KindIncompatible, "", fmt.Sprintf("%s %s (%s) cannot connect to %s %s (%s)",
		a.Role, a.ID, a.Type.Name, b.Role, b.ID, b.Type.Name))
}
