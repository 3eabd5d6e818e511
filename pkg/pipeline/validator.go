package pipeline

import (
	"fmt"
	"strings"
)

// LintError describes an integrity problem in a design state.
type LintError struct {
	EntityID ID
	Message  string
}

func (e LintError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%q: %s", e.EntityID, e.Message)
	}
	return e.Message
}

// Validate checks a state for referential integrity.
// Returns all discovered errors (not just the first), in a stable order.
func Validate(s State) []LintError {
	var errs []LintError

	// Identifiers are unique across every entity kind, and set keys match
	// the identifier of the entity stored under them.
	seen := map[ID]string{}
	claim := func(id ID, what string) {
		if id == "" {
			errs = append(errs, LintError{Message: what + " has an empty identifier"})
			return
		}
		if prev, dup := seen[id]; dup {
			errs = append(errs, LintError{EntityID: id, Message: fmt.Sprintf("identifier used by both %s and %s", prev, what)})
			return
		}
		seen[id] = what
	}
	for key, a := range sortedEntries(s.Assets) {
		if key != a.ID {
			errs = append(errs, LintError{EntityID: key, Message: fmt.Sprintf("asset stored under foreign key (id %q)", a.ID)})
		}
		claim(a.ID, "asset")
	}
	for key, st := range sortedEntries(s.Stages) {
		if key != st.ID {
			errs = append(errs, LintError{EntityID: key, Message: fmt.Sprintf("stage stored under foreign key (id %q)", st.ID)})
		}
		claim(st.ID, "stage")
		claim(st.Requester.ID, "access point")
		claim(st.Responder.ID, "access point")
		for _, v := range st.Volumes {
			claim(v.ID, "volume")
		}
	}
	for key, e := range sortedEntries(s.Edges) {
		if key != e.ID {
			errs = append(errs, LintError{EntityID: key, Message: fmt.Sprintf("edge stored under foreign key (id %q)", e.ID)})
		}
		claim(e.ID, "edge")
	}

	// Access points sit in the right slot and point back at their stage.
	for _, st := range s.SortedStages() {
		for _, slot := range []struct {
			ap   AccessPoint
			role Role
		}{{st.Requester, RoleRequester}, {st.Responder, RoleResponder}} {
			if slot.ap.Role != slot.role {
				errs = append(errs, LintError{EntityID: slot.ap.ID, Message: fmt.Sprintf("access point in %s slot has role %q", slot.role, slot.ap.Role)})
			}
			if slot.ap.StageID != st.ID {
				errs = append(errs, LintError{EntityID: slot.ap.ID, Message: fmt.Sprintf("access point claims stage %q but is owned by %q", slot.ap.StageID, st.ID)})
			}
		}
	}

	// Every edge resolves and joins a compatible pair.
	for _, e := range s.SortedEdges() {
		if err := checkEdge(s, e); err != nil {
			errs = append(errs, LintError{EntityID: e.ID, Message: err.Error()})
		}
	}

	for id, n := range sortedEntries(s.Counters) {
		if n < 0 {
			errs = append(errs, LintError{EntityID: id, Message: fmt.Sprintf("negative instance counter %d", n)})
		}
	}

	return errs
}

// ValidateErr calls Validate and returns nil if there are no errors, or a
// combined error message listing all lint errors.
func ValidateErr(s State) error {
	errs := Validate(s)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("state validation failed:\n  %s", strings.Join(msgs, "\n  "))
}
