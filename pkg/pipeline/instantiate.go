package pipeline

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MaxStageBaseName bounds the asset/method part of a default stage name.
	MaxStageBaseName = 24

	stageRadiusY     = 25.0
	stageRadiusPad   = 20.0
	stageRadiusGlyph = 4.0
)

// Instantiate turns one method of asset into a new Stage with exactly one
// Requester (carrying the request type) and one Responder (carrying the
// response type). n is the per-asset instance number used in the default
// name. newID allocates the stage and access point identifiers.
func Instantiate(asset Asset, methodID ID, n int, newID func() ID) (Stage, error) {
	m, ok := asset.Method(methodID)
	if !ok {
		return Stage{}, newError(KindRemoteMethodNotFound, methodID,
			fmt.Sprintf("not a method of asset %s", asset.ID))
	}
	if newID == nil {
		newID = NewID
	}

	st := Stage{
		ID:      newID(),
		AssetID: asset.ID,
		Name:    StageName(asset, m, n),
	}
	st.Requester = AccessPoint{
		ID:             newID(),
		StageID:        st.ID,
		RemoteMethodID: m.ID,
		Role:           RoleRequester,
		Type:           m.RequestType.clone(),
		Name:           m.Name,
	}
	st.Responder = AccessPoint{
		ID:             newID(),
		StageID:        st.ID,
		RemoteMethodID: m.ID,
		Role:           RoleResponder,
		Type:           m.ResponseType.clone(),
		Name:           m.Name,
	}
	st.RX, st.RY = Radii(st.Name)
	return st, nil
}

// StageName returns the default display name of the n-th instance of m.
// Single-method assets are named after the asset alone; otherwise the method
// name is appended ("Detector.Predict 2").
func StageName(asset Asset, m RemoteMethod, n int) string {
	base := asset.Name
	if len(asset.Methods) > 1 {
		base += "." + m.Name
	}
	return fmt.Sprintf("%s %d", truncate(base, MaxStageBaseName), n)
}

// Radii returns the layout radii of an ellipse large enough for name.
func Radii(name string) (rx, ry float64) {
	return stageRadiusGlyph*float64(utf8.RuneCountInString(name)) + stageRadiusPad, stageRadiusY
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
