package auth

// Status is the authentication status seen by a client.
type Status int

const (
	StatusUnknown Status = iota
	StatusSignedOut
	StatusSignedIn
)

func (s Status) String() string {
	switch s {
	case StatusSignedOut:
		return "signed_out"
	case StatusSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// Effect is what the favorites mirror must do after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectLoadFavorites
	EffectClearFavorites
)

// State is the client-side authentication state.
type State struct {
	Status Status
	UserID string
}

// Next applies an identity notification. A nil identity means signed out.
// Favorites load on every entry into SignedIn, including a switch between
// users, and are cleared on every entry into SignedOut.
func (s State) Next(id *Identity) (State, Effect) {
	if id == nil {
		next := State{Status: StatusSignedOut}
		if s.Status == StatusSignedOut {
			return next, EffectNone
		}
		return next, EffectClearFavorites
	}

	next := State{Status: StatusSignedIn, UserID: id.UserID}
	if s.Status == StatusSignedIn && s.UserID == id.UserID {
		return next, EffectNone
	}
	return next, EffectLoadFavorites
}
