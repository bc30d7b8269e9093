package internal

import "strings"

// Owner is the authenticated caller a store operation is scoped to. It can
// only be built from a non-empty user id, and every repository method takes
// one, so a query without an owner predicate cannot be expressed.
type Owner struct {
	id string
}

func NewOwner(userID string) (Owner, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return Owner{}, &Error{Kind: ErrUnauthenticated, Msg: "empty user id"}
	}
	return Owner{id: id}, nil
}

// MustOwner is NewOwner for ids known to be valid, such as fixtures.
func MustOwner(userID string) Owner {
	o, err := NewOwner(userID)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Owner) ID() string { return o.id }

// Check returns ErrUnauthenticated for the zero Owner.
func (o Owner) Check() error {
	if o.id == "" {
		return &Error{Kind: ErrUnauthenticated, Msg: "missing owner"}
	}
	return nil
}

func (o Owner) Owns(userID string) bool {
	return o.id != "" && o.id == userID
}

func (o Owner) String() string { return o.id }
