// Package eid parses and formats Bundle Protocol endpoint identifiers in
// the "ipn:<node>.<service>" scheme used by this module's routes.
package eid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is returned for any text that is not a well-formed
// "ipn:<node>.<service>" identifier.
var ErrInvalid = errors.New("eid: invalid endpoint identifier")

// EID is a parsed "ipn:<node>.<service>" endpoint identifier. Both
// components are base-10, non-negative, and bounded by uint32.
type EID struct {
	Node    uint32
	Service uint32
}

// Parse parses s as an "ipn:<node>.<service>" identifier.
func Parse(s string) (EID, error) {
	const scheme = "ipn:"
	if !strings.HasPrefix(s, scheme) {
		return EID{}, fmt.Errorf("%w: %q: missing %q scheme", ErrInvalid, s, scheme)
	}
	rest := s[len(scheme):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return EID{}, fmt.Errorf("%w: %q: missing node.service separator", ErrInvalid, s)
	}
	nodeStr, serviceStr := rest[:dot], rest[dot+1:]
	if nodeStr == "" || serviceStr == "" {
		return EID{}, fmt.Errorf("%w: %q: empty node or service", ErrInvalid, s)
	}

	node, err := strconv.ParseUint(nodeStr, 10, 32)
	if err != nil {
		return EID{}, fmt.Errorf("%w: %q: bad node: %v", ErrInvalid, s, err)
	}
	service, err := strconv.ParseUint(serviceStr, 10, 32)
	if err != nil {
		return EID{}, fmt.Errorf("%w: %q: bad service: %v", ErrInvalid, s, err)
	}

	return EID{Node: uint32(node), Service: uint32(service)}, nil
}

// String renders the "ipn:<node>.<service>" text form.
func (e EID) String() string {
	return fmt.Sprintf("ipn:%d.%d", e.Node, e.Service)
}

// Route is a local/remote pair of endpoints identifying a channel.
type Route struct {
	Local  EID
	Remote EID
}

func (r Route) String() string {
	return r.Local.String() + "->" + r.Remote.String()
}
