package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// refusedError is the server turning the connection away (e.g. the username is taken).
type refusedError struct {
	server string
	reason string
}

func (e refusedError) Error() string {
	return fmt.Sprintf("%s refused the connection: %s", e.server, e.reason)
}

type timeoutError struct {
	server  string
	waiting string
}

func (e timeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s from %s", e.waiting, e.server)
}
