package mixcloud

import "fmt"

// UserNotFoundError reports that the remote has no user with this username.
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("There's no Mixcloud user with username %s", e.Username)
}

// PlaylistNotFoundError reports that the user exists but the playlist slug
// does not.
type PlaylistNotFoundError struct {
	Username string
	Slug     string
}

func (e *PlaylistNotFoundError) Error() string {
	return fmt.Sprintf("%s has no playlist named %s", e.Username, e.Slug)
}

// RemoteError wraps a GraphQL error payload, a null data response, a
// transport failure, or a query timeout. Surfaces as HTTP 500.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("mixcloud %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// DecoderError reports an enclosure URL that could not be decoded; the
// affected episode is skipped, the request continues.
type DecoderError struct {
	Encoded string
	Err     error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("decode stream url: %v", e.Err)
}

func (e *DecoderError) Unwrap() error { return e.Err }
