package session

import "encoding/json"

// MarshalBinary lets go-redis store a *Session directly. Records are plain
// JSON documents so they stay readable from redis-cli and any other client.
func (s *Session) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (s *Session) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
