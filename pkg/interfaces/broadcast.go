package interfaces

// Broadcaster delivers named events to connections. Implementations must
// be safe for concurrent use and must not block the caller on slow
// clients; delivery is best-effort while connected.
type Broadcaster interface {
	// SendToConnection delivers to a single connection. The returned
	// error reports an unknown or closed connection.
	SendToConnection(connID, event string, payload interface{}) error

	// SendToRoom delivers to every current member of a room.
	SendToRoom(roomName, event string, payload interface{})

	// SendToOthersInRoom delivers to every member of a room except one.
	SendToOthersInRoom(roomName, excludeConnID, event string, payload interface{})

	// SendToAll delivers to every live connection.
	SendToAll(event string, payload interface{})
}

// Cipher wraps message bodies before persistence. Both operations are
// total: on any internal failure they return the input unchanged.
type Cipher interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) string
}
